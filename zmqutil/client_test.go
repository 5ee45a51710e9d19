// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package zmqutil

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/latticed/util"
	zmq "github.com/pebbe/zmq4"
)

const (
	defaultAddress = "127.0.0.1:9876"
	defaultTimeout = 0
)

func setupTestClient(t *testing.T) *Client {
	t.Helper()
	publicKey := make([]byte, publicKeySize)
	privateKey := make([]byte, privateKeySize)
	_, _ = rand.Read(publicKey)
	_, _ = rand.Read(privateKey)
	client, err := NewClient(zmq.SUB, privateKey, publicKey, defaultTimeout)
	require.NoError(t, err)
	return client
}

func teardownTestClient(c *Client) {
	_ = c.Close()
}

func TestConnectOpensSocket(t *testing.T) {
	client := setupTestClient(t)
	defer teardownTestClient(client)

	address, err := util.NewConnection(defaultAddress)
	require.NoError(t, err)

	serverKey := make([]byte, publicKeySize)
	_, _ = rand.Read(serverKey)

	require.NoError(t, client.Connect(address, serverKey))
	require.True(t, client.IsConnected())
	require.True(t, client.IsConnectedTo(serverKey))
}

func TestCloseDisconnects(t *testing.T) {
	client := setupTestClient(t)

	address, err := util.NewConnection(defaultAddress)
	require.NoError(t, err)

	serverKey := make([]byte, publicKeySize)
	_, _ = rand.Read(serverKey)

	require.NoError(t, client.Connect(address, serverKey))
	require.NoError(t, client.Close())
}
