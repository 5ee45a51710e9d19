// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package messagebus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/latticed/messagebus"
)

func TestSendAndReceive(t *testing.T) {
	items := []messagebus.Message{
		{From: "a", Item: "one"},
		{From: "b", Item: "two"},
		{From: "c", Item: "three"},
	}

	for _, item := range items {
		messagebus.Send(item.From, item.Item)
	}

	queue := messagebus.Chan()
	for _, item := range items {
		received := <-queue
		require.Equal(t, item.From, received.From)
		require.Equal(t, item.Item, received.Item)
	}
}
