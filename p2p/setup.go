// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"io/ioutil"
	"sync"
	"time"

	"github.com/bitmark-inc/latticed/background"
	"github.com/bitmark-inc/latticed/configuration"
	"github.com/bitmark-inc/latticed/constants"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/util"
	"github.com/bitmark-inc/latticed/zmqutil"
	"github.com/bitmark-inc/logger"
)


var globalData struct {
	sync.Mutex
	log         *logger.L
	processes   *background.T
	listener    *listener
	connectList []configuration.PeerConnection
	initialised bool
}

// Initialise - load or create this node's curve keypair, bind the
// listener, and start the background gossip/bootstrap loops; grounded
// on the teacher's peer.Initialise "load keys, bind, start processes"
// sequence in peer/setup.go
func Initialise(cfg *configuration.PeerType, network string) error {
	globalData.Lock()
	defer globalData.Unlock()

	if globalData.initialised {
		return fault.ErrAlreadyInitialised
	}
	globalData.log = logger.New("p2p")

	privateKey, publicKey, err := loadOrCreateKeyPair(cfg.PrivateKey, cfg.PublicKey)
	if nil != err {
		return err
	}

	listenConnections := make([]*util.Connection, 0, len(cfg.Listen))
	for _, l := range cfg.Listen {
		conn, err := util.NewConnection(l)
		if nil != err {
			return err
		}
		listenConnections = append(listenConnections, conn)
	}

	globalTable.initialise(network, privateKey, publicKey, cfg.MaxPeers, cfg.PeerRateLimit, time.Duration(cfg.BanDuration)*time.Second)

	globalData.listener = &listener{}
	if err := globalData.listener.initialise(network, privateKey, publicKey, listenConnections); nil != err {
		return err
	}
	globalData.connectList = cfg.Connect

	globalData.processes = background.Start(background.Processes{
		func(args interface{}, shutdown <-chan bool, finished chan<- bool) {
			<-shutdown // listener.run() is interrupted by listener.stop(), not this channel
			finished <- true
		},
		gossipFanOut,
		bootstrapLoop,
	}, nil)
	go globalData.listener.run()

	globalData.initialised = true
	globalData.log.Info("started")
	return nil
}

// Finalise - stop all background processes and close peer sessions
func Finalise() error {
	globalData.Lock()
	defer globalData.Unlock()

	if !globalData.initialised {
		return fault.ErrNotInitialised
	}

	globalData.listener.stop()
	background.Stop(globalData.processes)

	globalTable.forEach(func(addr string, session *Session) {
		session.Close()
	})

	globalData.initialised = false
	globalData.log.Info("stopped")
	return nil
}

// loadOrCreateKeyPair - read an existing keypair from disk, or
// generate one the first time this node starts, following
// zmqutil.MakeKeyPair/ReadPublicKey/ReadPrivateKey's on-disk tagged-hex format
func loadOrCreateKeyPair(privateKeyFile, publicKeyFile string) ([]byte, []byte, error) {
	if !util.EnsureFileExists(privateKeyFile) || !util.EnsureFileExists(publicKeyFile) {
		if err := zmqutil.MakeKeyPair(publicKeyFile, privateKeyFile); nil != err {
			return nil, nil, err
		}
	}

	publicData, err := ioutil.ReadFile(publicKeyFile)
	if nil != err {
		return nil, nil, err
	}
	privateData, err := ioutil.ReadFile(privateKeyFile)
	if nil != err {
		return nil, nil, err
	}

	publicKey, err := zmqutil.ReadPublicKey(string(publicData))
	if nil != err {
		return nil, nil, err
	}
	privateKey, err := zmqutil.ReadPrivateKey(string(privateData))
	if nil != err {
		return nil, nil, err
	}
	return privateKey, publicKey, nil
}

// bootstrapLoop - periodically dials every statically configured peer
// not already connected, and sweeps idle/banned connections
func bootstrapLoop(args interface{}, shutdown <-chan bool, finished chan<- bool) {
	log := logger.New("p2p-bootstrap")
	log.Info("starting…")

	ticker := time.NewTicker(constants.BootstrapInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-ticker.C:
			globalBans.sweep(timeNow())
			globalTable.sweepIdle(constants.PeerIdleTimeout)
			for _, peer := range globalData.connectList {
				serverPublicKey, err := zmqutil.ReadPublicKey(peer.PublicKey)
				if nil != err {
					log.Errorf("invalid configured public key for %s: %v", peer.Address, err)
					continue
				}
				if err := globalTable.connectTo(peer.Address, serverPublicKey); nil != err {
					log.Debugf("connect to %s failed: %v", peer.Address, err)
				}
			}
		}
	}

	log.Info("stopped")
	finished <- true
}
