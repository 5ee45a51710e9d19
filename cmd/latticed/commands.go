// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bitmark-inc/latticed/configuration"
	"github.com/bitmark-inc/latticed/zmqutil"
	"github.com/bitmark-inc/exitwithstatus"
)

const (
	defaultPeerPublicKeyFilename  = "latticed.public"
	defaultPeerPrivateKeyFilename = "latticed.private"
)

// processSetupCommand - commands that create key material before any
// configuration file or database exists, grounded on the teacher's
// command/bitmarkd/commands.go processSetupCommand, retargeted at this
// node's single CurveZMQ keypair instead of the teacher's separate
// peer/RPC/proof identities
func processSetupCommand(arguments []string) bool {
	command := arguments[0]
	arguments = arguments[1:]

	switch command {
	case "gen-peer-identity", "peer":
		publicKeyFilename := defaultPeerPublicKeyFilename
		privateKeyFilename := defaultPeerPrivateKeyFilename
		if len(arguments) >= 1 {
			publicKeyFilename = arguments[0]
		}
		if len(arguments) >= 2 {
			privateKeyFilename = arguments[1]
		}

		if err := zmqutil.MakeKeyPair(publicKeyFilename, privateKeyFilename); nil != err {
			fmt.Printf("generate key pair: %q / %q error: %s\n", publicKeyFilename, privateKeyFilename, err)
			exitwithstatus.Exit(1)
		}
		fmt.Printf("generated public key: %q  private key: %q\n", publicKeyFilename, privateKeyFilename)

	default:
		return false
	}

	return true
}

// processConfigCommand - commands that only need the parsed
// configuration, no database or peer connections
func processConfigCommand(arguments []string, theConfiguration *configuration.Configuration) bool {
	command := arguments[0]

	switch command {
	case "config-test", "cfg":
		b, err := json.Marshal(theConfiguration)
		if nil != err {
			exitwithstatus.Message("error: %s", err)
		}
		var out bytes.Buffer
		json.Indent(&out, b, "", "  ")
		out.WriteTo(os.Stdout)
		os.Stdout.WriteString("\n")

	default:
		return false
	}

	return true
}
