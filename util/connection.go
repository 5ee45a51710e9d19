// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package util

import (
	"encoding/binary"
	"net"
	"strconv"
	"strings"

	"github.com/bitmark-inc/latticed/fault"
)

// Connection - a validated host/port pair, the form zmqutil sockets bind
// and connect to
type Connection struct {
	ip   net.IP
	port uint16
	v6   bool
}

// NewConnection - parse and validate a "host:port" string into a Connection
func NewConnection(hostPort string) (*Connection, error) {
	host, port, err := net.SplitHostPort(hostPort)
	if nil != err {
		return nil, err
	}

	ip := net.ParseIP(strings.Trim(host, " "))
	if nil == ip {
		return nil, fault.ErrInvalidIPAddress
	}

	numericPort, err := strconv.Atoi(strings.Trim(port, " "))
	if nil != err {
		return nil, err
	}
	if numericPort < 1 || numericPort > 65535 {
		return nil, fault.ErrInvalidPortNumber
	}

	return ConnectionFromIPandPort(ip.String(), numericPort), nil
}

// ConnectionFromIPandPort - build a Connection directly from an already
// valid IP string and port number, bypassing string parsing
func ConnectionFromIPandPort(ipString string, port int) *Connection {
	ip := net.ParseIP(strings.Trim(ipString, " "))
	return &Connection{
		ip:   ip,
		port: uint16(port),
		v6:   nil == ip.To4(),
	}
}

// CanonicalIPandPort - zmq endpoint string for this connection, prefixed
// with a transport scheme such as "tcp://", plus whether it is IPv6
func (connection *Connection) CanonicalIPandPort(prefix string) (string, bool) {
	if connection.v6 {
		return prefix + "[" + connection.ip.String() + "]:" + strconv.Itoa(int(connection.port)), true
	}
	return prefix + connection.ip.String() + ":" + strconv.Itoa(int(connection.port)), false
}

// IsIPv6 - true if this connection holds an IPv6 address
func (connection *Connection) IsIPv6() bool {
	return connection.v6
}

// String - "host:port" form, IPv6 hosts bracketed
func (connection *Connection) String() string {
	address, _ := connection.CanonicalIPandPort("")
	return address
}

// PackedConnection - a Connection in its wire form: a 1 byte length tag
// (4 for IPv4, 16 for IPv6) followed by the raw address bytes and a
// big-endian port, the same layout announce records pack into a
// certificate's extra data
type PackedConnection []byte

// Pack - produce the wire form of this connection
func (connection *Connection) Pack() PackedConnection {
	ip4 := connection.ip.To4()
	packed := make(PackedConnection, 0, 1+16+2)
	if nil != ip4 {
		packed = append(packed, byte(len(ip4)))
		packed = append(packed, ip4...)
	} else {
		ip16 := connection.ip.To16()
		packed = append(packed, byte(len(ip16)))
		packed = append(packed, ip16...)
	}
	portBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(portBytes, connection.port)
	return append(packed, portBytes...)
}

// Unpack - inverse of Pack
func (packed PackedConnection) Unpack() (*Connection, error) {
	if len(packed) < 1 {
		return nil, fault.ErrInvalidIPAddress
	}
	length := int(packed[0])
	if length != net.IPv4len && length != net.IPv6len {
		return nil, fault.ErrInvalidIPAddress
	}
	if len(packed) != 1+length+2 {
		return nil, fault.ErrInvalidIPAddress
	}
	ip := net.IP(packed[1 : 1+length])
	port := binary.BigEndian.Uint16(packed[1+length:])
	return &Connection{
		ip:   ip,
		port: port,
		v6:   length == net.IPv6len,
	}, nil
}
