// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package msgtunnel multiplexes tcp connections over one duplex stream.
//
// Every message crossing the stream is a Packet, encoded as one json line:
//
//	{"id":"init"}
//	{"id":"c1","type":"OPEN"}
//	{"id":"c1","data":"aGVsbG8="}
//	{"id":"c1","type":"CLOSE"}
//
// The server binds its listener when the client's handshake arrives, every
// accepted connection is announced with an OPEN packet. The client dials
// its target for every OPEN and relays the channel's bytes both ways.
//
// The transport layer is defined by the PacketReadWriter interface, there
// are two default implementations:
//
//	LineRW over a byte stream pair
//	WebsocketRW over websocket.Conn
//
// Here is a quick example, the stream is a tcp connection.
//
// Server
//
//	conn, _ := ln.Accept()
//	s := msgtunnel.NewServer(msgtunnel.LineRW(conn, conn, msgtunnel.Codec{}), "127.0.0.1:8080")
//	s.Start(ctx)
//	<-s.StopD()
//
// Client
//
//	conn, _ := net.Dial("tcp", serverAddr)
//	c := msgtunnel.NewClient(msgtunnel.LineRW(conn, conn, msgtunnel.Codec{}), "example.com:80")
//	c.Start(ctx)
//	<-c.StopD()
package msgtunnel
