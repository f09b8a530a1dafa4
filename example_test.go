// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel_test

import (
	"context"
	"io"
	"log"
	"net"
	"testing"

	"github.com/someonegg/gox/syncx"
	"github.com/someonegg/msgtunnel"
)

// an upper-case echo service behind the client.
func target(listenD syncx.DoneChan, addrC chan<- string) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatal(err)
	}
	defer l.Close()

	addrC <- l.Addr().String()
	listenD.SetDone()

	conn, err := l.Accept()
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	b := make([]byte, 1024)
	for {
		n, err := conn.Read(b)
		if err != nil {
			return
		}
		for i := 0; i < n; i++ {
			if 'a' <= b[i] && b[i] <= 'z' {
				b[i] -= 'a' - 'A'
			}
		}
		conn.Write(b[:n])
	}
}

func TestExample(t *testing.T) {
	listenD := syncx.NewDoneChan()
	addrC := make(chan string, 1)
	go target(listenD, addrC)
	<-listenD
	targetAddr := <-addrC

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	serverC := make(chan *msgtunnel.Server, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			log.Fatal(err)
		}
		s := msgtunnel.NewServer(msgtunnel.LineRW(conn, conn, msgtunnel.Codec{}), "127.0.0.1:0")
		s.Start(context.Background())
		serverC <- s
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	c := msgtunnel.NewClient(msgtunnel.LineRW(conn, conn, msgtunnel.Codec{}), targetAddr)
	c.Start(context.Background())

	s := <-serverC
	<-s.ListenD()

	user, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	user.Write([]byte("hello"))

	b := make([]byte, 5)
	if _, err := io.ReadFull(user, b); err != nil {
		t.Fatal(err)
	}
	if string(b) != "HELLO" {
		t.Fatal("tunnel answer", string(b))
	}
	user.Close()

	c.Stop()
	<-c.StopD()
	<-s.StopD()

	log.Printf("tunnel stop, error: %v", s.Error())
}
