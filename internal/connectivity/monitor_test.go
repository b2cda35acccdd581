package connectivity

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestProbeTransitions(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	m := NewMonitor(addr, time.Hour)
	if m.Online() {
		t.Fatal("monitor should start offline")
	}

	m.probe(context.Background())
	if !m.Online() {
		t.Fatal("probe against live listener should go online")
	}

	ln.Close()
	m.probe(context.Background())
	if m.Online() {
		t.Fatal("probe against closed listener should go offline")
	}
}

func TestSetOnline(t *testing.T) {
	m := NewMonitor("127.0.0.1:1", time.Hour)
	m.SetOnline(true)
	if !m.Online() {
		t.Fatal("SetOnline(true) not reflected")
	}
	m.SetOnline(false)
	if m.Online() {
		t.Fatal("SetOnline(false) not reflected")
	}
}
