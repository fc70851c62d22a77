// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zlib"
)

// wsServer serves one websocket connection and writes the given
// pre-encoded frames to it.
func wsServer(t *testing.T, frames [][]byte, binary bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		messageType := websocket.TextMessage
		if binary {
			messageType = websocket.BinaryMessage
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(messageType, frame); err != nil {
				return
			}
		}
		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func frame(t *testing.T, eventType string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(Frame{Type: eventType, Data: raw})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestDispatch(t *testing.T) {
	msg := Message{ID: "m1", ChannelID: "c1", Content: "hello"}
	srv := wsServer(t, [][]byte{frame(t, EventMessageDelete, msg)}, false)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)}, nil, nil)

	got := make(chan Message, 1)
	c.On(EventMessageDelete, func(ctx context.Context, data json.RawMessage) {
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Errorf("unmarshal payload: %v", err)
			return
		}
		got <- m
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case m := <-got:
		if m.ID != "m1" || m.Content != "hello" {
			t.Errorf("unexpected message: %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}
}

func TestDispatchCompressed(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(frame(t, EventMessageDelete, Message{ID: "m2"})); err != nil {
		t.Fatal(err)
	}
	zw.Close()

	srv := wsServer(t, [][]byte{buf.Bytes()}, true)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), Compression: true}, nil, nil)

	got := make(chan struct{}, 1)
	c.On(EventMessageDelete, func(ctx context.Context, data json.RawMessage) {
		var m Message
		if err := json.Unmarshal(data, &m); err != nil || m.ID != "m2" {
			t.Errorf("unexpected payload: %s err=%v", data, err)
		}
		got <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for compressed event")
	}
}

func TestDispatchSurvivesBadFrameAndPanic(t *testing.T) {
	frames := [][]byte{
		[]byte("{not json"),
		frame(t, EventMessageCreate, Message{ID: "boom"}),
		frame(t, EventMessageCreate, Message{ID: "ok"}),
	}
	srv := wsServer(t, frames, false)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)}, nil, nil)

	got := make(chan string, 2)
	c.On(EventMessageCreate, func(ctx context.Context, data json.RawMessage) {
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		got <- m.ID
		if m.ID == "boom" {
			panic("handler exploded")
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	var ids []string
	for len(ids) < 2 {
		select {
		case id := <-got:
			ids = append(ids, id)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", ids)
		}
	}
	if ids[0] != "boom" || ids[1] != "ok" {
		t.Errorf("expected boom then ok, got %v", ids)
	}
}

func TestOnReady(t *testing.T) {
	srv := wsServer(t, nil, false)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)}, nil, nil)
	ready := make(chan struct{}, 1)
	c.OnReady(func() { ready <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ready callback")
	}
}

func TestSendNotConnected(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1"}, nil, nil)

	err := c.Send(context.Background(), EventMessageSend, map[string]string{"channel_id": "c1"})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan []byte, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- data
	}))
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for !c.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for connection")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := c.Send(ctx, EventMessageSend, map[string]string{"channel_id": "c1"}); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	select {
	case data := <-received:
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("server received malformed frame: %v", err)
		}
		if f.Type != EventMessageSend {
			t.Errorf("expected %s frame, got %s", EventMessageSend, f.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound frame")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := wsServer(t, nil, false)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
