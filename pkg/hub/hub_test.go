package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	geojson "github.com/paulmach/go.geojson"
	"github.com/sudorandom/fire-stream/pkg/firesim"
)

func frame(seq uint64, step int) *firesim.Frame {
	return &firesim.Frame{
		Seq:        seq,
		Step:       step,
		Time:       "t",
		Collection: geojson.NewFeatureCollection(),
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestSetDataBeforeRun(t *testing.T) {
	h := New()
	if err := h.SetData(frame(1, 0)); !errors.Is(err, firesim.ErrSinkUnavailable) {
		t.Errorf("SetData before Run = %v, want ErrSinkUnavailable", err)
	}
}

func TestSetDataAfterStop(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	<-h.started
	if err := h.SetData(frame(1, 0)); err != nil {
		t.Fatalf("SetData while running = %v", err)
	}
	cancel()
	<-stopped
	if err := h.SetData(frame(2, 1)); !errors.Is(err, firesim.ErrSinkUnavailable) {
		t.Errorf("SetData after stop = %v, want ErrSinkUnavailable", err)
	}
}

func TestLatestFrameWins(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)
	<-h.started

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	if err := h.SetData(frame(2, 7)); err != nil {
		t.Fatal(err)
	}

	conn := dial(t, srv)
	defer conn.Close()

	// A new client starts from the latest frame.
	msg := readMessage(t, conn)
	if msg.Type != "frame" || msg.Seq != 2 || msg.Step != 7 {
		t.Fatalf("first message = %+v", msg)
	}
	if msg.Payload == nil || len(msg.Payload.Features) != 0 {
		t.Errorf("payload = %+v", msg.Payload)
	}

	// A stale frame is dropped; the next one arrives.
	if err := h.SetData(frame(1, 3)); err != nil {
		t.Fatal(err)
	}
	if err := h.SetData(frame(3, 8)); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Seq != 3 || msg.Step != 8 {
		t.Errorf("second message = %+v, want seq 3", msg)
	}
	if h.Clients() != 1 {
		t.Errorf("Clients = %d, want 1", h.Clients())
	}
}

func TestClientsUnregister(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn := dial(t, srv)
	deadline := time.Now().Add(5 * time.Second)
	for h.Clients() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	conn.Close()
	for h.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if h.Clients() != 0 {
		t.Errorf("Clients = %d after disconnect, want 0", h.Clients())
	}
}
