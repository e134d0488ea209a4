package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// newEchoServer starts a local websocket server that echoes every
// message it receives, so Client can be exercised without a real
// broker.
func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, payload); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientSendReceiveRoundTrip(t *testing.T) {
	srv := newEchoServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	client, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := client.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
}

func TestClientDialRefused(t *testing.T) {
	if _, err := Dial(context.Background(), "ws://127.0.0.1:1/nope"); err == nil {
		t.Fatalf("expected dial error for an unreachable broker")
	}
}
