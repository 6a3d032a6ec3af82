package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// dialTestConnection stands up a websocket server that holds the peer open,
// dials it, and wraps the client side in a Connection.
func dialTestConnection(t *testing.T) *Connection {
	t.Helper()

	hold := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peer, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer peer.CloseNow()
		<-hold
	}))
	t.Cleanup(func() {
		close(hold)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	wsConn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	var wg sync.WaitGroup
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewConnection(context.Background(), &wg, wsConn, ConnectionConfig{ReadTimeout: time.Second}, logger)
}

func TestSendAfterCloseDoesNotPanic(t *testing.T) {
	conn := dialTestConnection(t)
	conn.Run()

	conn.Close(nil)
	<-conn.Done()

	// A registry snapshot taken before the teardown can still point fan-out
	// at this transport; late frames must be dropped, not crash the process.
	for i := 0; i < 200; i++ {
		conn.Send([]byte("late frame"))
	}
}

func TestConcurrentSendAndClose(t *testing.T) {
	conn := dialTestConnection(t)
	conn.Run()

	var senders sync.WaitGroup
	for i := 0; i < 50; i++ {
		senders.Add(1)
		go func() {
			defer senders.Done()
			for j := 0; j < 20; j++ {
				conn.Send([]byte("frame"))
			}
		}()
	}
	conn.Close(errors.New("cycling session"))
	senders.Wait()
	<-conn.Done()
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := dialTestConnection(t)

	var closes int
	conn.SetOnCloseHandler(func(_ uuid.UUID, _ error) { closes++ })
	conn.Run()

	conn.Close(nil)
	conn.Close(errors.New("again"))
	<-conn.Done()

	if closes != 1 {
		t.Fatalf("expected one close callback, got %d", closes)
	}
}
