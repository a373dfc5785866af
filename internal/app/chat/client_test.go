package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
)

func newClientServer(t *testing.T, m *Manager) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(m, conn, "127.0.0.1").Serve()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) outFrame {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	var f outFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("frame is not JSON: %s", data)
	}
	return f
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestClientExchangesFramesOverWebSocket(t *testing.T) {
	m := newTestManager(t, Options{})
	srv := newClientServer(t, m)

	alice := dial(t, srv)
	bob := dial(t, srv)

	writeFrame(t, alice, `{"type":"register","nickname":"alice","password":"p1"}`)
	if f := readFrame(t, alice); f.Type != TypeRegistered || f.Nickname != "alice" {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if f := readFrame(t, alice); f.Type != TypeUserList {
		t.Fatalf("expected userList, got %+v", f)
	}

	writeFrame(t, bob, `{"type":"register","nickname":"bob","password":"p2"}`)
	readFrame(t, bob)
	readFrame(t, bob)

	writeFrame(t, alice, `{"type":"sendMessage","to":"bob","text":"hi"}`)

	for _, conn := range []*websocket.Conn{alice, bob} {
		f := readFrame(t, conn)
		if f.Type != TypeNewMessage {
			t.Fatalf("expected newMessage, got %+v", f)
		}
		if msg := f.chatMessage(t); msg.From != "alice" || *msg.Text != "hi" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	}
}

func TestClientRejectsBinaryAndMalformedFrames(t *testing.T) {
	m := newTestManager(t, Options{})
	conn := dial(t, newClientServer(t, m))

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("write binary frame: %v", err)
	}
	if f := readFrame(t, conn); f.Type != TypeError || f.Code != errs.ErrMalformedFrame {
		t.Fatalf("expected malformed error, got %+v", f)
	}

	writeFrame(t, conn, `{"type":`)
	if f := readFrame(t, conn); f.Type != TypeError || f.Code != errs.ErrMalformedFrame {
		t.Fatalf("expected malformed error, got %+v", f)
	}

	writeFrame(t, conn, `{"type":"getUserList"}`)
	if f := readFrame(t, conn); f.Type != TypeUserList {
		t.Fatalf("connection should stay usable, got %+v", f)
	}
}

func TestClientDisconnectUnbindsIdentity(t *testing.T) {
	m := newTestManager(t, Options{})
	srv := newClientServer(t, m)

	conn := dial(t, srv)
	writeFrame(t, conn, `{"type":"register","nickname":"alice","password":"p1"}`)
	readFrame(t, conn)
	readFrame(t, conn)

	waitFor(t, "connection to attach", func() bool { return m.Stats().Connections == 1 })

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	waitFor(t, "connection cleanup", func() bool {
		return m.Stats().Connections == 0 && len(m.sessions.ConnectionsFor("alice")) == 0
	})
	if m.Stats().Users != 1 {
		t.Fatalf("disconnect must not remove the user")
	}
}

func TestManagerShutdownClosesClients(t *testing.T) {
	m := NewManager(Options{})
	m.Start(testContext(t))
	conn := dial(t, newClientServer(t, m))

	writeFrame(t, conn, `{"type":"getUserList"}`)
	readFrame(t, conn)

	m.Shutdown(context.Background())

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected a normal close from the server, got %v", err)
	}
}

func TestClientSendAfterCloseFails(t *testing.T) {
	c := &Client{send: make(chan []byte, 1), done: make(chan struct{}), logger: logx.Component("test")}

	if err := c.Send([]byte("a")); err != nil {
		t.Fatalf("first Send failed: %v", err)
	}
	if err := c.Send([]byte("b")); err != errQueueFull {
		t.Fatalf("expected errQueueFull, got %v", err)
	}

	c.Close()
	c.Close()
	if err := c.Send([]byte("c")); err != errClientClosed {
		t.Fatalf("expected errClientClosed, got %v", err)
	}
}
