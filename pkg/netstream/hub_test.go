package netstream

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNewHub(t *testing.T) {
	h := NewHub()
	if h == nil {
		t.Fatal("NewHub returned nil")
	}
	if h.spectators == nil {
		t.Fatal("spectators map not initialized")
	}
}

func TestHub_StartStop(t *testing.T) {
	h := NewHub()
	if err := h.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if h.Addr() == "" {
		t.Fatal("Addr() empty after Start")
	}
	if err := h.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func dialSpectator(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	url := "ws://" + addr + "/spectate"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s): %v", url, err)
	}
	return conn
}

func TestHub_BroadcastToSpectator(t *testing.T) {
	h := NewHub()
	if err := h.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Stop()
	time.Sleep(50 * time.Millisecond)

	conn := dialSpectator(t, h.Addr())
	defer conn.Close()
	time.Sleep(50 * time.Millisecond)

	if got := h.SpectatorCount(); got != 1 {
		t.Fatalf("SpectatorCount = %d, want 1", got)
	}

	h.Broadcast([]byte("hello spectator"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(msg) != "hello spectator" {
		t.Errorf("message = %q, want %q", msg, "hello spectator")
	}
}

func TestHub_DisconnectRemovesSpectator(t *testing.T) {
	h := NewHub()
	if err := h.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Stop()
	time.Sleep(50 * time.Millisecond)

	conn := dialSpectator(t, h.Addr())
	time.Sleep(50 * time.Millisecond)
	if got := h.SpectatorCount(); got != 1 {
		t.Fatalf("SpectatorCount = %d, want 1", got)
	}

	conn.Close()
	time.Sleep(100 * time.Millisecond)

	if got := h.SpectatorCount(); got != 0 {
		t.Errorf("SpectatorCount after disconnect = %d, want 0", got)
	}
}

func TestHub_MultipleSpectators(t *testing.T) {
	h := NewHub()
	if err := h.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Stop()
	time.Sleep(50 * time.Millisecond)

	const n = 5
	conns := make([]*websocket.Conn, n)
	for i := 0; i < n; i++ {
		conns[i] = dialSpectator(t, h.Addr())
		defer conns[i].Close()
	}
	time.Sleep(100 * time.Millisecond)

	if got := h.SpectatorCount(); got != n {
		t.Fatalf("SpectatorCount = %d, want %d", got, n)
	}

	h.Broadcast([]byte("state bytes"))

	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("spectator %d ReadMessage: %v", i, err)
		}
		if !strings.Contains(string(msg), "state bytes") {
			t.Errorf("spectator %d message = %q", i, msg)
		}
	}
}

func TestHub_AddrBeforeStart(t *testing.T) {
	h := NewHub()
	if addr := h.Addr(); addr != "" {
		t.Errorf("Addr() before Start = %q, want empty", addr)
	}
}

func ExampleHub_Broadcast() {
	h := NewHub()
	h.Broadcast([]byte("no spectators connected, nothing happens"))
	fmt.Println(h.SpectatorCount())
	// Output: 0
}
