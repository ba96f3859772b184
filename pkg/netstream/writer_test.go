package netstream

import (
	"testing"
	"time"

	"github.com/opd-ai/deltastate/pkg/instrument"
)

func TestFanoutWriter_DelegatesAndBroadcasts(t *testing.T) {
	h := NewHub()
	if err := h.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Stop()
	time.Sleep(50 * time.Millisecond)

	conn := dialSpectator(t, h.Addr())
	defer conn.Close()
	time.Sleep(50 * time.Millisecond)

	mem := instrument.NewMemoryWriter()
	fw := NewFanoutWriter(mem, h)

	if err := fw.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got := mem.Bytes(); string(got) != "abc" {
		t.Errorf("inner instrument bytes = %q, want %q", got, "abc")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(msg) != "abc" {
		t.Errorf("broadcast message = %q, want %q", msg, "abc")
	}

	off, err := fw.Offset()
	if err != nil || off != 3 {
		t.Errorf("Offset() = %d, %v, want 3, nil", off, err)
	}
}

func TestFanoutWriter_NilHubIsNoop(t *testing.T) {
	mem := instrument.NewMemoryWriter()
	fw := NewFanoutWriter(mem, nil)
	if err := fw.Write([]byte("xyz")); err != nil {
		t.Fatalf("Write with nil hub: %v", err)
	}
	if string(mem.Bytes()) != "xyz" {
		t.Errorf("inner bytes = %q, want %q", mem.Bytes(), "xyz")
	}
}
