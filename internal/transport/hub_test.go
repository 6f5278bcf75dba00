package transport

import "testing"

func TestHubRoomBookkeeping(t *testing.T) {
	h := NewHub()
	h.JoinRoom("ABC123", "u1")
	h.JoinRoom("ABC123", "u2")

	h.mu.RLock()
	n := len(h.rooms["ABC123"])
	h.mu.RUnlock()
	if n != 2 {
		t.Fatalf("room members = %d, want 2", n)
	}

	h.LeaveRoom("ABC123", "u1")
	h.remove("u2") // connection teardown scrubs memberships too

	h.mu.RLock()
	_, ok := h.rooms["ABC123"]
	h.mu.RUnlock()
	if ok {
		t.Fatalf("empty room not reclaimed")
	}

	// broadcasting into a gone room or to a gone handle is harmless
	h.BroadcastRoom("ABC123", "x", nil)
	h.SendTo("u1", "x", nil)
	if h.Count() != 0 {
		t.Fatalf("count = %d, want 0", h.Count())
	}
}

func TestHubCloseRoom(t *testing.T) {
	h := NewHub()
	h.JoinRoom("ABC123", "u1")
	h.JoinRoom("ABC123", "u2")
	h.CloseRoom("ABC123")

	h.mu.RLock()
	_, ok := h.rooms["ABC123"]
	h.mu.RUnlock()
	if ok {
		t.Fatalf("room survived close")
	}
	// closing twice is harmless
	h.CloseRoom("ABC123")
}
