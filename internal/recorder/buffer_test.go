package recorder

import (
	"testing"
)

func TestGrowableBuffer_SendReceive(t *testing.T) {
	b := newGrowableBuffer[int](4)

	for i := 0; i < 3; i++ {
		if !b.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}
	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}

	for i := 0; i < 3; i++ {
		got, ok := b.TryReceive()
		if !ok {
			t.Fatalf("TryReceive() not ok at %d", i)
		}
		if got != i {
			t.Errorf("TryReceive() = %d, want %d (FIFO order)", got, i)
		}
	}

	if _, ok := b.TryReceive(); ok {
		t.Error("TryReceive() ok on empty buffer")
	}
}

func TestGrowableBuffer_Grows(t *testing.T) {
	b := newGrowableBuffer[int](4)

	// Well past initial capacity; Send must never fail or drop.
	for i := 0; i < 100; i++ {
		if !b.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}
	if b.Cap() < 100 {
		t.Errorf("Cap() = %d, want >= 100 after growth", b.Cap())
	}

	for i := 0; i < 100; i++ {
		got, ok := b.TryReceive()
		if !ok || got != i {
			t.Fatalf("TryReceive() = %d, %v, want %d, true", got, ok, i)
		}
	}
}

func TestGrowableBuffer_GrowPreservesWrappedOrder(t *testing.T) {
	b := newGrowableBuffer[int](8)

	// Advance head so the live region wraps, then force a grow.
	for i := 0; i < 4; i++ {
		b.Send(i)
	}
	for i := 0; i < 4; i++ {
		b.TryReceive()
	}
	for i := 10; i < 30; i++ {
		b.Send(i)
	}

	for i := 10; i < 30; i++ {
		got, ok := b.TryReceive()
		if !ok || got != i {
			t.Fatalf("TryReceive() = %d, %v, want %d, true", got, ok, i)
		}
	}
}

func TestGrowableBuffer_DrainTo(t *testing.T) {
	b := newGrowableBuffer[int](4)
	for i := 0; i < 10; i++ {
		b.Send(i)
	}

	first := b.DrainTo(4)
	if len(first) != 4 {
		t.Fatalf("DrainTo(4) returned %d items", len(first))
	}
	for i, v := range first {
		if v != i {
			t.Errorf("first[%d] = %d, want %d", i, v, i)
		}
	}

	rest := b.DrainTo(0)
	if len(rest) != 6 {
		t.Fatalf("DrainTo(0) returned %d items, want 6", len(rest))
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d after full drain", b.Len())
	}

	if b.DrainTo(0) != nil {
		t.Error("DrainTo on empty buffer should return nil")
	}
}

func TestGrowableBuffer_Close(t *testing.T) {
	b := newGrowableBuffer[string](4)
	b.Send("kept")
	b.Close()

	if b.Send("dropped") {
		t.Error("Send after Close should return false")
	}

	got, ok := b.TryReceive()
	if !ok || got != "kept" {
		t.Errorf("TryReceive() = %q, %v; items sent before Close must remain drainable", got, ok)
	}
}
