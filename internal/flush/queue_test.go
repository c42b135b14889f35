package flush

import (
	"sync"
	"testing"
)

func TestQueuePushPop(t *testing.T) {
	q := NewQueue[int](4)

	for i := 1; i <= 3; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}
	if got := q.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}

	for i := 1; i <= 3; i++ {
		v, ok := q.TryPop()
		if !ok {
			t.Fatalf("TryPop() returned false at %d", i)
		}
		if v != i {
			t.Errorf("TryPop() = %d, want %d (FIFO order)", v, i)
		}
	}

	if _, ok := q.TryPop(); ok {
		t.Error("TryPop() on empty queue should return false")
	}
}

func TestQueueGrows(t *testing.T) {
	q := NewQueue[int](2)

	// Far beyond initial capacity; Push must never fail.
	for i := 0; i < 1000; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) returned false", i)
		}
	}
	if got := q.Len(); got != 1000 {
		t.Fatalf("Len() = %d, want 1000", got)
	}

	for i := 0; i < 1000; i++ {
		v, ok := q.TryPop()
		if !ok || v != i {
			t.Fatalf("TryPop() = %d,%v, want %d,true", v, ok, i)
		}
	}
}

func TestQueueGrowPreservesWrappedOrder(t *testing.T) {
	q := NewQueue[int](8)

	// Wrap the ring: fill a bit, drain a bit, then force growth.
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	for i := 0; i < 3; i++ {
		q.TryPop()
	}
	for i := 5; i < 40; i++ {
		q.Push(i)
	}

	for want := 3; want < 40; want++ {
		v, ok := q.TryPop()
		if !ok || v != want {
			t.Fatalf("TryPop() = %d,%v, want %d,true", v, ok, want)
		}
	}
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue[int](4)
	for i := 0; i < 10; i++ {
		q.Push(i)
	}

	part := q.Drain(4)
	if len(part) != 4 {
		t.Fatalf("Drain(4) returned %d items, want 4", len(part))
	}
	for i, v := range part {
		if v != i {
			t.Errorf("Drain(4)[%d] = %d, want %d", i, v, i)
		}
	}

	rest := q.Drain(0)
	if len(rest) != 6 {
		t.Fatalf("Drain(0) returned %d items, want 6", len(rest))
	}
	if got := q.Len(); got != 0 {
		t.Errorf("Len() after drain = %d, want 0", got)
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue[int](4)
	q.Push(1)
	q.Close()

	if q.Push(2) {
		t.Error("Push after Close should return false")
	}

	// Items pushed before Close are still readable.
	v, ok := q.Pop()
	if !ok || v != 1 {
		t.Errorf("Pop() = %d,%v, want 1,true", v, ok)
	}

	// Pop on a closed empty queue returns immediately.
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on closed empty queue should return false")
	}
}

func TestQueueCloseWakesBlockedPop(t *testing.T) {
	q := NewQueue[int](4)

	done := make(chan struct{})
	go func() {
		q.Pop()
		close(done)
	}()

	q.Close()
	<-done
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue[int](8)

	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	if got := q.Len(); got != producers*perProducer {
		t.Errorf("Len() = %d, want %d", got, producers*perProducer)
	}
}
