package jobs

import (
	"sync"
	"testing"
)

func TestPoolRunsEverySubmission(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := make(map[string]int)
	p := NewPool(3, func(id string) {
		mu.Lock()
		seen[id]++
		mu.Unlock()
	})

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		if !p.Submit(id) {
			t.Fatalf("Submit(%s) refused", id)
		}
	}
	p.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		if seen[id] != 1 {
			t.Fatalf("job %s ran %d times, want 1", id, seen[id])
		}
	}
}

func TestPoolFIFOWithSingleWorker(t *testing.T) {
	t.Parallel()

	var order []string
	p := NewPool(1, func(id string) {
		order = append(order, id)
	})

	for _, id := range []string{"1", "2", "3", "4"} {
		p.Submit(id)
	}
	p.Shutdown()

	want := []string{"1", "2", "3", "4"}
	if len(order) != len(want) {
		t.Fatalf("ran %d jobs, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("position %d ran %s, want %s", i, order[i], want[i])
		}
	}
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	t.Parallel()

	p := NewPool(1, func(string) {})
	p.Shutdown()
	if p.Submit("late") {
		t.Fatal("Submit accepted after Shutdown")
	}
}

func TestPoolShutdownDrainsQueue(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	var mu sync.Mutex
	var done int
	p := NewPool(1, func(id string) {
		if id == "first" {
			<-gate
		}
		mu.Lock()
		done++
		mu.Unlock()
	})

	p.Submit("first")
	p.Submit("second")
	p.Submit("third")
	close(gate)
	p.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if done != 3 {
		t.Fatalf("%d jobs finished before Shutdown returned, want 3", done)
	}
}
