package bufpool

import (
	"sync"
	"testing"
	"time"
)

func TestPool_GetRelease(t *testing.T) {
	pool := New(4096, 4)

	buf, ok := pool.Get()
	if !ok {
		t.Fatal("expected Get to succeed")
	}
	if len(buf.Bytes()) != 4096 {
		t.Errorf("expected block length 4096, got %d", len(buf.Bytes()))
	}
	buf.Release()

	buf2, ok := pool.Get()
	if !ok {
		t.Fatal("expected Get to succeed")
	}
	if len(buf2.Bytes()) != 4096 {
		t.Errorf("expected block length 4096, got %d", len(buf2.Bytes()))
	}
	buf2.Release()
}

func TestPool_BlocksWhenExhausted(t *testing.T) {
	pool := New(64, 1)

	buf, ok := pool.Get()
	if !ok {
		t.Fatal("expected first Get to succeed")
	}

	got := make(chan bool, 1)
	go func() {
		_, ok := pool.GetTimeout(50 * time.Millisecond)
		got <- ok
	}()

	if ok := <-got; ok {
		t.Error("expected GetTimeout to time out while pool is exhausted")
	}

	buf.Release()

	buf2, ok := pool.Get()
	if !ok {
		t.Fatal("expected Get to succeed after release")
	}
	buf2.Release()
}

func TestPool_Cancel(t *testing.T) {
	pool := New(64, 1)
	buf, _ := pool.Get()

	done := make(chan bool, 1)
	go func() {
		_, ok := pool.Get()
		done <- ok
	}()

	pool.Cancel()
	if ok := <-done; ok {
		t.Error("expected cancelled Get to return ok=false")
	}
	buf.Release()
}

func TestPool_Conservation(t *testing.T) {
	const capacity = 8
	pool := New(128, capacity)

	var wg sync.WaitGroup
	for i := 0; i < capacity*4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf, ok := pool.Get()
			if !ok {
				return
			}
			time.Sleep(time.Millisecond)
			buf.Release()
		}()
	}
	wg.Wait()

	pool.mu.Lock()
	freeCount := len(pool.free)
	pool.mu.Unlock()
	if freeCount != capacity {
		t.Errorf("expected all %d blocks free, got %d", capacity, freeCount)
	}
}

func TestPool_PanicOnZeroSize(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for zero blockSize")
		}
	}()
	New(0, 4)
}

func TestPool_PanicOnZeroCount(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for zero blockCount")
		}
	}()
	New(64, 0)
}
