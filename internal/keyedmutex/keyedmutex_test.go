package keyedmutex

import (
	"sync"
	"testing"
)

func TestSameKeySameMutex(t *testing.T) {
	m := New()
	if m.Get("005930") != m.Get("005930") {
		t.Fatal("same key must return the same mutex")
	}
	if m.Get("005930") == m.Get("000660") {
		t.Fatal("distinct keys must return distinct mutexes")
	}
}

func TestSerializesPerKey(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := m.Get("005930")
			l.Lock()
			counter++
			l.Unlock()
		}()
	}
	wg.Wait()
	if counter != 100 {
		t.Fatalf("counter = %d, want 100", counter)
	}
}
