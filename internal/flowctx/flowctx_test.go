package flowctx

import (
	"sync"
	"testing"
)

func TestGlobalSetThenGetRoundTrip(t *testing.T) {
	s := New()
	s.SetGlobal("count", 1)
	if got := s.GetGlobal("count"); got != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestFlowNamespacesAreIsolated(t *testing.T) {
	s := New()
	s.SetFlow("f1", "x", "a")
	s.SetFlow("f2", "x", "b")

	if got := s.GetFlow("f1", "x"); got != "a" {
		t.Fatalf("f1.x = %v", got)
	}
	if got := s.GetFlow("f2", "x"); got != "b" {
		t.Fatalf("f2.x = %v", got)
	}
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	s := New()
	if got := s.GetGlobal("missing"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := s.GetFlow("nope", "missing"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestConcurrentAccessIsSafe(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.SetGlobal("k", i)
		}(i)
		go func() {
			defer wg.Done()
			s.GetGlobal("k")
		}()
	}
	wg.Wait()
}
