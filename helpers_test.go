package gorawronion

import (
	"fmt"
	"slices"
	"sync"
	"testing"
)

// state is the context value used throughout the tests. The mutex lets
// goroutine-backed handlers share it.
type state struct {
	mu  sync.Mutex
	log []string
}

func (s *state) add(entry string) {
	s.mu.Lock()
	s.log = append(s.log, entry)
	s.mu.Unlock()
}

func (s *state) entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.log)
}

// makeTag returns a handler that logs tag:before, continues, and logs
// tag:after once the rest of the pipeline has settled.
func makeTag(tag string) Handler[*state] {
	return func(s *state, next Next) *Completion {
		s.add(tag + ":before")
		return next().Then(func(err error) error {
			s.add(tag + ":after")
			return err
		})
	}
}

func makeTags(n int) []Handler[*state] {
	hs := make([]Handler[*state], n)
	for i := range hs {
		hs[i] = makeTag(fmt.Sprintf("%d", i))
	}
	return hs
}

func mustCompose(t *testing.T, hs []Handler[*state], opts ...Option) Invoker[*state] {
	t.Helper()
	run, err := Compose(hs, opts...)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	return run
}

func assertLog(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("log mismatch: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("log[%d] = %q, want %q\nfull: %v", i, got[i], want[i], got)
		}
	}
}
