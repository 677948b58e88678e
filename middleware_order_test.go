package gorawronion

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestOnionOrder_Then(t *testing.T) {
	run := mustCompose(t, makeTags(3))

	s := &state{}
	if err := run(s, nil).Await(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertLog(t, s.entries(), []string{
		"0:before", "1:before", "2:before",
		"2:after", "1:after", "0:after",
	})
}

func TestOnionOrder_Func(t *testing.T) {
	mk := func(tag string) Handler[*state] {
		return Func(func(s *state, next func() error) error {
			s.add(tag + ":before")
			err := next()
			s.add(tag + ":after")
			return err
		})
	}
	run := mustCompose(t, []Handler[*state]{mk("A"), mk("B"), mk("C")})

	s := &state{}
	if err := run(s, nil).Await(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertLog(t, s.entries(), []string{
		"A:before", "B:before", "C:before",
		"C:after", "B:after", "A:after",
	})
}

func TestOnionOrder_Go(t *testing.T) {
	mk := func(tag string) Handler[*state] {
		return Go(func(s *state, next func() error) error {
			s.add(tag + ":before")
			time.Sleep(time.Millisecond)
			err := next()
			s.add(tag + ":after")
			return err
		})
	}
	run := mustCompose(t, []Handler[*state]{mk("A"), mk("B"), mk("C")})

	s := &state{}
	if err := run(s, nil).Wait(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertLog(t, s.entries(), []string{
		"A:before", "B:before", "C:before",
		"C:after", "B:after", "A:after",
	})
}

func TestOnionOrder_EntryOrderIsAscending(t *testing.T) {
	const n = 25

	var (
		mu      sync.Mutex
		counter int
		entered = make([]int, n)
	)
	hs := make([]Handler[*state], n)
	for i := range hs {
		hs[i] = func(_ *state, next Next) *Completion {
			mu.Lock()
			entered[counter] = i
			counter++
			mu.Unlock()
			return next()
		}
	}
	run := mustCompose(t, hs)

	if err := run(&state{}, nil).Await(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counter != n {
		t.Fatalf("entered %d handlers, want %d", counter, n)
	}
	for i := range entered {
		if entered[i] != i {
			t.Fatalf("entry %d was position %d\nfull: %v", i, entered[i], entered)
		}
	}
}

func TestOnionOrder_ShortCircuit(t *testing.T) {
	stop := func(s *state, _ Next) *Completion {
		s.add("stop")
		return nil
	}
	run := mustCompose(t, []Handler[*state]{makeTag("A"), stop, makeTag("C")})

	s := &state{}
	if err := run(s, nil).Await(); err != nil {
		t.Fatalf("short-circuit must not be an error: %v", err)
	}
	assertLog(t, s.entries(), []string{"A:before", "stop", "A:after"})
}

func TestOnionOrder_OuterWaitsForAfterWork(t *testing.T) {
	slow := func(s *state, next Next) *Completion {
		downstream := next()
		return Async(func() error {
			if err := downstream.Await(); err != nil {
				return err
			}
			time.Sleep(20 * time.Millisecond)
			s.add("slow:after")
			return nil
		})
	}
	run := mustCompose(t, []Handler[*state]{makeTag("A"), slow})

	s := &state{}
	c := run(s, nil)
	if err := c.Await(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertLog(t, s.entries(), []string{"A:before", "slow:after", "A:after"})
}

func TestOnionOrder_ConcurrentRunsAreIndependent(t *testing.T) {
	hs := []Handler[*state]{
		makeTag("A"),
		Go(func(s *state, next func() error) error {
			s.add("B:before")
			err := next()
			s.add("B:after")
			return err
		}),
		makeTag("C"),
	}
	run := mustCompose(t, hs)

	const runs = 32
	states := make([]*state, runs)
	var wg sync.WaitGroup
	for i := range runs {
		states[i] = &state{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(states[i], nil).Await(); err != nil {
				t.Errorf("run %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	want := []string{"A:before", "B:before", "C:before", "C:after", "B:after", "A:after"}
	for i, s := range states {
		t.Run(fmt.Sprintf("run-%d", i), func(t *testing.T) {
			assertLog(t, s.entries(), want)
		})
	}
}

func TestOnionOrder_NestedPipeline(t *testing.T) {
	inner, err := New([]Handler[*state]{makeTag("inner-a"), makeTag("inner-b")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	run := mustCompose(t, []Handler[*state]{makeTag("outer-a"), inner.Handler(), makeTag("outer-c")})

	s := &state{}
	if err := run(s, nil).Await(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertLog(t, s.entries(), []string{
		"outer-a:before",
		"inner-a:before",
		"inner-b:before",
		"outer-c:before",
		"outer-c:after",
		"inner-b:after",
		"inner-a:after",
		"outer-a:after",
	})
}
