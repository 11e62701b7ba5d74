package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// scriptedPing returns the next error from results on each call, then nil
type scriptedPing struct {
	mu      sync.Mutex
	results []error
}

func (s *scriptedPing) ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return nil
	}
	err := s.results[0]
	s.results = s.results[1:]
	return err
}

type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *recorder) handlers() Events {
	return Events{
		Disconnected: func() { r.add("disconnected", nil) },
		Error:        func(err error) { r.add("error", err) },
		Reconnected:  func() { r.add("reconnected", nil) },
	}
}

func (r *recorder) add(event string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

func TestMonitorProbeTransitions(t *testing.T) {
	errDown := errors.New("connection refused")
	p := &scriptedPing{results: []error{nil, errDown, errDown, nil, nil}}

	m := newMonitor(p.ping, time.Hour, time.Second)
	rec := &recorder{}
	m.subscribe(rec.handlers())

	ctx := context.Background()
	for range 5 {
		m.probe(ctx)
	}

	want := []string{"disconnected", "error", "error", "reconnected"}
	if len(rec.events) != len(want) {
		t.Fatalf("got events %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, rec.events[i], want[i])
		}
	}
	for _, err := range rec.errs {
		if !errors.Is(err, errDown) {
			t.Errorf("error event carried %v, want %v", err, errDown)
		}
	}
}

func TestMonitorNilHandlersAreSkipped(t *testing.T) {
	p := &scriptedPing{results: []error{errors.New("boom")}}
	m := newMonitor(p.ping, time.Hour, time.Second)

	var errorsSeen int
	m.subscribe(Events{Error: func(error) { errorsSeen++ }})

	m.probe(context.Background())

	if errorsSeen != 1 {
		t.Errorf("got %d error events, want 1", errorsSeen)
	}
}

func TestMonitorLoopAndStop(t *testing.T) {
	var calls atomic.Int32
	ping := func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("down")
	}

	m := newMonitor(ping, 5*time.Millisecond, time.Second)
	disconnected := make(chan struct{}, 1)
	m.subscribe(Events{Disconnected: func() {
		select {
		case disconnected <- struct{}{}:
		default:
		}
	}})

	m.start()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not report the disconnect")
	}

	m.stop()
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != after {
		t.Error("monitor kept probing after stop")
	}
}

func TestMonitorStopWithoutStart(t *testing.T) {
	m := newMonitor(func(context.Context) error { return nil }, time.Second, time.Second)
	// must not block or panic
	m.stop()
}
