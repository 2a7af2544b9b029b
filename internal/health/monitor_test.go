package health

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pokedex-chat/console/internal/apierr"
	"github.com/pokedex-chat/console/internal/interfaces"
)

type scriptedTransport struct {
	mu   sync.Mutex
	errs []error
	idx  int
}

func (s *scriptedTransport) Execute(ctx context.Context, desc interfaces.RequestDescriptor) (*interfaces.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.idx < len(s.errs) {
		err = s.errs[s.idx]
	}
	s.idx++
	if err != nil {
		return nil, err
	}
	return &interfaces.Response{StatusCode: 200, Body: []byte(`{}`)}, nil
}

func TestMonitorStartsChecking(t *testing.T) {
	m := NewMonitor(&scriptedTransport{})
	if got := m.Current().Status; got != StatusChecking {
		t.Errorf("Expected checking before the first probe, got %v", got)
	}
}

func TestCheckRecordsReady(t *testing.T) {
	m := NewMonitor(&scriptedTransport{})

	snapshot := m.Check(context.Background())
	if snapshot.Status != StatusReady {
		t.Errorf("Expected ready, got %v", snapshot.Status)
	}
	if m.Current().Status != StatusReady {
		t.Errorf("Current must reflect the probe")
	}
}

func TestCheckRecordsOffline(t *testing.T) {
	tr := &scriptedTransport{errs: []error{
		&apierr.NetworkError{Op: "GET /", Cause: errors.New("connection refused")},
	}}
	m := NewMonitor(tr)

	snapshot := m.Check(context.Background())
	if snapshot.Status != StatusOffline {
		t.Errorf("Expected offline, got %v", snapshot.Status)
	}
	if snapshot.Error == "" {
		t.Errorf("Expected the probe error recorded")
	}
}

func TestHistoryIsBounded(t *testing.T) {
	m := NewMonitor(&scriptedTransport{})

	for n := 0; n < maxHistorySize+5; n++ {
		m.Check(context.Background())
	}

	history := m.History()
	if len(history) != maxHistorySize {
		t.Errorf("Expected history capped at %d, got %d", maxHistorySize, len(history))
	}
}

func TestRecoveryAfterOutage(t *testing.T) {
	tr := &scriptedTransport{errs: []error{
		&apierr.NetworkError{Op: "GET /", Cause: errors.New("connection refused")},
		nil,
	}}
	m := NewMonitor(tr)

	if got := m.Check(context.Background()).Status; got != StatusOffline {
		t.Fatalf("Expected offline first, got %v", got)
	}
	if got := m.Check(context.Background()).Status; got != StatusReady {
		t.Fatalf("Expected ready after recovery, got %v", got)
	}
}
