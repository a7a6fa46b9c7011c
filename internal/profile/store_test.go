package profile

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/funvibe/hostinterop/internal/dispatch"
	"github.com/funvibe/hostinterop/internal/member"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "profile.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRecordsTransitions(t *testing.T) {
	s := openTemp(t)
	site := uuid.New()
	at := time.Unix(1700000000, 42)

	s.Report(dispatch.Event{Site: site, Name: "write", From: dispatch.Uninitialized, To: dispatch.Monomorphic,
		Method: "Write([]uint8)", Shape: "(exact []uint8)", At: at})
	s.Report(dispatch.Event{Site: site, Name: "write", From: dispatch.Monomorphic, To: dispatch.Polymorphic,
		Method: "WriteString(string)", At: at.Add(time.Second)})

	got, err := s.Transitions(site)
	if err != nil {
		t.Fatalf("Transitions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(got))
	}
	if got[0].Site != site || got[0].From != "uninitialized" || got[0].To != "monomorphic" {
		t.Errorf("unexpected first transition: %+v", got[0])
	}
	if !got[0].At.Equal(at) {
		t.Errorf("timestamp = %v, want %v", got[0].At, at)
	}
	if got[1].Method != "WriteString(string)" || got[1].Shape != "" {
		t.Errorf("unexpected second transition: %+v", got[1])
	}
	if s.Failed() != 0 {
		t.Errorf("Failed() = %d", s.Failed())
	}
}

func TestStoreSummary(t *testing.T) {
	s := openTemp(t)
	busy, quiet := uuid.New(), uuid.New()
	now := time.Now()

	states := []dispatch.State{dispatch.Uninitialized, dispatch.Monomorphic, dispatch.Polymorphic, dispatch.Generic}
	for i := 0; i+1 < len(states); i++ {
		s.Report(dispatch.Event{Site: busy, Name: "f", From: states[i], To: states[i+1],
			Method: "f" + states[i+1].String(), At: now})
	}
	s.Report(dispatch.Event{Site: quiet, Name: "g", From: dispatch.Uninitialized, To: dispatch.Monomorphic,
		Method: "g(int32)", At: now})

	sum, err := s.Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(sum) != 2 {
		t.Fatalf("expected 2 sites, got %d", len(sum))
	}
	if sum[0].Site != busy || sum[0].State != "generic" || sum[0].Transitions != 3 || sum[0].Methods != 3 {
		t.Errorf("unexpected busy summary: %+v", sum[0])
	}
	if sum[1].Site != quiet || sum[1].State != "monomorphic" || sum[1].Transitions != 1 {
		t.Errorf("unexpected quiet summary: %+v", sum[1])
	}
}

func TestStoreReportAfterClose(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	s.Report(dispatch.Event{Site: uuid.New(), Name: "f"})
	if s.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", s.Failed())
	}
}

func TestStoreAsExecutorReporter(t *testing.T) {
	s := openTemp(t)
	e := dispatch.NewExecutor(dispatch.WithReporter(s))
	site := e.NewSite("noop")
	m := mustFunc(t)
	if _, err := e.Execute(site, m, noRecv, []any{int64(1)}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	got, err := s.Transitions(site.ID)
	if err != nil {
		t.Fatalf("Transitions failed: %v", err)
	}
	if len(got) != 1 || got[0].To != "monomorphic" || got[0].Name != "noop" {
		t.Fatalf("unexpected transitions: %+v", got)
	}
}

var noRecv reflect.Value

func mustFunc(t *testing.T) *member.Method {
	t.Helper()
	m, err := member.NewFunc("noop", nil, func(n int32) int32 { return n })
	if err != nil {
		t.Fatalf("NewFunc failed: %v", err)
	}
	return m
}
