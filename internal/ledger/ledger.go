// Package ledger is the append-only audit trail for planning decisions
// and command writes: every ActionResult table passed to
// AddPlanningTrace and every outcome passed to AddCommandAudit gets one
// entry here, kept in memory and served over HTTP for inspection.
// Nothing outside the tests calls AddCommandAudit, so issued commands
// are not recorded automatically.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/command"
	"nrgchamp/homectl/internal/planner"
)

type EntryKind string

const (
	KindPlanningTrace EntryKind = "planning_trace"
	KindCommand       EntryKind = "command"
)

// Entry is one append-only ledger row. Payload is KindPlanningTrace's
// []planner.ActionResult or KindCommand's CommandAudit, picked by Kind.
type Entry struct {
	ID        string
	Kind      EntryKind
	Timestamp clock.DateTime
	Payload   any
}

// CommandAudit records one command.Store.Execute call's outcome.
type CommandAudit struct {
	Command command.Command
	Source  command.Source
	Result  command.Result
}

// Store is the in-memory ledger. Unlike the teacher's LocalLedger slice
// (appended to with no locking), every access here goes through mu.
type Store struct {
	mu      sync.Mutex
	entries []Entry
}

func NewStore() *Store {
	return &Store{}
}

// AddPlanningTrace implements planner.Tracer.
func (s *Store) AddPlanningTrace(ctx context.Context, results []planner.ActionResult) error {
	s.append(KindPlanningTrace, append([]planner.ActionResult(nil), results...))
	return nil
}

// AddCommandAudit records a command.Store.Execute outcome.
func (s *Store) AddCommandAudit(ctx context.Context, cmd command.Command, source command.Source, result command.Result) error {
	s.append(KindCommand, CommandAudit{Command: cmd, Source: source, Result: result})
	return nil
}

func (s *Store) append(kind EntryKind, payload any) Entry {
	e := Entry{ID: uuid.New().String(), Kind: kind, Timestamp: clock.Now(), Payload: payload}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return e
}

// List returns every entry of kind, oldest first. An empty kind returns
// every entry regardless of kind.
func (s *Store) List(kind EntryKind) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == "" {
		return append([]Entry(nil), s.entries...)
	}
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) Get(id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("ledger entry %s not found", id)
}
