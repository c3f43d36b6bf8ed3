package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"nrgchamp/homectl/internal/command"
	"nrgchamp/homectl/internal/planner"
)

func TestAddPlanningTraceAndList(t *testing.T) {
	store := NewStore()
	results := []planner.ActionResult{{Action: "heater", ShouldBeStarted: true}}

	if err := store.AddPlanningTrace(context.Background(), results); err != nil {
		t.Fatal(err)
	}

	entries := store.List(KindPlanningTrace)
	if len(entries) != 1 {
		t.Fatalf("expected 1 planning trace entry, got %d", len(entries))
	}
	if entries[0].ID == "" {
		t.Fatal("expected a generated entry id")
	}
}

func TestAddPlanningTraceCopiesInput(t *testing.T) {
	store := NewStore()
	results := []planner.ActionResult{{Action: "heater"}}
	store.AddPlanningTrace(context.Background(), results)

	results[0].Action = "mutated"

	stored := store.List(KindPlanningTrace)[0].Payload.([]planner.ActionResult)
	if stored[0].Action != "heater" {
		t.Fatalf("expected the stored trace to be insulated from later mutation of the caller's slice, got %q", stored[0].Action)
	}
}

func TestListFiltersByKind(t *testing.T) {
	store := NewStore()
	store.AddPlanningTrace(context.Background(), nil)
	store.AddCommandAudit(context.Background(), command.Command{Type: command.TypeSetPower, Device: "x"}, command.SystemSource("test"), command.Triggered)

	if got := len(store.List(KindPlanningTrace)); got != 1 {
		t.Fatalf("expected 1 planning trace entry, got %d", got)
	}
	if got := len(store.List(KindCommand)); got != 1 {
		t.Fatalf("expected 1 command audit entry, got %d", got)
	}
	if got := len(store.List("")); got != 2 {
		t.Fatalf("expected both entries with no kind filter, got %d", got)
	}
}

func TestGetEntryNotFound(t *testing.T) {
	store := NewStore()
	if _, err := store.Get("missing"); err == nil {
		t.Fatal("expected an error for an unknown entry id")
	}
}

func TestHandlerListAndGetEntry(t *testing.T) {
	store := NewStore()
	store.AddCommandAudit(context.Background(), command.Command{Type: command.TypeSetPower, Device: "x"}, command.SystemSource("test"), command.Triggered)

	r := mux.NewRouter()
	NewHandler(store).Register(r)

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/entries", nil)
	listRec := httptest.NewRecorder()
	r.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200 from list, got %d", listRec.Code)
	}

	var entries []Entry
	if err := json.Unmarshal(listRec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry in the list response, got %d", len(entries))
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/entries/"+entries[0].ID, nil)
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 from get, got %d", getRec.Code)
	}
}

func TestHandlerGetEntryNotFound(t *testing.T) {
	store := NewStore()
	r := mux.NewRouter()
	NewHandler(store).Register(r)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/entries/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown entry id, got %d", rec.Code)
	}
}
