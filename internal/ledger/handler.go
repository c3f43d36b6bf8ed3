package ledger

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler exposes Store over HTTP, mirroring the teacher ledger
// service's /api/v1/ledger/transactions shape but for planning/command
// entries instead of blockchain transactions.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Register mounts this handler's routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/ledger/entries", h.ListEntries).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/ledger/entries/{entryId}", h.GetEntry).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	kind := EntryKind(r.URL.Query().Get("kind"))
	writeJSON(w, http.StatusOK, h.store.List(kind))
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["entryId"]
	entry, err := h.store.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
