// Package httpapi is the thin HTTP admin surface (§6): energy/water
// meter ingestion and a Prometheus backfill export, mounted on the same
// gorilla/mux router as the ledger's inspection endpoints.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/timeseries"
)

// Recorder is the subset of internal/statestore's Store this surface
// writes readings through.
type Recorder interface {
	Add(ctx context.Context, id extid.ID, value float64, ts clock.DateTime) (bool, error)
}

// BackfillSource is the subset of internal/statestore's Store the
// metrics backfill export reads through.
type BackfillSource interface {
	AllTags(ctx context.Context) ([]extid.ID, error)
	Current(ctx context.Context, id extid.ID) (timeseries.DataPoint[float64], error)
}

// Handler mounts httpapi's routes on a mux.Router.
type Handler struct {
	log      *slog.Logger
	recorder Recorder
	backfill BackfillSource
	labels   LabelConfig
}

// LabelConfig maps the vendor-facing labels §D assigns each physical
// meter to the canonical device/room ids this system addresses them by.
type LabelConfig struct {
	// HeatingDevices maps a PUT .../heating label to a radiator device id.
	HeatingDevices map[string]string
	// WaterRooms maps a PUT .../water label to a room id; the reading's
	// hot/cold flag picks the "Warm"/"Cold" suffix on top of it.
	WaterRooms map[string]string
}

func NewHandler(log *slog.Logger, recorder Recorder, backfill BackfillSource, labels LabelConfig) *Handler {
	return &Handler{log: log.With(slog.String("component", "httpapi")), recorder: recorder, backfill: backfill, labels: labels}
}

// Register mounts every route this package defines on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/energy/readings/heating", h.PutHeatingReading).Methods(http.MethodPut)
	r.HandleFunc("/api/energy/readings/water", h.PutWaterReading).Methods(http.MethodPut)
	r.HandleFunc("/admin/metrics/{scope}/backfill", h.Backfill).Methods(http.MethodPost)
}

// WithLogging wraps next with request logging, grounded on the
// aggregator's `handlers.LoggingHandler(os.Stdout, router)` wiring.
func WithLogging(next http.Handler, w io.Writer) http.Handler {
	return handlers.LoggingHandler(w, next)
}
