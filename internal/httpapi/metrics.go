package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Backfill implements POST /admin/metrics/{home|device}/backfill: it
// snapshots every current tag value into a throwaway prometheus.Registry
// and serves it through promhttp's exposition encoder, so the external
// metrics sink gets real Prometheus line protocol rather than
// hand-assembled text.
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	scope := mux.Vars(r)["scope"]
	if scope != "home" && scope != "device" {
		writeError(w, http.StatusBadRequest, "scope must be home or device")
		return
	}

	ids, err := h.backfill.AllTags(r.Context())
	if err != nil {
		h.log.Error("backfill tag listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "backfill failed")
		return
	}

	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "homectl",
		Name:      "state_value",
		Help:      "Current value of one persisted tag, backfilled on demand.",
	}, []string{"type", "variant"})
	registry.MustRegister(gauge)

	var written int
	for _, id := range ids {
		if !inScope(scope, id.Type) {
			continue
		}
		point, err := h.backfill.Current(r.Context(), id)
		if err != nil {
			continue
		}
		gauge.WithLabelValues(id.Type, id.Variant).Set(point.Value)
		written++
	}

	h.log.Info("metrics backfill served", "scope", scope, "series", written)
	promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// inScope partitions tags into "device" (raw sensor/meter readings) or
// "home" (derived state) by their type_name, since there's no separate
// persisted flag recording which side of that line a tag belongs to.
func inScope(scope, typeName string) bool {
	isDeviceType := strings.Contains(typeName, "sensor") ||
		strings.Contains(typeName, "tasmota") ||
		strings.Contains(typeName, "zigbee") ||
		strings.Contains(typeName, "homekit") ||
		strings.HasSuffix(typeName, "_energy") ||
		strings.HasPrefix(typeName, "total_water_consumption")
	if scope == "device" {
		return isDeviceType
	}
	return !isDeviceType
}
