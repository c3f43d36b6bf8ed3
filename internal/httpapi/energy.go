package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
)

// waterScale converts the wire value (m^3 * 10^-3) into the persisted
// unit, per spec.md §6 "internally scaled by 1/1000".
const waterScale = 1.0 / 1000.0

type heatingReadingBody struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type waterReadingBody struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	IsHot bool    `json:"is_hot"`
}

// PutHeatingReading implements PUT /api/energy/readings/heating.
func (h *Handler) PutHeatingReading(w http.ResponseWriter, r *http.Request) {
	var body heatingReadingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	device, ok := h.labels.HeatingDevices[body.Label]
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown radiator label %q", body.Label))
		return
	}

	id := extid.New("radiator_energy", device)
	if _, err := h.recorder.Add(r.Context(), id, body.Value, clock.Now()); err != nil {
		h.log.Error("heating reading store failed", "label", body.Label, "error", err)
		writeError(w, http.StatusInternalServerError, "store failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PutWaterReading implements PUT /api/energy/readings/water.
func (h *Handler) PutWaterReading(w http.ResponseWriter, r *http.Request) {
	var body waterReadingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	room, ok := h.labels.WaterRooms[body.Label]
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown water meter label %q", body.Label))
		return
	}

	variant := room + "Cold"
	if body.IsHot {
		variant = room + "Warm"
	}
	id := extid.New("total_water_consumption", variant)
	scaled := body.Value * waterScale
	if _, err := h.recorder.Add(r.Context(), id, scaled, clock.Now()); err != nil {
		h.log.Error("water reading store failed", "label", body.Label, "error", err)
		writeError(w, http.StatusInternalServerError, "store failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
