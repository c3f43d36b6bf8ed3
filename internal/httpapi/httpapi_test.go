package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/timeseries"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeRecorder struct {
	adds []struct {
		id    extid.ID
		value float64
	}
	fail error
}

func (f *fakeRecorder) Add(ctx context.Context, id extid.ID, value float64, ts clock.DateTime) (bool, error) {
	if f.fail != nil {
		return false, f.fail
	}
	f.adds = append(f.adds, struct {
		id    extid.ID
		value float64
	}{id, value})
	return true, nil
}

type fakeBackfill struct {
	tags    []extid.ID
	current map[extid.ID]float64
}

func (f *fakeBackfill) AllTags(ctx context.Context) ([]extid.ID, error) { return f.tags, nil }

func (f *fakeBackfill) Current(ctx context.Context, id extid.ID) (timeseries.DataPoint[float64], error) {
	v, ok := f.current[id]
	if !ok {
		return timeseries.DataPoint[float64]{}, errors.New("no current value")
	}
	return timeseries.DataPoint[float64]{Value: v, Timestamp: clock.Now()}, nil
}

func newTestRouter(rec *fakeRecorder, bf *fakeBackfill, labels LabelConfig) *mux.Router {
	r := mux.NewRouter()
	NewHandler(testLogger(), rec, bf, labels).Register(r)
	return r
}

func doRequest(r *mux.Router, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPutWaterReadingScalesAndMapsLabel(t *testing.T) {
	rec := &fakeRecorder{}
	labels := LabelConfig{WaterRooms: map[string]string{"Bad": "Bathroom"}}
	router := newTestRouter(rec, &fakeBackfill{}, labels)

	body, _ := json.Marshal(waterReadingBody{Label: "Bad", Value: 12345, IsHot: true})
	resp := doRequest(router, http.MethodPut, "/api/energy/readings/water", body)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(rec.adds) != 1 {
		t.Fatalf("expected 1 recorded reading, got %d", len(rec.adds))
	}
	got := rec.adds[0]
	if got.id.Type != "total_water_consumption" || got.id.Variant != "BathroomWarm" {
		t.Fatalf("unexpected id: %+v", got.id)
	}
	if got.value != 12.345 {
		t.Fatalf("expected scaled value 12.345, got %v", got.value)
	}
}

func TestPutWaterReadingUnknownLabelIs422(t *testing.T) {
	router := newTestRouter(&fakeRecorder{}, &fakeBackfill{}, LabelConfig{WaterRooms: map[string]string{}})
	body, _ := json.Marshal(waterReadingBody{Label: "Unknown", Value: 1})
	resp := doRequest(router, http.MethodPut, "/api/energy/readings/water", body)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
}

func TestPutHeatingReadingMapsLabelToDevice(t *testing.T) {
	rec := &fakeRecorder{}
	labels := LabelConfig{HeatingDevices: map[string]string{"WZ": "living_room_radiator"}}
	router := newTestRouter(rec, &fakeBackfill{}, labels)

	body, _ := json.Marshal(heatingReadingBody{Label: "WZ", Value: 42.0})
	resp := doRequest(router, http.MethodPut, "/api/energy/readings/heating", body)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if rec.adds[0].id.Variant != "living_room_radiator" || rec.adds[0].value != 42.0 {
		t.Fatalf("unexpected recorded reading: %+v", rec.adds[0])
	}
}

func TestPutHeatingReadingMalformedBodyIs400(t *testing.T) {
	router := newTestRouter(&fakeRecorder{}, &fakeBackfill{}, LabelConfig{})
	resp := doRequest(router, http.MethodPut, "/api/energy/readings/heating", []byte("not json"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestBackfillFiltersByScope(t *testing.T) {
	bf := &fakeBackfill{
		tags: []extid.ID{
			extid.New("tasmota_sensor", "kitchen_kettle::power"),
			extid.New("comfort", "bedroom"),
		},
		current: map[extid.ID]float64{
			extid.New("tasmota_sensor", "kitchen_kettle::power"): 1,
			extid.New("comfort", "bedroom"):                      0.8,
		},
	}
	router := newTestRouter(&fakeRecorder{}, bf, LabelConfig{})

	resp := doRequest(router, http.MethodPost, "/admin/metrics/device/backfill", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `type="tasmota_sensor"`) {
		t.Fatalf("expected device-scoped series in body, got %q", resp.Body.String())
	}
	if strings.Contains(resp.Body.String(), `type="comfort"`) {
		t.Fatalf("expected home-scoped series excluded from device scope, got %q", resp.Body.String())
	}
}

func TestBackfillInvalidScopeIs400(t *testing.T) {
	router := newTestRouter(&fakeRecorder{}, &fakeBackfill{}, LabelConfig{})
	resp := doRequest(router, http.MethodPost, "/admin/metrics/bogus/backfill", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
