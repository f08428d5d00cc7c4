package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/capscreen/internal/library"
	"github.com/sells-group/capscreen/internal/model"
	"github.com/sells-group/capscreen/internal/scoring"
)

// api bundles the handlers behind the screening HTTP surface.
type api struct {
	store   library.Store
	builder *library.Builder
}

// newRouter wires the full route table. Split out from the serve
// command so tests can drive it with httptest.
func newRouter(store library.Store, builder *library.Builder) chi.Router {
	a := &api{store: store, builder: builder}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.health)
		r.Get("/health/db", a.dbHealth)
		r.Get("/cities", a.listCities)
		r.Get("/cities/{cityID}", a.getCity)
		r.Get("/cities/{cityID}/segments", a.citySegments)
		r.Get("/segments/{segmentID}/inputs", a.getInputs)
		r.Patch("/segments/{segmentID}/inputs", a.patchInputs)
		r.Get("/segments/{segmentID}/score", a.scoreSegment)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) dbHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		zap.L().Error("db health check failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) listCities(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	limit := 100
	if query != "" {
		limit = 10
	}

	cities, err := a.store.ListCities(r.Context(), query, limit)
	if err != nil {
		zap.L().Error("list cities failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if cities == nil {
		cities = []model.City{}
	}
	writeJSON(w, http.StatusOK, cities)
}

func (a *api) getCity(w http.ResponseWriter, r *http.Request) {
	city, err := a.store.GetCity(r.Context(), chi.URLParam(r, "cityID"))
	if err != nil {
		if errors.Is(err, library.ErrCityNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "City not found"})
			return
		}
		zap.L().Error("get city failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, city)
}

// citySegments is the trigger point of the whole pipeline: the first
// request for a NOT_BUILT city kicks off the build in the background
// and reports BUILDING; clients poll until READY.
func (a *api) citySegments(w http.ResponseWriter, r *http.Request) {
	cityID := chi.URLParam(r, "cityID")

	city, err := a.store.GetCity(r.Context(), cityID)
	if err != nil {
		if errors.Is(err, library.ErrCityNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "City not found"})
			return
		}
		zap.L().Error("get city failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	switch city.Status {
	case model.StatusNotBuilt:
		// Detached from the request context: the build outlives it.
		go func() {
			if _, err := a.builder.EnsureBuilt(context.Background(), cityID); err != nil {
				zap.L().Error("background segment build failed",
					zap.String("city_id", cityID),
					zap.Error(err),
				)
			}
		}()
		writeJSON(w, http.StatusOK, map[string]any{"status": model.StatusBuilding})
	case model.StatusBuilding:
		writeJSON(w, http.StatusOK, map[string]any{"status": model.StatusBuilding})
	case model.StatusError:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  model.StatusError,
			"message": "Segment build failed.",
		})
	default: // READY
		segs, err := a.store.ListSegments(r.Context(), cityID)
		if err != nil {
			zap.L().Error("list segments failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if segs == nil {
			segs = []model.Segment{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   model.StatusReady,
			"segments": segs,
		})
	}
}

func (a *api) getInputs(w http.ResponseWriter, r *http.Request) {
	inputs, err := a.store.GetInputs(r.Context(), chi.URLParam(r, "segmentID"))
	if err != nil {
		zap.L().Error("get inputs failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	grouped := map[string][]model.SegmentInput{}
	for _, in := range inputs {
		grouped[in.Category] = append(grouped[in.Category], in)
	}
	writeJSON(w, http.StatusOK, grouped)
}

func (a *api) patchInputs(w http.ResponseWriter, r *http.Request) {
	segmentID := chi.URLParam(r, "segmentID")

	var updates map[string]struct {
		Value      string `json:"input_value"`
		Confidence string `json:"confidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil || updates == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid input"})
		return
	}

	for key, upd := range updates {
		confidence := upd.Confidence
		if confidence == "" {
			confidence = model.InputSourceUser
		}
		if err := a.store.UpdateInput(r.Context(), segmentID, key, upd.Value, confidence); err != nil {
			zap.L().Error("update input failed",
				zap.String("segment_id", segmentID),
				zap.String("input_key", key),
				zap.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) scoreSegment(w http.ResponseWriter, r *http.Request) {
	segmentID := chi.URLParam(r, "segmentID")

	seg, err := a.store.GetSegment(r.Context(), segmentID)
	if err != nil {
		if errors.Is(err, library.ErrSegmentNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Segment not found"})
			return
		}
		zap.L().Error("get segment failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	rows, err := a.store.GetInputs(r.Context(), segmentID)
	if err != nil {
		zap.L().Error("get inputs failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	in, missing := scoring.FromRows(rows)
	in.ApplyGeometryDefaults(seg.LengthFt)
	if missing == nil {
		missing = []string{}
	}

	result, err := scoring.Evaluate(in)
	if err != nil {
		zap.L().Error("scoring failed", zap.String("segment_id", segmentID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scoring failed"})
		return
	}

	resp := map[string]any{
		"segment_id":     segmentID,
		"score":          result,
		"missing_inputs": missing,
	}
	if in.Cost.ClearWidthFt > 0 {
		tunnel := in.PartialTunnel()
		resp["cost"] = scoring.CostEstimate(in.Cost.ClearWidthFt, in.Cost.DeckLengthFt, tunnel, scoring.DefaultAssumptions())
		resp["approach"] = scoring.ApproachFor(in.Cost.ClearWidthFt, tunnel)
	}
	writeJSON(w, http.StatusOK, resp)
}
