// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tryoffset/registry/internal/domain"
	"github.com/tryoffset/registry/internal/metrics"
	"github.com/tryoffset/registry/internal/transport/middleware"
)

type createRecordRequest struct {
	ProjectName  string `json:"project_name"`
	Registry     string `json:"registry"`
	Vintage      int    `json:"vintage"`
	Quantity     int    `json:"quantity"`
	SerialNumber string `json:"serial_number"`
}

// recordResponse composes the stored record with its derived status rather
// than restating the fields.
type recordResponse struct {
	domain.Record
	Status domain.RecordStatus `json:"status"`
}

func newRecordResponse(rec domain.Record) recordResponse {
	if rec.Events == nil {
		rec.Events = []domain.Event{}
	}
	return recordResponse{
		Record: rec,
		Status: rec.Status(),
	}
}

type Deps struct {
	Records         RecordManager
	Health          HealthChecker
	Logger          *slog.Logger
	RateLimitPerMin int
	CORSOrigins     []string
	Version         string
	Commit          string
	BuildDate       string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", headerRequestID},
			AllowCredentials: true,
		}))
	}

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health check hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		if err := deps.Health.Check(r.Context()); err != nil {
			logger.Warn("readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- RECORDS ----------------

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.RateLimitPerMin, logger))

		// ---------------- CREATE RECORD ----------------

		r.Post("/records", func(w http.ResponseWriter, r *http.Request) {
			reqBody, err := decodeCreateRecordRequest(r)
			if err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			rec, err := deps.Records.Create(r.Context(), domain.CreateRecordParams{
				ProjectName:  reqBody.ProjectName,
				Registry:     reqBody.Registry,
				Vintage:      reqBody.Vintage,
				Quantity:     reqBody.Quantity,
				SerialNumber: reqBody.SerialNumber,
			})
			if err != nil {
				if errors.Is(err, domain.ErrInvalidRecordParams) {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				if errors.Is(err, domain.ErrConflict) {
					http.Error(w, "project name or serial number already registered", http.StatusConflict)
					return
				}

				logger.Error("create record failed", "error", err)
				http.Error(w, "failed to create record", http.StatusInternalServerError)
				return
			}

			logger.Info("record created via API", "record_id", rec.ID)

			writeJSON(w, http.StatusOK, newRecordResponse(rec))
		})

		// ---------------- GET RECORD ----------------

		r.Get("/records/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")

			rec, err := deps.Records.Get(r.Context(), id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					logger.Warn("record not found", "record_id", id)
					http.Error(w, "record not found", http.StatusNotFound)
					return
				}

				logger.Error("get record failed", "record_id", id, "error", err)
				http.Error(w, "failed to get record", http.StatusInternalServerError)
				return
			}

			writeJSON(w, http.StatusOK, newRecordResponse(rec))
		})

		// ---------------- RETIRE RECORD ----------------

		r.Post("/records/{id}/retire", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")

			if err := deps.Records.Retire(r.Context(), id); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					logger.Warn("record not found", "record_id", id)
					http.Error(w, "record not found", http.StatusNotFound)
					return
				}

				logger.Error("retire record failed", "record_id", id, "error", err)
				http.Error(w, "failed to retire record", http.StatusInternalServerError)
				return
			}

			logger.Info("record retired via API", "record_id", id)

			writeJSON(w, http.StatusOK, map[string]string{
				"id":     id,
				"status": string(domain.RecordRetired),
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeCreateRecordRequest(r *http.Request) (createRecordRequest, error) {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return createRecordRequest{}, errors.New("empty request body")
	}

	var req createRecordRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return createRecordRequest{}, err
	}

	// Ensure there is only one JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return createRecordRequest{}, errors.New("request body must contain exactly one JSON object")
	}

	return req, nil
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}
