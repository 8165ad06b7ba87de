package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"switchbot-meter/internal/entity"
	"switchbot-meter/internal/meter"
)

type healthResponse struct {
	Status      string     `json:"status"`
	LastSuccess *time.Time `json:"last_success"`
}

func registerHealthcheck(mux *http.ServeMux, lastSuccess func() time.Time) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		if lastSuccess != nil {
			if t := lastSuccess(); !t.IsZero() {
				resp.LastSuccess = &t
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// Entity is the JSON view of an entity. State is null until the first successful refresh.
type Entity struct {
	Name   string   `json:"name"`
	Metric string   `json:"metric"`
	State  *float64 `json:"state"`
	Unit   string   `json:"unit"`
}

func toEntity(s *entity.Sensor) Entity {
	e := Entity{
		Name:   s.Name(),
		Metric: s.Kind().Key(),
		Unit:   s.Unit(),
	}
	if v, ok := s.State(); ok {
		e.State = &v
	}
	return e
}

func registerEntities(mux *http.ServeMux, sensors []*entity.Sensor) {
	mux.HandleFunc("GET /api/v1/entities", func(w http.ResponseWriter, r *http.Request) {
		out := make([]Entity, 0, len(sensors))
		for _, s := range sensors {
			out = append(out, toEntity(s))
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /api/v1/entities/{metric}", func(w http.ResponseWriter, r *http.Request) {
		kind, err := meter.ParseMetricKind(r.PathValue("metric"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		for _, s := range sensors {
			if s.Kind() == kind {
				writeJSON(w, http.StatusOK, toEntity(s))
				return
			}
		}
		writeError(w, http.StatusNotFound, "metric "+kind.Key()+" is not monitored")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}
