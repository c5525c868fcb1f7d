package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/stationreach/internal/config"
	"github.com/sells-group/stationreach/internal/spatial"
)

// StationHit is one station in a lookup response.
type StationHit struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Distance float64 `json:"distance"`
}

// NearestResponse is the body of GET /v1/datasets/{name}/nearest.
type NearestResponse struct {
	Dataset string      `json:"dataset"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Station *StationHit `json:"station"`
}

// WithinResponse is the body of GET /v1/datasets/{name}/within.
type WithinResponse struct {
	Dataset  string       `json:"dataset"`
	X        float64      `json:"x"`
	Y        float64      `json:"y"`
	Radius   float64      `json:"radius"`
	Count    int          `json:"count"`
	Stations []StationHit `json:"stations"`
}

// DatasetInfo describes one configured dataset.
type DatasetInfo struct {
	Name     string     `json:"name"`
	Loaded   bool       `json:"loaded"`
	Stations int        `json:"stations,omitempty"`
	BuiltAt  *time.Time `json:"built_at,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDatasets(w http.ResponseWriter, _ *http.Request) {
	names := s.cfg.DatasetNames()
	out := make([]DatasetInfo, 0, len(names))
	for _, name := range names {
		info := DatasetInfo{Name: name}
		if si, ok := s.loaded(name); ok {
			info.Loaded = true
			info.Stations = si.index.Len()
			info.BuiltAt = &si.builtAt
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": out})
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	p, ok := queryPoint(w, r)
	if !ok {
		return
	}
	ds, si, ok := s.resolve(w, r)
	if !ok {
		return
	}

	resp := NearestResponse{Dataset: ds.Name, X: p.X, Y: p.Y}
	if n, found := si.index.Nearest(p); found {
		hit := si.hit(n)
		resp.Station = &hit
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWithin(w http.ResponseWriter, r *http.Request) {
	p, ok := queryPoint(w, r)
	if !ok {
		return
	}
	radius, ok := queryFloat(w, r, "radius")
	if !ok {
		return
	}
	if radius < 0 {
		writeError(w, http.StatusBadRequest, "radius must be non-negative")
		return
	}
	ds, si, ok := s.resolve(w, r)
	if !ok {
		return
	}

	neighbors := si.index.Within(p, radius)
	resp := WithinResponse{
		Dataset:  ds.Name,
		X:        p.X,
		Y:        p.Y,
		Radius:   radius,
		Count:    len(neighbors),
		Stations: make([]StationHit, len(neighbors)),
	}
	for i, n := range neighbors {
		resp.Stations[i] = si.hit(n)
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolve maps the {name} URL parameter to a built index, writing 404 for an
// unknown dataset and 500 when the index cannot be built.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (config.DatasetConfig, *stationIndex, bool) {
	ds, err := s.cfg.Dataset(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return ds, nil, false
	}
	si, err := s.index(ds)
	if err != nil {
		zap.L().Error("server: index unavailable", zap.String("dataset", ds.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "station index unavailable")
		return ds, nil, false
	}
	return ds, si, true
}

func (si *stationIndex) hit(n spatial.Neighbor) StationHit {
	return StationHit{
		ID:       n.ID,
		Name:     si.stations[n.ID].Name,
		X:        n.Point.X,
		Y:        n.Point.Y,
		Distance: n.Distance(),
	}
}

func queryPoint(w http.ResponseWriter, r *http.Request) (spatial.Point, bool) {
	x, ok := queryFloat(w, r, "x")
	if !ok {
		return spatial.Point{}, false
	}
	y, ok := queryFloat(w, r, "y")
	if !ok {
		return spatial.Point{}, false
	}
	return spatial.Point{X: x, Y: y}, true
}

func queryFloat(w http.ResponseWriter, r *http.Request, key string) (float64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter "+key)
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		writeError(w, http.StatusBadRequest, "invalid query parameter "+key)
		return 0, false
	}
	return v, true
}
