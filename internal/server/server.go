// Package server exposes the station indexes over HTTP for single-point
// lookups.
package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/stationreach/internal/config"
	"github.com/sells-group/stationreach/internal/pointset"
	"github.com/sells-group/stationreach/internal/proximity"
	"github.com/sells-group/stationreach/internal/spatial"
)

// LoadFunc loads the stations of a dataset and builds their index.
type LoadFunc func(ds config.DatasetConfig) ([]pointset.Station, *spatial.Index, error)

// Option configures a Server.
type Option func(*Server)

// WithLoader replaces the file-backed station loader.
func WithLoader(fn LoadFunc) Option {
	return func(s *Server) { s.load = fn }
}

// WithMetrics shares a metrics registry with the caller.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

type stationIndex struct {
	stations []pointset.Station
	index    *spatial.Index
	builtAt  time.Time
}

// Server answers nearest and within queries against lazily built station
// indexes. An index is built once per dataset and then shared read-only.
type Server struct {
	cfg     *config.Config
	load    LoadFunc
	metrics *Metrics
	group   singleflight.Group

	mu      sync.RWMutex
	indexes map[string]*stationIndex
}

// New creates a Server for every dataset in cfg.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		load:    proximity.LoadStationIndex,
		indexes: make(map[string]*stationIndex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	return s
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1/datasets", func(r chi.Router) {
		r.Get("/", s.handleDatasets)
		r.Get("/{name}/nearest", s.handleNearest)
		r.Get("/{name}/within", s.handleWithin)
	})
	return r
}

// Warm builds the named indexes ahead of the first request.
func (s *Server) Warm(ctx context.Context, names ...string) error {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		ds, err := s.cfg.Dataset(name)
		if err != nil {
			return err
		}
		if _, err := s.index(ds); err != nil {
			return err
		}
	}
	return nil
}

// index returns the built index for ds, building it on first use.
// Concurrent first requests share one build.
func (s *Server) index(ds config.DatasetConfig) (*stationIndex, error) {
	s.mu.RLock()
	si, ok := s.indexes[ds.Name]
	s.mu.RUnlock()
	if ok {
		return si, nil
	}

	v, err, _ := s.group.Do(ds.Name, func() (any, error) {
		s.mu.RLock()
		si, ok := s.indexes[ds.Name]
		s.mu.RUnlock()
		if ok {
			return si, nil
		}

		start := time.Now()
		stations, idx, err := s.load(ds)
		elapsed := time.Since(start)
		s.metrics.IndexBuildTime.WithLabelValues(ds.Name).Observe(elapsed.Seconds())
		if err != nil {
			s.metrics.IndexBuilds.WithLabelValues(ds.Name, "error").Inc()
			return nil, eris.Wrapf(err, "server: build index %s", ds.Name)
		}
		s.metrics.IndexBuilds.WithLabelValues(ds.Name, "ok").Inc()
		s.metrics.IndexStations.WithLabelValues(ds.Name).Set(float64(idx.Len()))

		si = &stationIndex{stations: stations, index: idx, builtAt: time.Now().UTC()}
		s.mu.Lock()
		s.indexes[ds.Name] = si
		s.mu.Unlock()

		zap.L().With(zap.String("component", "server")).Info("station index built",
			zap.String("dataset", ds.Name),
			zap.Int("stations", idx.Len()),
			zap.Duration("elapsed", elapsed),
		)
		return si, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*stationIndex), nil
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) loaded(name string) (*stationIndex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	si, ok := s.indexes[name]
	return si, ok
}
