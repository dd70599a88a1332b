// Package main implements the vecdb coordinator: the public user-facing API
// (spec.md §6) that fans out to shard nodes via internal/coordinator.
//
// Architecture follows torua's cmd/coordinator: one server struct wrapping
// the control-plane components, one handler per API operation, a
// background HealthMonitor, and a signal-driven graceful shutdown that
// fans out a final stop to every shard before exiting.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreamware/vecdb/internal/cluster"
	"github.com/dreamware/vecdb/internal/config"
	"github.com/dreamware/vecdb/internal/coordinator"
	"github.com/dreamware/vecdb/internal/logging"
	"github.com/dreamware/vecdb/internal/metrics"
	"github.com/dreamware/vecdb/internal/shardclient"
	"github.com/dreamware/vecdb/internal/vdberrors"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: coordinator <config.json>")
		os.Exit(1)
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Server.Role != config.RoleCoordinator {
		fmt.Fprintf(os.Stderr, "config: server.role must be %q for cmd/coordinator, got %q\n", config.RoleCoordinator, cfg.Server.Role)
		os.Exit(1)
	}
	if !cfg.Sharding.Enabled || len(cfg.Sharding.Shards) == 0 {
		fmt.Fprintln(os.Stderr, "config: sharding.enabled must be true with at least one shard configured")
		os.Exit(1)
	}

	log := logging.New(logging.Config{Format: logging.FormatText, Level: logging.ParseLevel(getenv("LOG_LEVEL", "info"))})
	defer log.Sync()

	strategy, err := coordinator.NewRoutingStrategy(cfg.Sharding.Strategy)
	if err != nil {
		log.Fatalw("invalid sharding strategy", "strategy", cfg.Sharding.Strategy, "error", err)
	}

	manager := coordinator.NewShardManager(cfg.Sharding.Shards, strategy)
	clients := shardclient.NewMultiShardClient(shardclient.DefaultTimeout)
	for _, sc := range cfg.Sharding.Shards {
		clients.Set(sc.ID, sc.Addr())
	}

	m := metrics.New()
	co := coordinator.New(manager, clients, m)

	monitor := coordinator.NewHealthMonitor(manager, 5*time.Second, log)
	monitor.SetOnStatusChange(func(shardID string, status coordinator.Status) {
		log.Warnw("shard status changed", "shard_id", shardID, "status", status)
		healthy := 0.0
		if status == coordinator.StatusActive {
			healthy = 1.0
		}
		m.ShardHealth.WithLabelValues(shardID).Set(healthy)
	})

	monitorCtx, monitorCancel := context.WithCancel(context.Background())
	go monitor.Start(monitorCtx)

	srv := newServer(co, m, log)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/health", srv.handleHealth)
	router.Handle("/metrics", promhttp.HandlerFor(m.Reg, promhttp.HandlerOpts{}))

	router.Route("/api", func(r chi.Router) {
		r.Post("/collections", srv.handleCreateCollection)
		r.Get("/collections", srv.handleGetAllCollections)
		r.Delete("/collections/{name}", srv.handleDeleteCollection)
		r.Post("/collections/{name}/vectors", srv.handleAddVector)
		r.Get("/collections/{name}/vectors/{id}", srv.handleGetVector)
		r.Put("/collections/{name}/vectors/{id}", srv.handleUpdateVector)
		r.Delete("/collections/{name}/vectors/{id}", srv.handleDeleteVector)
		r.Post("/collections/{name}/filter", srv.handleFilterByMetadata)
		r.Post("/collections/{name}/search", srv.handleFindSimilar)
		r.Get("/collections/{name}/stats", srv.handleGetStatistics)
		r.Post("/dump", srv.handleDump)
		r.Post("/load", srv.handleLoad)
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infow("coordinator listening", "addr", cfg.Server.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("listen failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Infow("shutting down")
	monitorCancel()
	monitor.Stop()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if outcomes, err := co.Stop(stopCtx); err != nil {
		log.Errorw("stop fan-out reported failures", "outcomes", outcomes, "error", err)
	}
	stopCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Errorw("http shutdown error", "error", err)
	}
	log.Infow("coordinator stopped")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// server wraps the Coordinator with the HTTP handlers spec.md §6's
// user-facing API names, every response using the {status, data?, message?}
// envelope (spec.md §6, §7).
type server struct {
	co      *coordinator.Coordinator
	metrics *metrics.Registry
	log     *logging.Logger
}

func newServer(co *coordinator.Coordinator, m *metrics.Registry, log *logging.Logger) *server {
	return &server{co: co, metrics: m, log: log}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}

func (s *server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		Metric    string `json:"metric"`
		Dimension int    `json:"dimension"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	outcomes, err := s.co.CreateCollection(r.Context(), req.Name, req.Metric, req.Dimension)
	if err != nil {
		writeError(w, err, outcomes)
		return
	}
	writeOK(w, outcomes)
}

func (s *server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	outcomes, err := s.co.DeleteCollection(r.Context(), name)
	if err != nil {
		writeError(w, err, outcomes)
		return
	}
	writeOK(w, outcomes)
}

func (s *server) handleGetAllCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.co.GetAllCollections(r.Context())
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeOK(w, cols)
}

func (s *server) handleAddVector(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Embedding []float32         `json:"embedding"`
		Metadata  map[string]string `json:"metadata"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := s.co.AddVector(r.Context(), name, req.Embedding, req.Metadata)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	s.metrics.VectorInserts.WithLabelValues(name).Inc()
	writeOK(w, cluster.VectorInfo{ID: id})
}

func (s *server) handleGetVector(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, ok := parseVectorID(w, r)
	if !ok {
		return
	}

	v, err := s.co.GetVector(r.Context(), name, id)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeOK(w, v)
}

func (s *server) handleUpdateVector(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, ok := parseVectorID(w, r)
	if !ok {
		return
	}

	var req struct {
		Embedding []float32         `json:"embedding"`
		Metadata  map[string]string `json:"metadata"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.co.UpdateVector(r.Context(), name, id, req.Embedding, req.Metadata); err != nil {
		writeError(w, err, nil)
		return
	}
	s.metrics.VectorUpdates.WithLabelValues(name).Inc()
	writeOK(w, nil)
}

func (s *server) handleDeleteVector(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, ok := parseVectorID(w, r)
	if !ok {
		return
	}

	if err := s.co.DeleteVector(r.Context(), name, id); err != nil {
		writeError(w, err, nil)
		return
	}
	s.metrics.VectorDeletes.WithLabelValues(name).Inc()
	writeOK(w, nil)
}

func (s *server) handleFilterByMetadata(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Filters map[string]string `json:"filters"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	ids, err := s.co.FilterByMetadata(r.Context(), name, req.Filters)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeOK(w, ids)
}

func (s *server) handleFindSimilar(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Query []float32 `json:"query"`
		K     int       `json:"k"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.K < 0 {
		writeError(w, vdberrors.New(vdberrors.InvalidArgument, "k must be non-negative"), nil)
		return
	}

	start := time.Now()
	hits, err := s.co.FindSimilar(r.Context(), name, req.Query, req.K)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	s.metrics.SearchRequests.WithLabelValues(name).Inc()
	s.metrics.SearchLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	writeOK(w, hits)
}

func (s *server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	stats, err := s.co.GetStatistics(r.Context(), name)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeOK(w, stats)
}

func (s *server) handleDump(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.co.Dump(r.Context())
	if err != nil {
		writeError(w, err, outcomes)
		return
	}
	writeOK(w, outcomes)
}

func (s *server) handleLoad(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.co.Load(r.Context())
	if err != nil {
		writeError(w, err, outcomes)
		return
	}
	writeOK(w, outcomes)
}

func parseVectorID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid vector id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

// writeOK and writeError both use HTTP 200; spec.md §7 keeps application
// errors inside the {status, message} envelope and reserves real HTTP
// status codes for transport-level failures (bad JSON, unsupported method).
func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, cluster.OK(data))
}

func writeError(w http.ResponseWriter, err error, outcomes any) {
	data := outcomes
	if data == nil {
		resp := cluster.ErrResponse(err.Error())
		writeJSON(w, resp)
		return
	}
	resp := cluster.OK(data)
	resp.Status = "error"
	resp.Message = err.Error()
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode failure", http.StatusInternalServerError)
	}
}
