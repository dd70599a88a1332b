// Package main implements the vecdb shard node: a LocalEngine wrapped in
// the internal RPC surface the coordinator drives over POST /shard
// (spec.md §6), plus GET /health and GET /metrics.
//
// Architecture mirrors torua's cmd/node: one server struct holding the
// engine and a shutdown flag, one handler per HTTP endpoint, and a
// signal-driven graceful shutdown that persists state before exiting.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"github.com/dreamware/vecdb/internal/cluster"
	"github.com/dreamware/vecdb/internal/collection"
	"github.com/dreamware/vecdb/internal/config"
	"github.com/dreamware/vecdb/internal/engine"
	"github.com/dreamware/vecdb/internal/logging"
	"github.com/dreamware/vecdb/internal/metrics"
	"github.com/dreamware/vecdb/internal/storage"
	"github.com/dreamware/vecdb/internal/vdberrors"
	"github.com/dreamware/vecdb/internal/vectormath"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: shard <config.json>")
		os.Exit(1)
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Server.Role != config.RoleShard {
		fmt.Fprintf(os.Stderr, "config: server.role must be %q for cmd/shard, got %q\n", config.RoleShard, cfg.Server.Role)
		os.Exit(1)
	}

	log := logging.New(logging.Config{Format: logging.FormatText, Level: logging.ParseLevel(getenv("LOG_LEVEL", "info"))})
	defer log.Sync()

	reg := collection.NewRegistry()
	store := storage.New(afero.NewOsFs(), cfg.Path)
	eng := engine.New(reg, store)

	if err := eng.Load(); err != nil && !vdberrors.Is(err, vdberrors.NotFound) {
		log.Fatalw("failed to load persisted state", "path", cfg.Path, "error", err)
	}

	m := metrics.New()
	srv := newServer(eng, m, log)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Post("/shard", srv.handleShard)
	router.Get("/health", srv.handleHealth)
	router.Handle("/metrics", promhttp.HandlerFor(m.Reg, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infow("shard listening", "addr", cfg.Server.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("listen failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Infow("shutting down")
	srv.shuttingDown.Store(true)

	if err := eng.Dump(); err != nil {
		log.Errorw("final dump failed", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Errorw("http shutdown error", "error", err)
	}
	log.Infow("shard stopped")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// server holds the shard's runtime state: the LocalEngine every RPC
// operation is dispatched against, and the flag that rejects new work once
// a stop sequence has begun (spec.md §4.11 ShuttingDown).
type server struct {
	engine       *engine.LocalEngine
	metrics      *metrics.Registry
	log          *logging.Logger
	shuttingDown atomic.Bool
}

func newServer(eng *engine.LocalEngine, m *metrics.Registry, log *logging.Logger) *server {
	return &server{engine: eng, metrics: m, log: log}
}

// handleHealth reports liveness for the coordinator's HealthMonitor
// (spec.md §6: `GET /health` returns `{status: "healthy"}`).
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if s.shuttingDown.Load() {
		status = "draining"
	}
	writeJSON(w, map[string]string{"status": status})
}

// handleShard dispatches the tagged request envelope spec.md §6 defines
// onto the matching LocalEngine operation and replies with the matching
// ShardResponse envelope.
func (s *server) handleShard(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		writeShardError(w, "", vdberrors.New(vdberrors.ShuttingDown, "shard is stopping"))
		return
	}

	var req cluster.ShardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	data, err := s.dispatch(&req)
	if err != nil {
		writeShardError(w, "", err)
		return
	}

	resp := cluster.ShardResponse{Success: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			writeShardError(w, "", err)
			return
		}
		resp.Data = raw
	}
	writeJSON(w, resp)
}

func (s *server) dispatch(req *cluster.ShardRequest) (any, error) {
	switch req.Operation {
	case cluster.OpCreateCollection:
		metric, err := vectormath.ParseMetric(req.Metric)
		if err != nil {
			return nil, err
		}
		col, err := s.engine.CreateCollection(req.Collection, metric, req.Dimension)
		if err != nil {
			return nil, err
		}
		return collectionInfo(col), nil

	case cluster.OpGetCollection:
		col, err := s.engine.GetCollection(req.Collection)
		if err != nil {
			return nil, err
		}
		return collectionInfo(col), nil

	case cluster.OpDeleteCollection:
		return nil, s.engine.DeleteCollection(req.Collection)

	case cluster.OpGetAllCollections:
		cols := s.engine.GetAllCollections()
		out := make([]cluster.CollectionInfo, len(cols))
		for i, col := range cols {
			out[i] = collectionInfo(col)
		}
		return out, nil

	case cluster.OpAddVector:
		id, err := s.engine.AddVector(req.Collection, req.Embedding, req.Metadata)
		if err != nil {
			return nil, err
		}
		s.metrics.VectorInserts.WithLabelValues(req.Collection).Inc()
		return cluster.VectorInfo{ID: id}, nil

	case cluster.OpGetVector:
		if req.VectorID == nil {
			return nil, vdberrors.New(vdberrors.InvalidArgument, "vector_id is required")
		}
		v, err := s.engine.GetVector(req.Collection, *req.VectorID)
		if err != nil {
			return nil, err
		}
		return cluster.VectorInfo{ID: v.ID, Data: v.Data, Metadata: v.Metadata, Timestamp: v.Timestamp}, nil

	case cluster.OpUpdateVector:
		if req.VectorID == nil {
			return nil, vdberrors.New(vdberrors.InvalidArgument, "vector_id is required")
		}
		if err := s.engine.UpdateVector(req.Collection, *req.VectorID, req.Embedding, req.Metadata); err != nil {
			return nil, err
		}
		s.metrics.VectorUpdates.WithLabelValues(req.Collection).Inc()
		return nil, nil

	case cluster.OpDeleteVector:
		if req.VectorID == nil {
			return nil, vdberrors.New(vdberrors.InvalidArgument, "vector_id is required")
		}
		if err := s.engine.DeleteVector(req.Collection, *req.VectorID); err != nil {
			return nil, err
		}
		s.metrics.VectorDeletes.WithLabelValues(req.Collection).Inc()
		return nil, nil

	case cluster.OpFilterByMetadata:
		return s.engine.FilterByMetadata(req.Collection, req.Filters)

	case cluster.OpFindSimilar:
		start := time.Now()
		matches, err := s.engine.FindSimilar(req.Collection, req.Query, req.K)
		if err != nil {
			return nil, err
		}
		s.metrics.SearchRequests.WithLabelValues(req.Collection).Inc()
		s.metrics.SearchLatency.WithLabelValues(req.Collection).Observe(time.Since(start).Seconds())
		hits := make([]cluster.SimilarityHit, len(matches))
		for i, m := range matches {
			hits[i] = cluster.SimilarityHit{BucketID: m.BucketID, VectorIndex: m.VectorIndex, Score: m.Score}
		}
		return hits, nil

	case cluster.OpGetStatistics:
		stats, err := s.engine.CollectionStats(req.Collection)
		if err != nil {
			return nil, err
		}
		s.metrics.BucketCount.WithLabelValues(req.Collection).Set(float64(stats.TotalBuckets))
		s.metrics.VectorCount.WithLabelValues(req.Collection).Set(float64(stats.TotalVectors))
		return cluster.Stats{
			TotalBuckets:        stats.TotalBuckets,
			TotalVectors:        stats.TotalVectors,
			Dimension:           stats.Dimension,
			NumHashes:           stats.NumHashes,
			BucketWidth:         stats.BucketWidth,
			AvgVectorsPerBucket: stats.AvgVectorsPerBucket,
		}, nil

	case cluster.OpDump:
		if err := s.engine.Dump(); err != nil {
			return nil, err
		}
		return cluster.OpReport{OK: true, Message: "dump complete"}, nil

	case cluster.OpLoad:
		if err := s.engine.Load(); err != nil {
			return nil, err
		}
		return cluster.OpReport{OK: true, Message: "load complete"}, nil

	case cluster.OpStop:
		s.shuttingDown.Store(true)
		if err := s.engine.Dump(); err != nil {
			return nil, err
		}
		return cluster.OpReport{OK: true, Message: "stopping"}, nil

	default:
		return nil, vdberrors.New(vdberrors.InvalidArgument, "unknown operation %q", req.Operation)
	}
}

func collectionInfo(col *collection.Collection) cluster.CollectionInfo {
	return cluster.CollectionInfo{Name: col.Name, Metric: string(col.Metric), Dimension: col.Dimension}
}

func writeShardError(w http.ResponseWriter, shardID string, err error) {
	writeJSON(w, cluster.ShardResponse{Success: false, Error: err.Error(), ShardID: shardID})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		io.WriteString(w, `{"success":false,"error":"encode failure"}`)
	}
}
