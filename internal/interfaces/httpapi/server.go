package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"txcrawler/internal/application"
	"txcrawler/internal/config"
	"txcrawler/internal/domain"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type RPCStatus interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

type Crawler interface {
	State() application.CrawlerState
	PushJob(job domain.Job) (domain.Job, error)
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	cfg       config.Config
	store     Pinger
	rpc       RPCStatus
	crawler   Crawler
	metrics   *Metrics
	buildInfo BuildInfo
}

func NewServer(cfg config.Config, store Pinger, rpc RPCStatus, crawler Crawler, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if store == nil || rpc == nil || crawler == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{cfg: cfg, store: store, rpc: rpc, crawler: crawler, metrics: metrics, buildInfo: buildInfo}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "db not ready")
		return
	}
	if _, err := s.rpc.BlockNumber(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "rpc not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	crawler := s.cfg.Crawler
	respondJSON(w, http.StatusOK, map[string]any{
		"crawler": s.crawler.State(),
		"metrics": s.metrics.Snapshot(),
		"config": map[string]any{
			"db":                      crawler.DB,
			"http_addr":               s.cfg.HTTP.Addr,
			"tx_type":                 crawler.TxType,
			"address":                 crawler.Address,
			"from_block":              crawler.FromBlock,
			"to_block":                crawler.ToBlock,
			"max_block_range":         crawler.MaxBlockRange,
			"push_job_interval":       crawler.PushJobInterval.String(),
			"query_interval":          crawler.QueryInterval.String(),
			"loop_interval":           crawler.LoopInterval.String(),
			"execute_job_concurrency": crawler.ExecuteJobConcurrency,
			"keep_running":            crawler.KeepRunning,
			"chunk_size":              crawler.ChunkSize,
			"stream_topic":            s.cfg.Stream.Topic,
		},
	})
}

type jobRequest struct {
	TxType          []string `json:"tx_type"`
	Address         string   `json:"address"`
	FromBlock       uint64   `json:"from_block"`
	ToBlock         uint64   `json:"to_block"`
	MaxBlockRange   uint64   `json:"max_block_range"`
	PushJobInterval string   `json:"push_job_interval"`
	KeepRunning     bool     `json:"keep_running"`
}

func (req jobRequest) job() (domain.Job, error) {
	job := domain.Job{
		TxTypes:       req.TxType,
		Address:       req.Address,
		FromBlock:     req.FromBlock,
		ToBlock:       req.ToBlock,
		MaxBlockRange: req.MaxBlockRange,
		KeepRunning:   req.KeepRunning,
	}
	if req.PushJobInterval != "" {
		interval, err := time.ParseDuration(req.PushJobInterval)
		if err != nil {
			return domain.Job{}, fmt.Errorf("invalid push_job_interval: %w", err)
		}
		job.PushJobInterval = interval
	}
	return job, nil
}

type jobResponse struct {
	ID              string   `json:"id"`
	TxType          []string `json:"tx_type"`
	Address         string   `json:"address,omitempty"`
	FromBlock       uint64   `json:"from_block"`
	ToBlock         uint64   `json:"to_block"`
	MaxBlockRange   uint64   `json:"max_block_range"`
	PushJobInterval string   `json:"push_job_interval"`
	KeepRunning     bool     `json:"keep_running"`
}

// handleJobs queues a pull job. Pull jobs run one at a time, so a pushed job
// starts after those already queued finish; while a keep-running job is
// active nothing else would ever start and the push is refused with 409.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req jobRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid job: %v", err))
		return
	}
	job, err := req.job()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	queued, err := s.crawler.PushJob(job)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, config.ErrInvalid):
			status = http.StatusBadRequest
		case errors.Is(err, application.ErrTailingJobActive):
			status = http.StatusConflict
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, jobResponse{
		ID:              queued.ID,
		TxType:          queued.TxTypes,
		Address:         queued.Address,
		FromBlock:       queued.FromBlock,
		ToBlock:         queued.ToBlock,
		MaxBlockRange:   queued.MaxBlockRange,
		PushJobInterval: queued.PushJobInterval.String(),
		KeepRunning:     queued.KeepRunning,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
