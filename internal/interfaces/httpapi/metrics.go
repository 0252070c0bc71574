package httpapi

import (
	"sync"
	"time"

	"txcrawler/internal/application"
	"txcrawler/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "txcrawler"

// Metrics records crawler events as Prometheus series on its own registry
// and keeps the latest values for the /state endpoint.
type Metrics struct {
	registry *prometheus.Registry

	chainHead      prometheus.Gauge
	scheduledBlock prometheus.Gauge
	jobs           *prometheus.CounterVec
	matched        prometheus.Counter
	dumped         *prometheus.CounterVec
	callbacks      *prometheus.CounterVec
	streamed       *prometheus.CounterVec

	mu            sync.RWMutex
	startTime     time.Time
	latestHead    uint64
	lastScheduled uint64
	jobsOK        uint64
	jobsFailed    uint64
	txMatched     uint64
	txSaved       uint64
	txSkipped     uint64
	txDropped     uint64
	callbacksOK   uint64
	callbacksLost uint64
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry:  reg,
		startTime: time.Now(),
		chainHead: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_head_block",
			Help:      "Latest block number reported by the RPC node",
		}),
		scheduledBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduled_block",
			Help:      "Highest block handed to the query executor",
		}),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_jobs_total",
			Help:      "Query jobs finished, by result",
		}, []string{"result"}),
		matched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matched_transactions_total",
			Help:      "Transactions that passed the job filter",
		}),
		dumped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dumped_transactions_total",
			Help:      "Transactions handled by the dump pipeline, by result",
		}, []string{"result"}),
		callbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Callback deliveries, by result",
		}, []string{"result"}),
		streamed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streamed_transactions_total",
			Help:      "Transactions published to the stream, by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WatchQueues exposes queue depths read from state on every scrape.
func (m *Metrics) WatchQueues(state func() application.CrawlerState) {
	gauge := func(name, help string, read func(application.CrawlerState) int) {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(state())) }))
	}
	gauge("query_jobs_pending", "Query jobs waiting for a worker", func(s application.CrawlerState) int { return s.PendingJobs })
	gauge("query_jobs_running", "Query jobs being executed", func(s application.CrawlerState) int { return s.RunningJobs })
	gauge("dump_queue_length", "Transactions waiting to be dumped", func(s application.CrawlerState) int { return s.DumpQueue })
	gauge("callback_queue_length", "Transactions waiting for callback delivery", func(s application.CrawlerState) int { return s.CallbackQueue })
	gauge("stream_queue_length", "Transactions waiting to be published", func(s application.CrawlerState) int { return s.StreamQueue })
}

func (m *Metrics) OnChainHead(head uint64) {
	m.chainHead.Set(float64(head))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestHead = head
}

func (m *Metrics) OnJobScheduled(job domain.Job) {
	m.scheduledBlock.Set(float64(job.ToBlock))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastScheduled = job.ToBlock
}

func (m *Metrics) OnJobFinished(_ domain.Job, matched int, err error) {
	m.matched.Add(float64(matched))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txMatched += uint64(matched)
	if err != nil {
		m.jobs.WithLabelValues("failed").Inc()
		m.jobsFailed++
		return
	}
	m.jobs.WithLabelValues("ok").Inc()
	m.jobsOK++
}

func (m *Metrics) OnDumped(saved, skipped int) {
	m.dumped.WithLabelValues("saved").Add(float64(saved))
	m.dumped.WithLabelValues("skipped").Add(float64(skipped))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txSaved += uint64(saved)
	m.txSkipped += uint64(skipped)
}

func (m *Metrics) OnDumpFailed(records int) {
	m.dumped.WithLabelValues("dropped").Add(float64(records))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txDropped += uint64(records)
}

func (m *Metrics) OnCallback(delivered bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if delivered {
		m.callbacks.WithLabelValues("delivered").Inc()
		m.callbacksOK++
		return
	}
	m.callbacks.WithLabelValues("dropped").Inc()
	m.callbacksLost++
}

func (m *Metrics) OnStreamed(count int, err error) {
	result := "published"
	if err != nil {
		result = "dropped"
	}
	m.streamed.WithLabelValues(result).Add(float64(count))
}

type Snapshot struct {
	Uptime           string `json:"uptime"`
	ChainHead        uint64 `json:"chain_head"`
	LastScheduled    uint64 `json:"last_scheduled_block"`
	JobsSucceeded    uint64 `json:"jobs_succeeded"`
	JobsFailed       uint64 `json:"jobs_failed"`
	TxMatched        uint64 `json:"tx_matched"`
	TxSaved          uint64 `json:"tx_saved"`
	TxSkipped        uint64 `json:"tx_skipped"`
	TxDropped        uint64 `json:"tx_dropped"`
	CallbacksOK      uint64 `json:"callbacks_delivered"`
	CallbacksDropped uint64 `json:"callbacks_dropped"`
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Uptime:           time.Since(m.startTime).Truncate(time.Second).String(),
		ChainHead:        m.latestHead,
		LastScheduled:    m.lastScheduled,
		JobsSucceeded:    m.jobsOK,
		JobsFailed:       m.jobsFailed,
		TxMatched:        m.txMatched,
		TxSaved:          m.txSaved,
		TxSkipped:        m.txSkipped,
		TxDropped:        m.txDropped,
		CallbacksOK:      m.callbacksOK,
		CallbacksDropped: m.callbacksLost,
	}
}
