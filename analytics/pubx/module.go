package pubx

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/pubxai/analytics-client-go/analytics"
	"github.com/pubxai/analytics-client-go/config"
	"github.com/pubxai/analytics-client-go/metrics"
	"github.com/pubxai/analytics-client-go/util/hashutil"
	"github.com/pubxai/analytics-client-go/util/task"
)

// PubxModule aggregates per-auction telemetry and ships it to the collector
// in size-bounded batches. Events and flushes are serialized under one lock:
// the protocol is single-threaded by design, the lock only guards the timer
// and config goroutines the Go port adds.
type PubxModule struct {
	muxConfig sync.RWMutex
	cfg       *config.Configuration

	muxState  sync.Mutex
	store     *AuctionStore
	engine    *Engine
	queue     *SendQueue
	transport *Transport

	clock     clock.Clock
	metrics   *metrics.AgentMetrics
	flushTask *task.TickerTask
	stopCh    chan struct{}
}

// NewModule wires the store, engine, queue and transport from cfg and deps.
// Environment is required; every other collaborator has a production
// default.
func NewModule(cfg *config.Configuration, deps Deps) (*PubxModule, error) {
	if cfg == nil {
		return nil, errors.New("configuration cannot be nil")
	}
	if cfg.PubxId == "" {
		return nil, errors.New("pubx_id cannot be empty when analytics is enabled")
	}
	if cfg.HostName == "" {
		return nil, errors.New("host_name cannot be empty when analytics is enabled")
	}
	if deps.Environment == nil {
		return nil, errors.New("environment cannot be nil")
	}

	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	if deps.Beacon == nil {
		deps.Beacon = NewHTTPBeacon(deps.HTTPClient)
	}
	if deps.Hasher == nil {
		deps.Hasher = hashutil.Hash53
	}
	if deps.Storage == nil {
		deps.Storage = emptyStorage{}
	}
	if deps.MetricsRegistry == nil {
		deps.MetricsRegistry = gometrics.NewRegistry()
	}

	m := &PubxModule{
		cfg:     cfg,
		clock:   deps.Clock,
		metrics: metrics.NewAgentMetrics(deps.MetricsRegistry),
		stopCh:  make(chan struct{}),
	}
	m.queue = NewSendQueue()
	m.store = NewAuctionStore(deps.Environment, deps.Storage, m.initOptions)
	m.engine = NewEngine(m.store, m.queue, NewExtractor(deps.SlotLookup), deps.Hasher, m.engineOptions, m.metrics)
	m.transport = NewTransport(m.queue, deps.Beacon, m.maxBatchBytes, m.metrics)

	if cfg.FlushInterval != "" {
		interval, err := time.ParseDuration(cfg.FlushInterval)
		if err != nil {
			return nil, err
		}
		m.flushTask = task.NewTickerTaskFromFunc(m.clock, interval, func() error {
			m.Flush()
			return nil
		})
		m.flushTask.Start()
	}

	if cfg.ConfigRefreshDelay != "" {
		refreshTask, err := NewConfigUpdateHttpTask(deps.HTTPClient, m.clock, cfg.PubxId, "https://"+cfg.HostName, cfg.ConfigRefreshDelay)
		if err != nil {
			return nil, err
		}
		go m.watchConfig(refreshTask.Start(m.stopCh))
	}

	glog.Infof("[pubx] analytics module configured for publisher %s", cfg.PubxId)
	return m, nil
}

var _ analytics.Module = (*PubxModule)(nil)

func (m *PubxModule) LogBidTimeout(ev *analytics.BidTimeoutEvent) {
	m.muxState.Lock()
	defer m.muxState.Unlock()
	m.engine.HandleBidTimeout(ev)
}

func (m *PubxModule) LogBidResponse(ev *analytics.BidResponseEvent) {
	m.muxState.Lock()
	defer m.muxState.Unlock()
	m.engine.HandleBidResponse(ev)
}

func (m *PubxModule) LogAuctionEnd(ev *analytics.AuctionEndEvent) {
	m.muxState.Lock()
	defer m.muxState.Unlock()
	m.engine.HandleAuctionEnd(ev)
}

func (m *PubxModule) LogBidWon(ev *analytics.BidWonEvent) {
	m.muxState.Lock()
	defer m.muxState.Unlock()
	m.engine.HandleBidWon(ev)
}

// OnPageHide drains all queues synchronously. The host environment invokes it
// when the page transitions to hidden, before teardown may occur.
func (m *PubxModule) OnPageHide() {
	m.Flush()
}

// Flush ships everything currently queued.
func (m *PubxModule) Flush() {
	m.muxState.Lock()
	defer m.muxState.Unlock()
	m.transport.Flush()
}

// Shutdown stops the background tasks and performs a final flush.
func (m *PubxModule) Shutdown() {
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
	if m.flushTask != nil {
		m.flushTask.Stop()
	}
	m.Flush()
}

func (m *PubxModule) watchConfig(updates <-chan *RemoteConfig) {
	for {
		select {
		case <-m.stopCh:
			return
		case rc := <-updates:
			m.applyRemoteConfig(rc)
		}
	}
}

func (m *PubxModule) applyRemoteConfig(rc *RemoteConfig) {
	if rc == nil {
		return
	}
	m.muxConfig.Lock()
	defer m.muxConfig.Unlock()

	if rc.SamplingRate >= 1 && rc.SamplingRate != m.cfg.SamplingRate {
		glog.Infof("[pubx] sampling rate updated: 1/%d -> 1/%d", m.cfg.SamplingRate, rc.SamplingRate)
		m.cfg.SamplingRate = rc.SamplingRate
	}
	if rc.MaxBatchSize != "" && rc.MaxBatchSize != m.cfg.MaxBatchSize {
		probe := *m.cfg
		probe.MaxBatchSize = rc.MaxBatchSize
		if probe.MaxBatchBytes() > 0 {
			glog.Infof("[pubx] max batch size updated: %s -> %s", m.cfg.MaxBatchSize, rc.MaxBatchSize)
			m.cfg.MaxBatchSize = rc.MaxBatchSize
		}
	}
}

func (m *PubxModule) engineOptions() Options {
	m.muxConfig.RLock()
	defer m.muxConfig.RUnlock()
	return Options{
		Pubxid:        m.cfg.PubxId,
		HostName:      m.cfg.HostName,
		SamplingRate:  m.cfg.SamplingRate,
		PrebidVersion: m.cfg.PrebidVersion,
	}
}

func (m *PubxModule) initOptions() InitOptions {
	m.muxConfig.RLock()
	defer m.muxConfig.RUnlock()
	return InitOptions{
		SamplingRate: m.cfg.SamplingRate,
		Pubxid:       m.cfg.PubxId,
		HostName:     m.cfg.HostName,
	}
}

func (m *PubxModule) maxBatchBytes() int64 {
	m.muxConfig.RLock()
	defer m.muxConfig.RUnlock()
	return m.cfg.MaxBatchBytes()
}

type emptyStorage struct{}

func (emptyStorage) Get(string) (string, bool) {
	return "", false
}
