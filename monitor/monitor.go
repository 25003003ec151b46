// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wfunc/treasurerace/logger"
)

type Metrics struct {
	OnlinePlayers      prometheus.Gauge
	OccupiedRooms      prometheus.Gauge
	TreasuresRemaining prometheus.Gauge
	Commands           *prometheus.CounterVec
	Collections        *prometheus.CounterVec
	RoomEntries        *prometheus.CounterVec
	RoomReleases       *prometheus.CounterVec
	CommandLatency     prometheus.Histogram
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		OccupiedRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "occupied_rooms",
			Help:      "Number of treasure rooms with an occupant",
		}),
		TreasuresRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "treasures_remaining",
			Help:      "Main-map treasures not yet collected",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Client commands handled, by command",
		}, []string{"command"}),
		Collections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collections_total",
			Help:      "Treasures collected, by where",
		}, []string{"where"}),
		RoomEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_entries_total",
			Help:      "Room entry attempts, by outcome",
		}, []string{"outcome"}),
		RoomReleases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_releases_total",
			Help:      "Room releases, by reason",
		}, []string{"reason"}),
		CommandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_latency_seconds",
			Help:      "Command processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.OccupiedRooms,
		m.TreasuresRemaining,
		m.Commands,
		m.Collections,
		m.RoomEntries,
		m.RoomReleases,
		m.CommandLatency,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	registry     *prometheus.Registry
	startTime    time.Time
	requestCount atomic.Int64
}

func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		registry:  reg,
		startTime: time.Now(),
	}
}

var publishOnce sync.Once

// Handler serves /metrics and /debug/vars.
func (m *Monitor) Handler() http.Handler {
	// 添加expvar指标
	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))
		expvar.Publish("requests", expvar.Func(func() interface{} {
			return m.requestCount.Load()
		}))
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

// StartServer serves the metrics endpoints on addr in the background.
func (m *Monitor) StartServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Log.Infof("Metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Errorf("Metrics server stopped: %v", err)
		}
	}()
	return srv
}

func (m *Monitor) PlayerJoined() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) PlayerLeft() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) CommandHandled(command string, d time.Duration) {
	m.metrics.Commands.WithLabelValues(command).Inc()
	m.metrics.CommandLatency.Observe(d.Seconds())
	m.requestCount.Add(1)
}

func (m *Monitor) TreasureCollected(where string, remaining int) {
	m.metrics.Collections.WithLabelValues(where).Inc()
	m.metrics.TreasuresRemaining.Set(float64(remaining))
}

func (m *Monitor) RoomEntry(outcome string, occupied int) {
	m.metrics.RoomEntries.WithLabelValues(outcome).Inc()
	m.metrics.OccupiedRooms.Set(float64(occupied))
}

func (m *Monitor) RoomReleased(reason string, occupied int) {
	m.metrics.RoomReleases.WithLabelValues(reason).Inc()
	m.metrics.OccupiedRooms.Set(float64(occupied))
}

func (m *Monitor) SetTreasuresRemaining(n int) {
	m.metrics.TreasuresRemaining.Set(float64(n))
}
