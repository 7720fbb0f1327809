package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"homie2mqtt/internal/logger"
)

const namespace = "homie2mqtt"

// Metrics holds the counters of the MQTT adapter and the Homie session.
type Metrics struct {
	registry *prometheus.Registry

	Published     prometheus.Counter
	Refused       *prometheus.CounterVec
	Subscriptions prometheus.Counter
	Inbound       *prometheus.CounterVec
	Connects      prometheus.Counter
	State         prometheus.Gauge
}

// New creates the collectors and registers them in a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "published_total",
			Help:      "Packets handed to the MQTT client.",
		}),
		Refused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "refused_total",
			Help:      "Packets refused by backpressure, by reason.",
		}, []string{"reason"}),
		Subscriptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "subscriptions_total",
			Help:      "Subscriptions registered.",
		}),
		Inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "homie",
			Name:      "inbound_total",
			Help:      "Inbound messages, by result (matched or dropped).",
		}, []string{"result"}),
		Connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "connects_total",
			Help:      "Successful connections to the broker.",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "homie",
			Name:      "state",
			Help:      "Session state (0=disconnected, 1=init, 2=device-meta, 3=node-meta, 4=ready, 5=active).",
		}),
	}
	m.registry.MustRegister(m.Published, m.Refused, m.Subscriptions, m.Inbound, m.Connects, m.State)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server exposes the metrics over HTTP.
type Server struct {
	log    logger.Logger
	server *http.Server
}

func NewServer(log logger.Logger, listen string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		log: log,
		server: &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.log.With(logger.Fields{"module": "metrics"}).Infof("listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.With(logger.Fields{"module": "metrics"}).Errorf("metrics server: %v", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop metrics server: %w", err)
	}
	return nil
}
