// Package metrics exports room gauges and counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "room"

type Prometheus struct {
	registry *prometheus.Registry

	connections  prometheus.Gauge
	participants prometheus.Gauge
	voice        prometheus.Gauge
	streams      prometheus.Gauge
	boothHeld    prometheus.Gauge
	rejected     *prometheus.CounterVec
	resyncs      prometheus.Counter
	relayed      *prometheus.CounterVec
}

// NewPrometheus registers the room collectors plus the Go runtime ones on a
// private registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections",
			Help: "Open transport connections.",
		}),
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "participants",
			Help: "Authenticated participants, one per username.",
		}),
		voice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "voice_members",
			Help: "Connections seated in the voice channel.",
		}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "streams",
			Help: "Active screen shares.",
		}),
		boothHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "booth_held",
			Help: "1 while someone holds the DJ booth.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rejected_total",
			Help: "Requests refused, by reason.",
		}, []string{"reason"}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "resyncs_total",
			Help: "Playback updates that moved the shared timeline.",
		}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signals_relayed_total",
			Help: "WebRTC signals forwarded, by channel.",
		}, []string{"kind"}),
	}
	p.registry.MustRegister(
		p.connections, p.participants, p.voice, p.streams, p.boothHeld,
		p.rejected, p.resyncs, p.relayed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) SetConnections(n int)  { p.connections.Set(float64(n)) }
func (p *Prometheus) SetParticipants(n int) { p.participants.Set(float64(n)) }
func (p *Prometheus) SetVoiceMembers(n int) { p.voice.Set(float64(n)) }
func (p *Prometheus) SetStreams(n int)      { p.streams.Set(float64(n)) }

func (p *Prometheus) SetBoothHeld(held bool) {
	if held {
		p.boothHeld.Set(1)
		return
	}
	p.boothHeld.Set(0)
}

func (p *Prometheus) IncRejected(reason string) { p.rejected.WithLabelValues(reason).Inc() }
func (p *Prometheus) IncResync()                { p.resyncs.Inc() }
func (p *Prometheus) IncRelayed(kind string)    { p.relayed.WithLabelValues(kind).Inc() }
