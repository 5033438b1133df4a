package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exposes the host's operational metrics. It
// registers against the registry it is given so tests can use a
// private one.
type PrometheusCollector struct {
	peersConnected  prometheus.Gauge
	peerJoinsTotal  prometheus.Counter
	peerLeavesTotal prometheus.Counter

	framesRelayedTotal prometheus.Counter
	relayedFrameBytes  prometheus.Histogram

	inputCommandsTotal     *prometheus.CounterVec
	actuationFailuresTotal prometheus.Counter
	dispatchDuration       prometheus.Histogram

	transportRejectsTotal prometheus.Counter

	pipelineState            prometheus.Gauge
	pipelineTransitionsTotal *prometheus.CounterVec

	beaconAnnouncementsTotal prometheus.Counter
}

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		peersConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "playcast_peers_connected",
			Help: "Number of currently registered signaling peers",
		}),

		peerJoinsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "playcast_peer_joins_total",
			Help: "Total number of accepted signaling connections",
		}),

		peerLeavesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "playcast_peer_leaves_total",
			Help: "Total number of departed signaling peers",
		}),

		framesRelayedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "playcast_frames_relayed_total",
			Help: "Total signaling frame copies queued for other peers",
		}),

		relayedFrameBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "playcast_relayed_frame_bytes",
			Help:    "Size of relayed signaling frames",
			Buckets: prometheus.ExponentialBuckets(16, 4, 8),
		}),

		inputCommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "playcast_input_commands_total",
			Help: "Decoded input commands by transport and outcome",
		}, []string{"transport", "outcome"}),

		actuationFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "playcast_actuation_failures_total",
			Help: "Decoded commands the OS or virtual controller refused",
		}),

		dispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "playcast_input_dispatch_duration_seconds",
			Help:    "Time from decoded command to completed actuation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),

		transportRejectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "playcast_transport_sessions_rejected_total",
			Help: "KCP sessions closed at accept because the peer limit was reached",
		}),

		pipelineState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "playcast_pipeline_playing",
			Help: "1 while the media pipeline is playing, 0 otherwise",
		}),

		pipelineTransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "playcast_pipeline_transitions_total",
			Help: "Pipeline lifecycle transitions by resulting state",
		}, []string{"state"}),

		beaconAnnouncementsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "playcast_beacon_announcements_total",
			Help: "Discovery datagrams broadcast on the local network",
		}),
	}
}

func (p *PrometheusCollector) RecordPeerJoined() {
	p.peersConnected.Inc()
	p.peerJoinsTotal.Inc()
}

func (p *PrometheusCollector) RecordPeerLeft() {
	p.peersConnected.Dec()
	p.peerLeavesTotal.Inc()
}

// RecordFrameRelayed counts one inbound frame fanned out to copies
// receivers.
func (p *PrometheusCollector) RecordFrameRelayed(frameBytes, copies int) {
	if copies > 0 {
		p.framesRelayedTotal.Add(float64(copies))
	}
	p.relayedFrameBytes.Observe(float64(frameBytes))
}

// RecordInputCommand counts a decode attempt. Transport is "kcp" or
// "signal"; applied is false for malformed, unknown, and failed
// commands.
func (p *PrometheusCollector) RecordInputCommand(transport string, applied bool) {
	outcome := "applied"
	if !applied {
		outcome = "rejected"
	}
	p.inputCommandsTotal.WithLabelValues(transport, outcome).Inc()
}

func (p *PrometheusCollector) RecordActuationFailure() {
	p.actuationFailuresTotal.Inc()
}

func (p *PrometheusCollector) ObserveDispatchDuration(d time.Duration) {
	p.dispatchDuration.Observe(d.Seconds())
}

func (p *PrometheusCollector) RecordSessionRejected() {
	p.transportRejectsTotal.Inc()
}

// RecordPipelineState tracks the lifecycle gauge and transition
// counter. State is the resulting state name.
func (p *PrometheusCollector) RecordPipelineState(state string, playing bool) {
	if playing {
		p.pipelineState.Set(1)
	} else {
		p.pipelineState.Set(0)
	}
	p.pipelineTransitionsTotal.WithLabelValues(state).Inc()
}

func (p *PrometheusCollector) RecordBeaconAnnouncement() {
	p.beaconAnnouncementsTotal.Inc()
}
