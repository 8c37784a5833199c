// Package stats exports Prometheus counters for signaling and negotiation.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DirectionIn labels messages read from the peer
	DirectionIn = "in"
	// DirectionOut labels messages written to the peer
	DirectionOut = "out"
)

var (
	signalMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "signal",
		Name:      "messages_total",
	}, []string{"direction", "type"})

	channelErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "signal",
		Name:      "errors_total",
	}, []string{"kind"})

	negotiationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "negotiation",
		Name:      "errors_total",
	}, []string{"kind"})

	candidatesQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "negotiation",
		Name:      "candidates_queued_total",
	})

	candidatesDrained = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "negotiation",
		Name:      "candidates_drained_total",
	})
)

func init() {
	prometheus.MustRegister(signalMessages)
	prometheus.MustRegister(channelErrors)
	prometheus.MustRegister(negotiationErrors)
	prometheus.MustRegister(candidatesQueued)
	prometheus.MustRegister(candidatesDrained)
}

// SignalMessage counts one signaling message of type msgType.
func SignalMessage(direction, msgType string) {
	signalMessages.WithLabelValues(direction, msgType).Inc()
}

// ChannelError counts a reported channel error of kind.
func ChannelError(kind string) {
	channelErrors.WithLabelValues(kind).Inc()
}

// NegotiationError counts a reported negotiation error of kind.
func NegotiationError(kind string) {
	negotiationErrors.WithLabelValues(kind).Inc()
}

// CandidateQueued counts a remote candidate held back until negotiation is stable.
func CandidateQueued() {
	candidatesQueued.Inc()
}

// CandidatesDrained counts n queued candidates handed to the media engine.
func CandidatesDrained(n int) {
	candidatesDrained.Add(float64(n))
}
