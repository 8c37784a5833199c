package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSignalMessage(t *testing.T) {
	before := testutil.ToFloat64(signalMessages.WithLabelValues(DirectionOut, "offer"))
	SignalMessage(DirectionOut, "offer")
	SignalMessage(DirectionOut, "offer")
	assert.Equal(t, before+2, testutil.ToFloat64(signalMessages.WithLabelValues(DirectionOut, "offer")))
}

func TestErrors(t *testing.T) {
	ch := testutil.ToFloat64(channelErrors.WithLabelValues("transport"))
	neg := testutil.ToFloat64(negotiationErrors.WithLabelValues("protocol_violation"))
	ChannelError("transport")
	NegotiationError("protocol_violation")
	assert.Equal(t, ch+1, testutil.ToFloat64(channelErrors.WithLabelValues("transport")))
	assert.Equal(t, neg+1, testutil.ToFloat64(negotiationErrors.WithLabelValues("protocol_violation")))
}

func TestCandidates(t *testing.T) {
	q := testutil.ToFloat64(candidatesQueued)
	d := testutil.ToFloat64(candidatesDrained)
	CandidateQueued()
	CandidateQueued()
	CandidatesDrained(2)
	assert.Equal(t, q+2, testutil.ToFloat64(candidatesQueued))
	assert.Equal(t, d+2, testutil.ToFloat64(candidatesDrained))
}
