package media

import (
	"testing"

	"github.com/pion/apprtc-direct/pkg/rtc"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_OfferAnswer(t *testing.T) {
	c := Config{VideoEnabled: true, DataChannel: DataChannelConfig{Enabled: true}}
	offerer, err := NewEngine(c, nil)
	require.NoError(t, err)
	defer offerer.Close()
	answerer, err := NewEngine(c, nil)
	require.NoError(t, err)
	defer answerer.Close()

	offer, err := offerer.CreateOffer()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	assert.Contains(t, offer.SDP, "m=audio ")
	assert.Contains(t, offer.SDP, "m=video ")
	assert.Contains(t, offer.SDP, "m=application ")
	require.NoError(t, offerer.SetLocalDescription(offer))

	require.NoError(t, answerer.SetRemoteDescription(offer))
	answer, err := answerer.CreateAnswer()
	require.NoError(t, err)
	assert.Contains(t, answer.SDP, "m=application ")
	require.NoError(t, answerer.SetLocalDescription(answer))
	require.NoError(t, offerer.SetRemoteDescription(answer))
}

func TestEngine_AudioOnly(t *testing.T) {
	e, err := NewEngine(Config{}, nil)
	require.NoError(t, err)
	defer e.Close()

	offer, err := e.CreateOffer()
	require.NoError(t, err)
	assert.Contains(t, offer.SDP, "m=audio ")
	assert.NotContains(t, offer.SDP, "m=video ")
	assert.NotContains(t, offer.SDP, "m=application ")
}

func TestEngine_DataChannelOptions(t *testing.T) {
	ordered := false
	lifetime, retransmits, id := uint16(3000), uint16(2), uint16(7)
	tests := []struct {
		name string
		c    DataChannelConfig
		ok   bool
	}{
		{name: "Must open with defaults", c: DataChannelConfig{Enabled: true}, ok: true},
		{
			name: "Must open a negotiated unordered channel",
			c:    DataChannelConfig{Enabled: true, Ordered: &ordered, MaxRetransmits: &retransmits, Protocol: "chat", Negotiated: true, ID: &id},
			ok:   true,
		},
		{
			name: "Must reject both lifetime and retransmits",
			c:    DataChannelConfig{Enabled: true, MaxPacketLifeTime: &lifetime, MaxRetransmits: &retransmits},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEngine(Config{DataChannel: tt.c}, nil)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			_ = e.Close()
		})
	}
}

func TestEngine_RejectsGarbage(t *testing.T) {
	e, err := NewEngine(Config{}, nil)
	require.NoError(t, err)
	defer e.Close()

	assert.Error(t, e.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "garbage"}))
	assert.NoError(t, e.RemoveICECandidates([]rtc.Candidate{{Candidate: "candidate:1"}}))
}

func TestNewSettings(t *testing.T) {
	_, conf, err := newSettings(WebRTCConfig{
		ICEPortRange: []uint16{50000, 50100},
		ICEServers: []ICEServerConfig{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
			{URLs: []string{"turn:turn.example.org:3478"}, Username: "user", Credential: "pass"},
		},
	}, Logger)
	require.NoError(t, err)
	require.Len(t, conf.ICEServers, 2)
	assert.Equal(t, "user", conf.ICEServers[1].Username)

	_, _, err = newSettings(WebRTCConfig{ICEPortRange: []uint16{6000, 5000}}, Logger)
	assert.Error(t, err)
}

func TestDataChannelConfig_Options(t *testing.T) {
	opts := DataChannelConfig{Enabled: true}.options()
	assert.Nil(t, opts.Ordered)
	assert.Nil(t, opts.Protocol)
	assert.Nil(t, opts.Negotiated)

	id := uint16(1)
	opts = DataChannelConfig{Protocol: "chat", Negotiated: true, ID: &id}.options()
	require.NotNil(t, opts.Protocol)
	assert.Equal(t, "chat", *opts.Protocol)
	require.NotNil(t, opts.Negotiated)
	assert.True(t, *opts.Negotiated)
	assert.Equal(t, &id, opts.ID)
}
