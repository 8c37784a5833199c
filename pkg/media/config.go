package media

import (
	"github.com/go-logr/logr"
	"github.com/pion/webrtc/v3"
)

// DataChannelLabel is the label of the data channel an engine opens.
const DataChannelLabel = "ApprtcDemo data"

// ICEServerConfig defines parameters for ice servers
type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

// Candidates tunes local candidate gathering
type Candidates struct {
	NAT1To1IPs []string `mapstructure:"nat1to1"`
}

// WebRTCConfig defines parameters for the peer connection
type WebRTCConfig struct {
	ICEPortRange []uint16          `mapstructure:"portrange"`
	ICEServers   []ICEServerConfig `mapstructure:"iceserver"`
	Candidates   Candidates        `mapstructure:"candidates"`
}

// DataChannelConfig defines the data channel opened next to the media.
// Unset optional fields keep pion's defaults: ordered, reliable, id chosen
// by the stack.
type DataChannelConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	Ordered           *bool   `mapstructure:"ordered"`
	MaxPacketLifeTime *uint16 `mapstructure:"maxpacketlifetime"`
	MaxRetransmits    *uint16 `mapstructure:"maxretransmits"`
	Protocol          string  `mapstructure:"protocol"`
	Negotiated        bool    `mapstructure:"negotiated"`
	ID                *uint16 `mapstructure:"id"`
}

func (c DataChannelConfig) options() *webrtc.DataChannelInit {
	opts := &webrtc.DataChannelInit{
		Ordered:           c.Ordered,
		MaxPacketLifeTime: c.MaxPacketLifeTime,
		MaxRetransmits:    c.MaxRetransmits,
		ID:                c.ID,
	}
	if c.Protocol != "" {
		opts.Protocol = &c.Protocol
	}
	if c.Negotiated {
		opts.Negotiated = &c.Negotiated
	}
	return opts
}

// Config of an Engine
type Config struct {
	WebRTC       WebRTCConfig
	DataChannel  DataChannelConfig
	VideoEnabled bool
}

// newSettings parses c into what pion needs to create a PeerConnection.
func newSettings(c WebRTCConfig, log logr.Logger) (webrtc.SettingEngine, webrtc.Configuration, error) {
	se := webrtc.SettingEngine{
		LoggerFactory: NewLoggerFactory(log),
	}

	var icePortStart, icePortEnd uint16
	if len(c.ICEPortRange) == 2 {
		icePortStart = c.ICEPortRange[0]
		icePortEnd = c.ICEPortRange[1]
	}
	if icePortStart != 0 || icePortEnd != 0 {
		if err := se.SetEphemeralUDPPortRange(icePortStart, icePortEnd); err != nil {
			return se, webrtc.Configuration{}, err
		}
	}

	if len(c.Candidates.NAT1To1IPs) > 0 {
		se.SetNAT1To1IPs(c.Candidates.NAT1To1IPs, webrtc.ICECandidateTypeHost)
	}

	var iceServers []webrtc.ICEServer
	for _, iceServer := range c.ICEServers {
		s := webrtc.ICEServer{
			URLs:       iceServer.URLs,
			Username:   iceServer.Username,
			Credential: iceServer.Credential,
		}
		iceServers = append(iceServers, s)
	}

	return se, webrtc.Configuration{
		ICEServers:   iceServers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlan,
	}, nil
}
