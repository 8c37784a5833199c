// Package media implements the negotiation media engine on a pion PeerConnection.
package media

import (
	"sync"

	"github.com/go-logr/logr"
	"github.com/pion/apprtc-direct/pkg/logger"
	"github.com/pion/apprtc-direct/pkg/rtc"
	"github.com/pion/apprtc-direct/pkg/sdpedit"
	"github.com/pion/webrtc/v3"
)

// Logger is the default logger of engines created without one.
var Logger logr.Logger = logger.New().WithName("media")

// Engine wraps a PeerConnection with one audio and, if enabled, one video
// transceiver and one data channel.
type Engine struct {
	sync.Mutex
	pc  *webrtc.PeerConnection
	log logr.Logger

	onLocalCandidate        func(rtc.Candidate)
	onConnectionStateChange func(webrtc.PeerConnectionState)
}

// NewEngine creates the PeerConnection. log may be nil.
func NewEngine(c Config, log logr.Logger) (*Engine, error) {
	if log == nil {
		log = Logger
	}
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	se, conf, err := newSettings(c.WebRTC, log)
	if err != nil {
		return nil, err
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se))
	pc, err := api.NewPeerConnection(conf)
	if err != nil {
		return nil, err
	}

	kinds := []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio}
	if c.VideoEnabled {
		kinds = append(kinds, webrtc.RTPCodecTypeVideo)
	}
	for _, kind := range kinds {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendrecv,
		}); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}

	e := &Engine{pc: pc, log: log}
	if c.DataChannel.Enabled {
		dc, err := pc.CreateDataChannel(DataChannelLabel, c.DataChannel.options())
		if err != nil {
			_ = pc.Close()
			return nil, err
		}
		e.watchDataChannel(dc)
	}
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		e.log.V(1).Info("New data channel", "label", dc.Label())
		if !c.DataChannel.Enabled {
			return
		}
		e.watchDataChannel(dc)
	})
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			e.log.V(1).Info("ICE gathering complete")
			return
		}
		e.Lock()
		handler := e.onLocalCandidate
		e.Unlock()
		if handler != nil {
			handler(rtc.CandidateFromInit(c.ToJSON()))
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		e.log.Info("Peer connection state changed", "state", s.String())
		e.Lock()
		handler := e.onConnectionStateChange
		e.Unlock()
		if handler != nil {
			handler(s)
		}
	})
	return e, nil
}

// OnLocalCandidate sets the handler for gathered local candidates.
func (e *Engine) OnLocalCandidate(f func(rtc.Candidate)) {
	e.Lock()
	e.onLocalCandidate = f
	e.Unlock()
}

// OnConnectionStateChange sets the handler for peer connection state changes.
func (e *Engine) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	e.Lock()
	e.onConnectionStateChange = f
	e.Unlock()
}

func (e *Engine) CreateOffer() (webrtc.SessionDescription, error) {
	return e.pc.CreateOffer(nil)
}

func (e *Engine) CreateAnswer() (webrtc.SessionDescription, error) {
	return e.pc.CreateAnswer(nil)
}

func (e *Engine) SetLocalDescription(desc webrtc.SessionDescription) error {
	e.logCodecs("local", desc)
	return e.pc.SetLocalDescription(desc)
}

func (e *Engine) SetRemoteDescription(desc webrtc.SessionDescription) error {
	e.logCodecs("remote", desc)
	return e.pc.SetRemoteDescription(desc)
}

func (e *Engine) AddICECandidate(c rtc.Candidate) error {
	return e.pc.AddICECandidate(c.ToInit())
}

// RemoveICECandidates is not supported by pion, the removal is only logged.
func (e *Engine) RemoveICECandidates(cs []rtc.Candidate) error {
	for _, c := range cs {
		e.log.V(1).Info("Ignoring remote candidate removal", "candidate", c.String())
	}
	return nil
}

// Close closes the PeerConnection.
func (e *Engine) Close() error {
	return e.pc.Close()
}

// watchDataChannel logs the life cycle and the messages of dc.
func (e *Engine) watchDataChannel(dc *webrtc.DataChannel) {
	log := e.log.WithValues("label", dc.Label())
	dc.OnOpen(func() {
		log.V(1).Info("Data channel state changed", "state", dc.ReadyState().String())
	})
	dc.OnClose(func() {
		log.V(1).Info("Data channel state changed", "state", dc.ReadyState().String())
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !msg.IsString {
			log.V(1).Info("Received binary message", "size", len(msg.Data))
			return
		}
		log.V(1).Info("Received message", "message", string(msg.Data))
	})
}

func (e *Engine) logCodecs(side string, desc webrtc.SessionDescription) {
	if !e.log.V(1).Enabled() {
		return
	}
	codecs, err := sdpedit.Codecs(desc.SDP)
	if err != nil {
		e.log.V(1).Info("Unparsable description", "side", side, "err", err)
		return
	}
	e.log.V(1).Info("Apply description", "side", side, "type", desc.Type.String(), "codecs", codecs)
}
