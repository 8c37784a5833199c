// Package negotiation drives one offer/answer exchange against a media engine.
package negotiation

import (
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/pion/apprtc-direct/pkg/logger"
	"github.com/pion/apprtc-direct/pkg/rtc"
	"github.com/pion/apprtc-direct/pkg/sdpedit"
	"github.com/pion/apprtc-direct/pkg/stats"
	"github.com/pion/webrtc/v3"
)

// Logger is the default logger of machines created without one.
var Logger logr.Logger = logger.New().WithName("negotiation")

// MediaEngine is the part of a peer connection the machine drives. Every call
// is synchronous; the machine re-enters its executor with the result.
type MediaEngine interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(c rtc.Candidate) error
	RemoveICECandidates(cs []rtc.Candidate) error
}

// Events receives the machine's outputs. Handlers run on the executor.
type Events interface {
	// OnLocalDescription is called when the local description must be sent to the peer.
	OnLocalDescription(desc webrtc.SessionDescription)
	// OnNegotiationError is called once, for the first error.
	OnNegotiationError(err error)
}

// Phase of a negotiation.
type Phase int

const (
	PhaseNew Phase = iota
	PhaseLocalDescriptionPending
	PhaseLocalDescriptionSet
	PhaseRemoteDescriptionSet
	PhaseStable
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseLocalDescriptionPending:
		return "local-description-pending"
	case PhaseLocalDescriptionSet:
		return "local-description-set"
	case PhaseRemoteDescriptionSet:
		return "remote-description-set"
	case PhaseStable:
		return "stable"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Machine orders the steps of one negotiation. Public methods may be called
// from any goroutine: they only submit work to the executor. The accessors
// read state owned by the executor and must be called from it.
type Machine struct {
	exec   rtc.Executor
	engine MediaEngine
	events Events
	config Config
	log    logr.Logger

	closed int32

	phase         Phase
	role          rtc.Role
	localPending  bool
	local         *webrtc.SessionDescription
	localApplied  bool
	remote        *webrtc.SessionDescription
	remoteApplied bool
	queue         CandidateQueue
}

// NewMachine creates a machine for one negotiation. log may be nil.
func NewMachine(exec rtc.Executor, engine MediaEngine, events Events, c Config, log logr.Logger) *Machine {
	if log == nil {
		log = Logger
	}
	return &Machine{
		exec:   exec,
		engine: engine,
		events: events,
		config: c,
		log:    log,
	}
}

// CreateOffer makes this side the initiator and creates the local offer.
func (m *Machine) CreateOffer() {
	m.submit(func() { m.createLocal(rtc.RoleInitiator) })
}

// CreateAnswer makes this side the answerer and creates the local answer.
func (m *Machine) CreateAnswer() {
	m.submit(func() { m.createLocal(rtc.RoleAnswerer) })
}

// SetRemoteDescription rewrites desc for the configured codecs and bitrates
// and applies it.
func (m *Machine) SetRemoteDescription(desc webrtc.SessionDescription) {
	m.submit(func() { m.setRemote(desc) })
}

// AddRemoteCandidate applies c, or queues it until the negotiation is stable.
func (m *Machine) AddRemoteCandidate(c rtc.Candidate) {
	m.submit(func() {
		if m.phase != PhaseStable {
			m.queue.Push(c)
			stats.CandidateQueued()
			m.log.V(2).Info("Queued remote candidate", "candidate", c.String(), "queued", m.queue.Len())
			return
		}
		if err := m.engine.AddICECandidate(c); err != nil {
			m.fail(fmt.Errorf("%w: add candidate: %v", rtc.ErrNegotiationApply, err))
		}
	})
}

// RemoveRemoteCandidates drains every queued candidate, then removes cs.
func (m *Machine) RemoveRemoteCandidates(cs []rtc.Candidate) {
	m.submit(func() {
		if !m.drain() {
			return
		}
		if err := m.engine.RemoveICECandidates(cs); err != nil {
			m.fail(fmt.Errorf("%w: remove candidates: %v", rtc.ErrNegotiationApply, err))
		}
	})
}

// Close turns every queued and future task into a no-op.
func (m *Machine) Close() {
	atomic.StoreInt32(&m.closed, 1)
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Role returns the role, RoleUnknown until an offer or answer was requested.
func (m *Machine) Role() rtc.Role {
	return m.role
}

// QueuedCandidates returns how many remote candidates wait for the drain.
func (m *Machine) QueuedCandidates() int {
	return m.queue.Len()
}

func (m *Machine) isClosed() bool {
	return atomic.LoadInt32(&m.closed) == 1
}

// submit runs task on the executor unless the machine was closed or failed
// by the time it runs.
func (m *Machine) submit(task func()) {
	m.exec.Submit(func() {
		if m.isClosed() || m.phase == PhaseError {
			return
		}
		task()
	})
}

func (m *Machine) createLocal(role rtc.Role) {
	if m.localPending || m.local != nil {
		m.fail(fmt.Errorf("%w: multiple SDP create", rtc.ErrProtocolViolation))
		return
	}
	m.role = role
	m.localPending = true
	if m.phase == PhaseNew {
		m.phase = PhaseLocalDescriptionPending
	}

	var desc webrtc.SessionDescription
	var err error
	if role == rtc.RoleInitiator {
		desc, err = m.engine.CreateOffer()
	} else {
		desc, err = m.engine.CreateAnswer()
	}
	m.submit(func() {
		if err != nil {
			m.fail(fmt.Errorf("%w: create %s: %v", rtc.ErrNegotiationApply, role, err))
			return
		}
		m.onLocalDescriptionCreated(desc)
	})
}

func (m *Machine) onLocalDescriptionCreated(desc webrtc.SessionDescription) {
	if m.local != nil {
		m.fail(fmt.Errorf("%w: multiple SDP create", rtc.ErrProtocolViolation))
		return
	}
	sdp := desc.SDP
	if m.config.AudioCodec != "" {
		sdp = sdpedit.PreferCodec(sdp, m.config.AudioCodec, true)
	}
	if m.config.VideoEnabled {
		sdp = sdpedit.PreferCodec(sdp, sdpedit.VideoCodecName(m.config.VideoCodec), false)
	}
	local := webrtc.SessionDescription{Type: desc.Type, SDP: sdp}
	m.local = &local
	m.localPending = false
	m.log.V(1).Info("Set local description", "type", local.Type.String(), "role", m.role.String())

	err := m.engine.SetLocalDescription(local)
	m.submit(func() {
		if err != nil {
			m.fail(fmt.Errorf("%w: set local description: %v", rtc.ErrNegotiationApply, err))
			return
		}
		m.localApplied = true
		m.onDescriptionApplied()
	})
}

func (m *Machine) setRemote(desc webrtc.SessionDescription) {
	if m.remote != nil {
		m.fail(fmt.Errorf("%w: multiple remote descriptions", rtc.ErrProtocolViolation))
		return
	}
	remote := webrtc.SessionDescription{Type: desc.Type, SDP: m.rewriteRemote(desc.SDP)}
	m.remote = &remote
	m.log.V(1).Info("Set remote description", "type", remote.Type.String(), "role", m.role.String())

	err := m.engine.SetRemoteDescription(remote)
	m.submit(func() {
		if err != nil {
			m.fail(fmt.Errorf("%w: set remote description: %v", rtc.ErrNegotiationApply, err))
			return
		}
		m.remoteApplied = true
		m.onDescriptionApplied()
	})
}

func (m *Machine) rewriteRemote(sdp string) string {
	if m.config.AudioCodec != "" {
		sdp = sdpedit.PreferCodec(sdp, m.config.AudioCodec, true)
	}
	if m.config.VideoEnabled {
		sdp = sdpedit.PreferCodec(sdp, sdpedit.VideoCodecName(m.config.VideoCodec), false)
	}
	if m.config.AudioStartBitrate > 0 {
		sdp = sdpedit.SetStartBitrate(sdpedit.AudioCodecOpus, false, sdp, m.config.AudioStartBitrate)
	}
	if m.config.VideoEnabled && m.config.VideoStartBitrate > 0 {
		sdp = sdpedit.SetStartBitrate(sdpedit.VideoCodecName(m.config.VideoCodec), true, sdp, m.config.VideoStartBitrate)
	}
	return sdp
}

// onDescriptionApplied decides the next step after the engine accepted a
// local or remote description.
func (m *Machine) onDescriptionApplied() {
	if m.localApplied && m.remoteApplied {
		m.phase = PhaseStable
	} else if m.localApplied {
		m.phase = PhaseLocalDescriptionSet
	} else if m.remoteApplied {
		m.phase = PhaseRemoteDescriptionSet
	}

	if m.role == rtc.RoleInitiator {
		if !m.remoteApplied {
			m.events.OnLocalDescription(*m.local)
			return
		}
		if m.localApplied {
			m.drain()
		}
		return
	}

	switch {
	case m.localApplied && m.remoteApplied:
		m.events.OnLocalDescription(*m.local)
		m.drain()
	case m.remoteApplied && !m.localPending && m.local == nil:
		// remote offer applied, the answer is created right away
		m.createLocal(rtc.RoleAnswerer)
	}
}

// drain applies every queued candidate in arrival order. It returns false if
// the engine rejected one.
func (m *Machine) drain() bool {
	if m.queue.Len() == 0 {
		return true
	}
	m.log.V(1).Info("Add remote candidates", "count", m.queue.Len())
	n, err := m.queue.Drain(m.engine.AddICECandidate)
	stats.CandidatesDrained(n)
	if err != nil {
		m.fail(fmt.Errorf("%w: add candidate: %v", rtc.ErrNegotiationApply, err))
		return false
	}
	return true
}

func (m *Machine) fail(err error) {
	if m.phase == PhaseError {
		return
	}
	m.phase = PhaseError
	stats.NegotiationError(rtc.ErrorKind(err))
	m.log.Error(err, "Negotiation failed", "role", m.role.String())
	m.events.OnNegotiationError(err)
}
