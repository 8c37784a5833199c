package signal

import (
	"fmt"
	"net"
	"sync"

	"github.com/go-logr/logr"
	"github.com/pion/apprtc-direct/pkg/logger"
	"github.com/pion/apprtc-direct/pkg/rtc"
	"github.com/pion/apprtc-direct/pkg/stats"
	"github.com/pion/webrtc/v3"
)

// Logger is the default logger of channels created without one.
var Logger logr.Logger = logger.New().WithName("signal")

// DirectChannel is a Channel over a raw TCP connection between the two
// endpoints, without a signaling server. The room id is the peer address:
// an unspecified address listens for the peer and makes this side the
// initiator, any other address is dialed.
type DirectChannel struct {
	exec   rtc.Executor
	events Events
	log    logr.Logger

	mu     sync.Mutex
	socket *tcpSocket
	role   ChannelRole

	// owned by the executor
	state        State
	disconnected bool
}

// NewDirectChannel creates a channel that runs on exec. log may be nil.
func NewDirectChannel(exec rtc.Executor, events Events, log logr.Logger) *DirectChannel {
	if log == nil {
		log = Logger
	}
	return &DirectChannel{
		exec:   exec,
		events: events,
		log:    log,
	}
}

// ConnectToRoom parses p.RoomID and starts listening or dialing. A channel
// connects once; a second call is a protocol violation.
func (c *DirectChannel) ConnectToRoom(p RoomParams) {
	c.exec.Submit(func() {
		if p.Loopback {
			c.reportError(fmt.Errorf("%w: loopback connections aren't supported by the direct channel", rtc.ErrProtocolViolation))
			return
		}
		if c.disconnected {
			return
		}
		if c.state != StateNew || c.getSocket() != nil {
			c.reportError(fmt.Errorf("%w: already connecting", rtc.ErrProtocolViolation))
			return
		}
		peer, err := ParsePeer(p.RoomID)
		if err != nil {
			c.reportError(err)
			return
		}
		c.log.Info("Connect to room", "room", p.RoomID, "role", peer.Role.String())
		s := newTCPSocket(c.exec, c, peer, c.log)
		c.mu.Lock()
		c.socket = s
		c.role = peer.Role
		c.mu.Unlock()
		s.start()
	})
}

// Disconnect closes the channel. Only the first call has an effect, it fires
// OnChannelClose once.
func (c *DirectChannel) Disconnect() {
	c.exec.Submit(func() {
		if c.disconnected {
			return
		}
		c.disconnected = true
		c.state = StateClosed
		if s := c.getSocket(); s != nil {
			s.disconnect()
			return
		}
		c.events.OnChannelClose()
	})
}

// Addr returns the address the server side listens on, nil for a client or
// before the listener is bound.
func (c *DirectChannel) Addr() net.Addr {
	if s := c.getSocket(); s != nil {
		return s.addr()
	}
	return nil
}

// Role returns the role decided from the room id.
func (c *DirectChannel) Role() ChannelRole {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *DirectChannel) getSocket() *tcpSocket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket
}

// SendOfferSDP sends the local offer.
func (c *DirectChannel) SendOfferSDP(desc webrtc.SessionDescription) {
	c.exec.Submit(func() {
		if !c.checkConnected("sending offer SDP") {
			return
		}
		b, err := encodeDescription(desc)
		c.sendMessage(typeOffer, b, err)
	})
}

// SendAnswerSDP sends the local answer.
func (c *DirectChannel) SendAnswerSDP(desc webrtc.SessionDescription) {
	c.exec.Submit(func() {
		if !c.checkConnected("sending answer SDP") {
			return
		}
		b, err := encodeDescription(desc)
		c.sendMessage(typeAnswer, b, err)
	})
}

// SendLocalCandidate sends one local ICE candidate.
func (c *DirectChannel) SendLocalCandidate(cand rtc.Candidate) {
	c.exec.Submit(func() {
		if !c.checkConnected("sending ICE candidate") {
			return
		}
		b, err := encodeCandidate(cand)
		c.sendMessage(typeCandidate, b, err)
	})
}

// SendLocalCandidateRemovals tells the peer that cs are no longer valid.
func (c *DirectChannel) SendLocalCandidateRemovals(cs []rtc.Candidate) {
	c.exec.Submit(func() {
		if !c.checkConnected("sending ICE candidate removals") {
			return
		}
		b, err := encodeRemoveCandidates(cs)
		c.sendMessage(typeRemoveCandidates, b, err)
	})
}

func (c *DirectChannel) checkConnected(op string) bool {
	if c.state == StateConnected {
		return true
	}
	c.reportError(fmt.Errorf("%w: %s in %s state", rtc.ErrProtocolViolation, op, c.state))
	return false
}

func (c *DirectChannel) sendMessage(msgType string, b []byte, err error) {
	if err != nil {
		c.reportError(fmt.Errorf("%w: %v", rtc.ErrMalformedMessage, err))
		return
	}
	s := c.getSocket()
	if s == nil {
		c.reportError(fmt.Errorf("%w: no socket", rtc.ErrTransport))
		return
	}
	if err := s.send(string(b)); err != nil {
		c.reportError(err)
		return
	}
	stats.SignalMessage(stats.DirectionOut, msgType)
}

func (c *DirectChannel) onTCPConnected(server bool) {
	if c.state != StateNew {
		return
	}
	if server {
		c.state = StateConnected
		c.log.Info("Peer connected", "role", RoleServer.String())
		c.events.OnConnectedToRoom(Params{Initiator: true})
	}
}

func (c *DirectChannel) onTCPMessage(line string) {
	if c.state == StateClosed || c.state == StateError {
		return
	}
	msg, err := decode(line)
	if err != nil {
		c.reportError(err)
		return
	}
	stats.SignalMessage(stats.DirectionIn, msg.Type)

	switch msg.Type {
	case typeCandidate:
		c.events.OnRemoteCandidate(msg.Candidate)
	case typeRemoveCandidates:
		c.events.OnRemoteCandidatesRemoved(msg.Candidates)
	case typeAnswer:
		c.events.OnRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: *msg.SDP})
	case typeOffer:
		if c.Role() == RoleServer {
			c.reportError(fmt.Errorf("%w: offer received by the initiator", rtc.ErrProtocolViolation))
			return
		}
		if c.state == StateConnected {
			c.reportError(fmt.Errorf("%w: offer received twice", rtc.ErrProtocolViolation))
			return
		}
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: *msg.SDP}
		c.state = StateConnected
		c.log.Info("Peer connected", "role", RoleClient.String())
		c.events.OnConnectedToRoom(Params{Initiator: false, Offer: &offer})
	}
}

func (c *DirectChannel) onTCPError(err error) {
	c.reportError(err)
}

func (c *DirectChannel) onTCPClose() {
	if c.state != StateError {
		c.state = StateClosed
	}
	c.events.OnChannelClose()
}

// reportError reports the first error only. Called from the executor.
func (c *DirectChannel) reportError(err error) {
	c.log.Error(err, "Channel error", "state", c.state.String())
	if c.state == StateError {
		return
	}
	c.state = StateError
	stats.ChannelError(rtc.ErrorKind(err))
	c.events.OnChannelError(err)
}
