// Package call wires a signaling channel, a negotiation machine and a media
// engine into one call.
package call

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/lucsky/cuid"
	"github.com/pion/apprtc-direct/pkg/logger"
	"github.com/pion/apprtc-direct/pkg/media"
	"github.com/pion/apprtc-direct/pkg/negotiation"
	"github.com/pion/apprtc-direct/pkg/rtc"
	"github.com/pion/apprtc-direct/pkg/signal"
	"github.com/pion/apprtc-direct/pkg/worker"
	"github.com/pion/webrtc/v3"
)

// Logger is the parent of every call logger.
var Logger logr.Logger = logger.New().WithName("call")

// Config of a call
type Config struct {
	Negotiation negotiation.Config      `mapstructure:"negotiation"`
	WebRTC      media.WebRTCConfig      `mapstructure:"webrtc"`
	DataChannel media.DataChannelConfig `mapstructure:"datachannel"`
}

// Engine is the media engine a call drives.
type Engine interface {
	negotiation.MediaEngine
	OnLocalCandidate(f func(rtc.Candidate))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	Close() error
}

// ChannelFactory creates the signaling channel of a call.
type ChannelFactory func(exec rtc.Executor, events signal.Events, log logr.Logger) signal.Channel

// DirectChannel is a ChannelFactory for signal.DirectChannel.
func DirectChannel(exec rtc.Executor, events signal.Events, log logr.Logger) signal.Channel {
	return signal.NewDirectChannel(exec, events, log)
}

// Call is one call attempt. It hangs up on the first error, on channel close
// or on Hangup; a new attempt needs a new Call.
type Call struct {
	id      string
	log     logr.Logger
	worker  *worker.Serial
	engine  Engine
	channel signal.Channel
	machine *negotiation.Machine

	hangupOnce sync.Once
	done       chan struct{}
	mu         sync.Mutex
	err        error
}

// New creates a call on engine, signaling through the channel newChannel creates.
func New(c Config, engine Engine, newChannel ChannelFactory) (*Call, error) {
	id := cuid.New()
	return newCall(id, Logger.WithValues("call_id", id), c, engine, newChannel)
}

func newCall(id string, log logr.Logger, c Config, engine Engine, newChannel ChannelFactory) (*Call, error) {
	if err := c.Negotiation.Validate(); err != nil {
		return nil, err
	}
	call := &Call{
		id:     id,
		log:    log,
		worker: worker.NewSerial(),
		engine: engine,
		done:   make(chan struct{}),
	}
	call.channel = newChannel(call.worker, call, call.log.WithName("signal"))
	call.machine = negotiation.NewMachine(call.worker, engine, negotiationEvents{call}, c.Negotiation, call.log.WithName("negotiation"))

	engine.OnLocalCandidate(func(cand rtc.Candidate) {
		call.log.V(2).Info("Local candidate", "candidate", cand.String())
		call.channel.SendLocalCandidate(cand)
	})
	engine.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateFailed {
			call.hangup(fmt.Errorf("%w: peer connection failed", rtc.ErrTransport))
		}
	})
	return call, nil
}

// NewDirect creates a call on a pion engine over a direct TCP channel.
func NewDirect(c Config) (*Call, error) {
	id := cuid.New()
	log := Logger.WithValues("call_id", id)
	engine, err := media.NewEngine(media.Config{
		WebRTC:       c.WebRTC,
		DataChannel:  c.DataChannel,
		VideoEnabled: c.Negotiation.VideoEnabled,
	}, log.WithName("media"))
	if err != nil {
		return nil, err
	}
	call, err := newCall(id, log, c, engine, DirectChannel)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return call, nil
}

// ID returns the call id.
func (c *Call) ID() string {
	return c.id
}

// Start connects to room.
func (c *Call) Start(room signal.RoomParams) {
	c.log.Info("Starting call", "room", room.RoomID)
	c.channel.ConnectToRoom(room)
}

// Hangup ends the call. It is safe to call more than once, from any goroutine.
func (c *Call) Hangup() {
	c.hangup(nil)
}

// Done is closed once the call has ended and the engine is closed.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the call, nil for a normal hangup.
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Call) hangup(err error) {
	c.hangupOnce.Do(func() {
		if err != nil {
			c.log.Error(err, "Hanging up", "kind", rtc.ErrorKind(err))
		} else {
			c.log.Info("Hanging up")
		}
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()

		c.machine.Close()
		c.channel.Disconnect()
		c.worker.Stop()
		go func() {
			<-c.worker.Done()
			if err := c.engine.Close(); err != nil {
				c.log.Error(err, "Failed to close media engine")
			}
			close(c.done)
		}()
	})
}

// OnConnectedToRoom starts the negotiation in the role the channel decided.
func (c *Call) OnConnectedToRoom(p signal.Params) {
	c.log.Info("Connected to room", "initiator", p.Initiator)
	if p.Initiator {
		c.machine.CreateOffer()
		return
	}
	if p.Offer != nil {
		c.machine.SetRemoteDescription(*p.Offer)
	}
}

func (c *Call) OnRemoteDescription(desc webrtc.SessionDescription) {
	c.machine.SetRemoteDescription(desc)
}

func (c *Call) OnRemoteCandidate(cand rtc.Candidate) {
	c.machine.AddRemoteCandidate(cand)
}

func (c *Call) OnRemoteCandidatesRemoved(cs []rtc.Candidate) {
	c.machine.RemoveRemoteCandidates(cs)
}

func (c *Call) OnChannelClose() {
	c.hangup(nil)
}

func (c *Call) OnChannelError(err error) {
	c.hangup(err)
}

// negotiationEvents keeps the machine callbacks off Call's exported API.
type negotiationEvents struct {
	c *Call
}

func (e negotiationEvents) OnLocalDescription(desc webrtc.SessionDescription) {
	if desc.Type == webrtc.SDPTypeOffer {
		e.c.channel.SendOfferSDP(desc)
		return
	}
	e.c.channel.SendAnswerSDP(desc)
}

func (e negotiationEvents) OnNegotiationError(err error) {
	e.c.hangup(err)
}
