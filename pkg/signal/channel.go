// Package signal carries offers, answers and ICE candidates between the two
// endpoints of a call.
package signal

import (
	"github.com/pion/apprtc-direct/pkg/rtc"
	"github.com/pion/webrtc/v3"
)

// RoomParams selects the room to connect to.
type RoomParams struct {
	// RoomID identifies the peer. For the direct channel it is an IP literal
	// or localhost with an optional port.
	RoomID   string `mapstructure:"room"`
	Loopback bool   `mapstructure:"loopback"`
}

// Params describes the room once the channel is connected.
type Params struct {
	// Initiator is true if this side must create the offer.
	Initiator bool
	// Offer is the remote offer an answerer was connected with.
	Offer *webrtc.SessionDescription
}

// Channel sends local negotiation data to the peer. Implementations run every
// operation on their executor and report results through Events.
type Channel interface {
	ConnectToRoom(p RoomParams)
	SendOfferSDP(desc webrtc.SessionDescription)
	SendAnswerSDP(desc webrtc.SessionDescription)
	SendLocalCandidate(c rtc.Candidate)
	SendLocalCandidateRemovals(cs []rtc.Candidate)
	Disconnect()
}

// Events receives everything the peer sends. Handlers run on the executor.
type Events interface {
	OnConnectedToRoom(p Params)
	OnRemoteDescription(desc webrtc.SessionDescription)
	OnRemoteCandidate(c rtc.Candidate)
	OnRemoteCandidatesRemoved(cs []rtc.Candidate)
	OnChannelClose()
	OnChannelError(err error)
}

// State of a channel.
type State int

const (
	StateNew State = iota
	StateConnected
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
