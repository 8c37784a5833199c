// Package rtc holds the value types shared by the signaling and negotiation layers.
package rtc

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

// Candidate is a remote or local ICE candidate as carried by the signaling channel.
type Candidate struct {
	SDPMLineIndex int    `json:"label"`
	SDPMid        string `json:"id"`
	Candidate     string `json:"candidate"`
}

// CandidateFromInit converts a pion candidate to a Candidate. Missing
// mid/index fields become their zero values.
func CandidateFromInit(c webrtc.ICECandidateInit) Candidate {
	out := Candidate{Candidate: c.Candidate}
	if c.SDPMid != nil {
		out.SDPMid = *c.SDPMid
	}
	if c.SDPMLineIndex != nil {
		out.SDPMLineIndex = int(*c.SDPMLineIndex)
	}
	return out
}

// ToInit converts c to the form accepted by webrtc.PeerConnection.AddICECandidate.
func (c Candidate) ToInit() webrtc.ICECandidateInit {
	mid := c.SDPMid
	idx := uint16(c.SDPMLineIndex)
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s:%d %s", c.SDPMid, c.SDPMLineIndex, c.Candidate)
}

// Role is the negotiation role of the local endpoint.
type Role int

const (
	// RoleUnknown is the role before an offer or answer has been requested.
	RoleUnknown Role = iota
	// RoleInitiator creates the offer.
	RoleInitiator
	// RoleAnswerer answers a remote offer.
	RoleAnswerer
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleAnswerer:
		return "answerer"
	default:
		return "unknown"
	}
}

// Executor runs submitted tasks one at a time, in submission order.
type Executor interface {
	Submit(task func())
}
