package signal

import (
	"encoding/json"
	"fmt"

	"github.com/pion/apprtc-direct/pkg/rtc"
	"github.com/pion/webrtc/v3"
)

const (
	typeOffer            = "offer"
	typeAnswer           = "answer"
	typeCandidate        = "candidate"
	typeRemoveCandidates = "remove-candidates"
)

type sdpMessage struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type candidateMessage struct {
	Type string `json:"type"`
	rtc.Candidate
}

type removeCandidatesMessage struct {
	Type       string          `json:"type"`
	Candidates []rtc.Candidate `json:"candidates"`
}

// inbound is any message read from the peer.
type inbound struct {
	Type string  `json:"type"`
	SDP  *string `json:"sdp"`
	rtc.Candidate
	Candidates []rtc.Candidate `json:"candidates"`
}

func encodeDescription(desc webrtc.SessionDescription) ([]byte, error) {
	return json.Marshal(sdpMessage{Type: desc.Type.String(), SDP: desc.SDP})
}

func encodeCandidate(c rtc.Candidate) ([]byte, error) {
	return json.Marshal(candidateMessage{Type: typeCandidate, Candidate: c})
}

func encodeRemoveCandidates(cs []rtc.Candidate) ([]byte, error) {
	if cs == nil {
		cs = []rtc.Candidate{}
	}
	return json.Marshal(removeCandidatesMessage{Type: typeRemoveCandidates, Candidates: cs})
}

func decode(line string) (inbound, error) {
	var msg inbound
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", rtc.ErrMalformedMessage, err)
	}
	switch msg.Type {
	case typeOffer, typeAnswer:
		if msg.SDP == nil {
			return msg, fmt.Errorf("%w: %s without sdp", rtc.ErrMalformedMessage, msg.Type)
		}
	case typeCandidate:
		if msg.Candidate.Candidate == "" {
			return msg, fmt.Errorf("%w: candidate without candidate", rtc.ErrMalformedMessage)
		}
	case typeRemoveCandidates:
		if msg.Candidates == nil {
			return msg, fmt.Errorf("%w: remove-candidates without candidates", rtc.ErrMalformedMessage)
		}
	default:
		return msg, fmt.Errorf("%w: unexpected message type %q", rtc.ErrMalformedMessage, msg.Type)
	}
	return msg, nil
}
