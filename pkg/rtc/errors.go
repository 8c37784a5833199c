package rtc

import "errors"

var (
	// ErrProtocolViolation is returned for operations issued in the wrong phase,
	// e.g. a second local description or a send on an unconnected channel.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrMalformedMessage is returned for signaling lines that are not valid
	// JSON or carry an unknown type.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrTransport wraps socket listen/accept/dial/read/write failures.
	ErrTransport = errors.New("transport error")
	// ErrNegotiationApply wraps media engine rejections.
	ErrNegotiationApply = errors.New("negotiation apply error")
	// ErrInvalidPeer is returned for room ids that are not an IP literal or localhost.
	ErrInvalidPeer = errors.New("invalid peer address")
)

// ErrorKind returns a short label for the kind err wraps, used for metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(err, ErrMalformedMessage):
		return "malformed_message"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrNegotiationApply):
		return "negotiation_apply"
	case errors.Is(err, ErrInvalidPeer):
		return "invalid_peer"
	default:
		return "other"
	}
}
