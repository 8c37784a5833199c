package signal

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/pion/apprtc-direct/pkg/rtc"
)

// DefaultPort is used for peers given without a port.
const DefaultPort = 8888

// peerPattern accepts IPv4, IPv6 with or without brackets, or localhost, each
// with an optional port.
var peerPattern = regexp.MustCompile(`^(` +
	`((\d+\.){3}\d+)|` +
	`\[((([0-9a-fA-F]{1,4}:)*[0-9a-fA-F]{1,4})?::(([0-9a-fA-F]{1,4}:)*[0-9a-fA-F]{1,4})?)\]|` +
	`\[(([0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4})\]|` +
	`((([0-9a-fA-F]{1,4}:)*[0-9a-fA-F]{1,4})?::(([0-9a-fA-F]{1,4}:)*[0-9a-fA-F]{1,4})?)|` +
	`(([0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4})|` +
	`localhost` +
	`)(:(\d+))?$`)

// ChannelRole is the transport role of a direct channel.
type ChannelRole int

const (
	// RoleClient dials the peer and answers its offer.
	RoleClient ChannelRole = iota
	// RoleServer listens for the peer and creates the offer.
	RoleServer
)

func (r ChannelRole) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Peer is a parsed room id.
type Peer struct {
	Host string
	Port int
	Role ChannelRole
}

// Address returns host:port, bracketing IPv6 hosts.
func (p Peer) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// ParsePeer parses a room id. An unspecified address (0.0.0.0 or ::) makes
// this side the server, anything else, localhost included, the client.
func ParsePeer(roomID string) (Peer, error) {
	m := peerPattern.FindStringSubmatch(roomID)
	if m == nil {
		return Peer{}, fmt.Errorf("%w: %q is not an IP address", rtc.ErrInvalidPeer, roomID)
	}
	p := Peer{
		Host: strings.TrimSuffix(strings.TrimPrefix(m[1], "["), "]"),
		Port: DefaultPort,
	}
	if portStr := m[len(m)-1]; portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port > 65535 {
			return Peer{}, fmt.Errorf("%w: invalid port number %s", rtc.ErrInvalidPeer, portStr)
		}
		p.Port = port
	}
	if ip := net.ParseIP(p.Host); ip != nil && ip.IsUnspecified() {
		p.Role = RoleServer
	}
	return p, nil
}
