package signal

import (
	"errors"
	"testing"

	"github.com/pion/apprtc-direct/pkg/rtc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeer(t *testing.T) {
	tests := []struct {
		roomID  string
		want    Peer
		address string
	}{
		{roomID: "0.0.0.0:8888", want: Peer{Host: "0.0.0.0", Port: 8888, Role: RoleServer}, address: "0.0.0.0:8888"},
		{roomID: "203.0.113.5:8888", want: Peer{Host: "203.0.113.5", Port: 8888, Role: RoleClient}, address: "203.0.113.5:8888"},
		{roomID: "203.0.113.5", want: Peer{Host: "203.0.113.5", Port: DefaultPort, Role: RoleClient}, address: "203.0.113.5:8888"},
		{roomID: "localhost:1234", want: Peer{Host: "localhost", Port: 1234, Role: RoleClient}, address: "localhost:1234"},
		{roomID: "[::]:9000", want: Peer{Host: "::", Port: 9000, Role: RoleServer}, address: "[::]:9000"},
		{roomID: "::", want: Peer{Host: "::", Port: DefaultPort, Role: RoleServer}, address: "[::]:8888"},
		{roomID: "[2001:db8::1]:443", want: Peer{Host: "2001:db8::1", Port: 443, Role: RoleClient}, address: "[2001:db8::1]:443"},
		{roomID: "2001:db8:0:0:0:0:0:1", want: Peer{Host: "2001:db8:0:0:0:0:0:1", Port: DefaultPort, Role: RoleClient}, address: "[2001:db8:0:0:0:0:0:1]:8888"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.roomID, func(t *testing.T) {
			p, err := ParsePeer(tt.roomID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
			assert.Equal(t, tt.address, p.Address())
		})
	}
}

func TestParsePeer_Invalid(t *testing.T) {
	for _, roomID := range []string{"", "room-42", "example.com", "1.2.3.4:99999", "1.2.3.4:", "1.2.3.4:80:80"} {
		roomID := roomID
		t.Run(roomID, func(t *testing.T) {
			_, err := ParsePeer(roomID)
			require.Error(t, err)
			assert.True(t, errors.Is(err, rtc.ErrInvalidPeer))
		})
	}
}
