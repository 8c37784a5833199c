package signal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/pion/apprtc-direct/pkg/rtc"
	"github.com/pion/apprtc-direct/pkg/worker"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

type recorder struct {
	connected chan Params
	descs     chan webrtc.SessionDescription
	cands     chan rtc.Candidate
	removed   chan []rtc.Candidate
	closes    chan struct{}
	errs      chan error
}

func newRecorder() *recorder {
	return &recorder{
		connected: make(chan Params, 16),
		descs:     make(chan webrtc.SessionDescription, 16),
		cands:     make(chan rtc.Candidate, 16),
		removed:   make(chan []rtc.Candidate, 16),
		closes:    make(chan struct{}, 16),
		errs:      make(chan error, 16),
	}
}

func (r *recorder) OnConnectedToRoom(p Params) { r.connected <- p }
func (r *recorder) OnRemoteDescription(desc webrtc.SessionDescription) { r.descs <- desc }
func (r *recorder) OnRemoteCandidate(c rtc.Candidate) { r.cands <- c }
func (r *recorder) OnRemoteCandidatesRemoved(cs []rtc.Candidate) { r.removed <- cs }
func (r *recorder) OnChannelClose() { r.closes <- struct{}{} }
func (r *recorder) OnChannelError(err error) { r.errs <- err }

func receive(t *testing.T, ch interface{}) interface{} {
	t.Helper()
	switch c := ch.(type) {
	case chan Params:
		select {
		case v := <-c:
			return v
		case <-time.After(waitTimeout):
		}
	case chan webrtc.SessionDescription:
		select {
		case v := <-c:
			return v
		case <-time.After(waitTimeout):
		}
	case chan rtc.Candidate:
		select {
		case v := <-c:
			return v
		case <-time.After(waitTimeout):
		}
	case chan []rtc.Candidate:
		select {
		case v := <-c:
			return v
		case <-time.After(waitTimeout):
		}
	case chan struct{}:
		select {
		case v := <-c:
			return v
		case <-time.After(waitTimeout):
		}
	case chan error:
		select {
		case v := <-c:
			return v
		case <-time.After(waitTimeout):
		}
	}
	t.Fatalf("timed out waiting on %T", ch)
	return nil
}

// flush waits until every task queued on w so far has run.
func flush(t *testing.T, w *worker.Serial) {
	t.Helper()
	done := make(chan struct{})
	w.Submit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("worker did not drain")
	}
}

func newTestChannel(t *testing.T) (*DirectChannel, *recorder, *worker.Serial) {
	w := worker.NewSerial()
	t.Cleanup(w.Stop)
	r := newRecorder()
	return NewDirectChannel(w, r, nil), r, w
}

func startServer(t *testing.T) (*DirectChannel, *recorder, *worker.Serial, int) {
	server, events, w := newTestChannel(t)
	server.ConnectToRoom(RoomParams{RoomID: "0.0.0.0:0"})
	require.Eventually(t, func() bool { return server.Addr() != nil }, waitTimeout, 10*time.Millisecond)
	assert.Equal(t, RoleServer, server.Role())
	return server, events, w, server.Addr().(*net.TCPAddr).Port
}

func TestDirectChannel_Exchange(t *testing.T) {
	server, serverEvents, _, port := startServer(t)
	client, clientEvents, _ := newTestChannel(t)
	client.ConnectToRoom(RoomParams{RoomID: fmt.Sprintf("127.0.0.1:%d", port)})

	p := receive(t, serverEvents.connected).(Params)
	assert.True(t, p.Initiator)
	assert.Nil(t, p.Offer)
	assert.Equal(t, RoleClient, client.Role())

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\n"}
	server.SendOfferSDP(offer)
	p = receive(t, clientEvents.connected).(Params)
	assert.False(t, p.Initiator)
	require.NotNil(t, p.Offer)
	assert.Equal(t, offer, *p.Offer)

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"}
	client.SendAnswerSDP(answer)
	assert.Equal(t, answer, receive(t, serverEvents.descs).(webrtc.SessionDescription))

	c := rtc.Candidate{SDPMLineIndex: 1, SDPMid: "1", Candidate: "candidate:1 1 udp 2122260223 192.0.2.1 54321 typ host"}
	client.SendLocalCandidate(c)
	server.SendLocalCandidate(c)
	assert.Equal(t, c, receive(t, serverEvents.cands).(rtc.Candidate))
	assert.Equal(t, c, receive(t, clientEvents.cands).(rtc.Candidate))

	server.SendLocalCandidateRemovals([]rtc.Candidate{c})
	assert.Equal(t, []rtc.Candidate{c}, receive(t, clientEvents.removed).([]rtc.Candidate))

	client.Disconnect()
	receive(t, clientEvents.closes)
	receive(t, serverEvents.closes)

	assert.Empty(t, serverEvents.errs)
	assert.Empty(t, clientEvents.errs)
}

func TestDirectChannel_DoubleDisconnect(t *testing.T) {
	server, events, w, _ := startServer(t)

	server.Disconnect()
	server.Disconnect()
	receive(t, events.closes)
	flush(t, w)

	assert.Empty(t, events.closes)
	assert.Empty(t, events.errs)
}

func TestDirectChannel_DisconnectBeforeConnect(t *testing.T) {
	ch, events, w := newTestChannel(t)
	ch.Disconnect()
	ch.Disconnect()
	receive(t, events.closes)
	flush(t, w)

	assert.Empty(t, events.closes)
	assert.Empty(t, events.errs)
}

func TestDirectChannel_SendBeforeConnected(t *testing.T) {
	server, events, w, _ := startServer(t)
	defer server.Disconnect()

	server.SendOfferSDP(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"})
	server.SendLocalCandidate(rtc.Candidate{Candidate: "candidate:1"})
	err := receive(t, events.errs).(error)
	assert.True(t, errors.Is(err, rtc.ErrProtocolViolation))
	flush(t, w)
	assert.Empty(t, events.errs)
}

func TestDirectChannel_RejectsRoom(t *testing.T) {
	tests := []struct {
		name   string
		params RoomParams
		kind   error
	}{
		{name: "Must reject loopback", params: RoomParams{RoomID: "0.0.0.0:0", Loopback: true}, kind: rtc.ErrProtocolViolation},
		{name: "Must reject non IP room", params: RoomParams{RoomID: "my-room"}, kind: rtc.ErrInvalidPeer},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ch, events, _ := newTestChannel(t)
			ch.ConnectToRoom(tt.params)
			err := receive(t, events.errs).(error)
			assert.True(t, errors.Is(err, tt.kind))
			assert.Nil(t, ch.Addr())
		})
	}
}

// rawPeer accepts one connection from a client channel and exposes the raw
// socket to the test.
func rawPeer(t *testing.T) (string, <-chan net.Conn) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	conns := make(chan net.Conn, 1)
	go func() {
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conns <- conn
	}()
	return ln.Addr().String(), conns
}

func TestDirectChannel_MalformedMessage(t *testing.T) {
	addr, conns := rawPeer(t)
	client, events, w := newTestChannel(t)
	client.ConnectToRoom(RoomParams{RoomID: addr})

	var conn net.Conn
	select {
	case conn = <-conns:
	case <-time.After(waitTimeout):
		t.Fatal("client did not dial")
	}
	defer conn.Close()

	_, err := conn.Write([]byte("not json\n{\"type\":\"offer\",\"sdp\":\"v=0\"}\n"))
	require.NoError(t, err)

	err = receive(t, events.errs).(error)
	assert.True(t, errors.Is(err, rtc.ErrMalformedMessage))
	flush(t, w)
	assert.Empty(t, events.connected)

	// the channel stays open, the peer sees no EOF
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, err = bufio.NewReader(conn).ReadString('\n')
	var nerr net.Error
	require.True(t, errors.As(err, &nerr))
	assert.True(t, nerr.Timeout())

	client.Disconnect()
	receive(t, events.closes)
}

func TestDirectChannel_PeerClose(t *testing.T) {
	addr, conns := rawPeer(t)
	client, events, w := newTestChannel(t)
	client.ConnectToRoom(RoomParams{RoomID: addr})

	var conn net.Conn
	select {
	case conn = <-conns:
	case <-time.After(waitTimeout):
		t.Fatal("client did not dial")
	}
	_, err := conn.Write([]byte(`{"type":"offer","sdp":"v=0"}` + "\n"))
	require.NoError(t, err)
	p := receive(t, events.connected).(Params)
	assert.False(t, p.Initiator)
	require.NoError(t, conn.Close())

	receive(t, events.closes)
	client.Disconnect()
	flush(t, w)
	assert.Empty(t, events.closes)
	assert.Empty(t, events.errs)
}

func TestDirectChannel_SecondConnect(t *testing.T) {
	server, serverEvents, w, port := startServer(t)
	addr := server.Addr()
	client, clientEvents, _ := newTestChannel(t)
	client.ConnectToRoom(RoomParams{RoomID: fmt.Sprintf("127.0.0.1:%d", port)})
	receive(t, serverEvents.connected)

	server.ConnectToRoom(RoomParams{RoomID: "0.0.0.0:0"})
	err := receive(t, serverEvents.errs).(error)
	assert.True(t, errors.Is(err, rtc.ErrProtocolViolation))
	flush(t, w)
	assert.Equal(t, addr, server.Addr())
	assert.Empty(t, serverEvents.closes)

	server.Disconnect()
	receive(t, serverEvents.closes)
	receive(t, clientEvents.closes)
}

func dialedPeer(t *testing.T) (*DirectChannel, *recorder, *worker.Serial, net.Conn) {
	addr, conns := rawPeer(t)
	client, events, w := newTestChannel(t)
	client.ConnectToRoom(RoomParams{RoomID: addr})
	select {
	case conn := <-conns:
		t.Cleanup(func() { _ = conn.Close() })
		return client, events, w, conn
	case <-time.After(waitTimeout):
		t.Fatal("client did not dial")
	}
	return nil, nil, nil, nil
}

func TestDirectChannel_OfferTwice(t *testing.T) {
	client, events, w, conn := dialedPeer(t)
	defer client.Disconnect()

	offer := `{"type":"offer","sdp":"v=0"}` + "\n"
	_, err := conn.Write([]byte(offer + offer))
	require.NoError(t, err)

	receive(t, events.connected)
	err = receive(t, events.errs).(error)
	assert.True(t, errors.Is(err, rtc.ErrProtocolViolation))
	flush(t, w)
	assert.Empty(t, events.connected)
}

func TestDirectChannel_LineTooLong(t *testing.T) {
	_, events, _, conn := dialedPeer(t)

	go func() {
		_, _ = conn.Write(bytes.Repeat([]byte("x"), maxLineSize+1))
	}()

	err := receive(t, events.errs).(error)
	assert.True(t, errors.Is(err, rtc.ErrMalformedMessage))
	receive(t, events.closes)
}
