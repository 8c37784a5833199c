package signal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/pion/apprtc-direct/pkg/rtc"
)

const (
	dialTimeout = 10 * time.Second
	// maxLineSize bounds one message, SDPs included.
	maxLineSize = 256 * 1024
)

// tcpEvents are delivered on the executor.
type tcpEvents interface {
	onTCPConnected(server bool)
	onTCPMessage(line string)
	onTCPError(err error)
	onTCPClose()
}

// tcpSocket owns the listener (server) and the single data connection. One
// goroutine reads lines, writes come from the executor.
type tcpSocket struct {
	sync.Mutex
	exec   rtc.Executor
	events tcpEvents
	log    logr.Logger
	peer   Peer

	ctx    context.Context
	cancel context.CancelFunc

	listener net.Listener
	bound    net.Addr
	conn     net.Conn
	closed   bool
}

func newTCPSocket(exec rtc.Executor, events tcpEvents, peer Peer, log logr.Logger) *tcpSocket {
	ctx, cancel := context.WithCancel(context.Background())
	return &tcpSocket{
		exec:   exec,
		events: events,
		log:    log,
		peer:   peer,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *tcpSocket) start() {
	go s.run()
}

func (s *tcpSocket) isServer() bool {
	return s.peer.Role == RoleServer
}

// addr returns the bound listener address, nil until listening.
func (s *tcpSocket) addr() net.Addr {
	s.Lock()
	defer s.Unlock()
	return s.bound
}

func (s *tcpSocket) isClosed() bool {
	s.Lock()
	defer s.Unlock()
	return s.closed
}

func (s *tcpSocket) run() {
	var conn net.Conn
	var err error
	if s.isServer() {
		conn, err = s.accept()
	} else {
		conn, err = s.dial()
	}
	if err != nil {
		if !s.isClosed() {
			s.reportError(err)
		}
		return
	}

	s.Lock()
	if s.closed {
		s.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.Unlock()
	s.log.V(1).Info("TCP connection established", "local", conn.LocalAddr().String(), "remote", conn.RemoteAddr().String())

	server := s.isServer()
	s.exec.Submit(func() { s.events.onTCPConnected(server) })

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		s.log.V(2).Info("Receive", "message", line)
		s.exec.Submit(func() { s.events.onTCPMessage(line) })
	}
	if err := scanner.Err(); err != nil {
		switch {
		case s.isClosed():
			return
		case errors.Is(err, bufio.ErrTooLong):
			s.reportError(fmt.Errorf("%w: line exceeds %d bytes", rtc.ErrMalformedMessage, maxLineSize))
		default:
			s.reportError(fmt.Errorf("%w: failed to read from socket: %v", rtc.ErrTransport, err))
		}
	}
	s.log.V(1).Info("Receiving goroutine exiting")
	s.disconnect()
}

func (s *tcpSocket) accept() (net.Conn, error) {
	s.log.V(1).Info("Listening", "address", s.peer.Address())
	ln, err := net.Listen("tcp", s.peer.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create server socket: %v", rtc.ErrTransport, err)
	}
	s.Lock()
	if s.closed {
		s.Unlock()
		_ = ln.Close()
		return nil, fmt.Errorf("%w: closed before listening", rtc.ErrTransport)
	}
	s.listener = ln
	s.bound = ln.Addr()
	s.Unlock()

	conn, err := ln.Accept()

	s.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to receive connection: %v", rtc.ErrTransport, err)
	}
	return conn, nil
}

func (s *tcpSocket) dial() (net.Conn, error) {
	s.log.V(1).Info("Connecting", "address", s.peer.Address())
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(s.ctx, "tcp", s.peer.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect: %v", rtc.ErrTransport, err)
	}
	return conn, nil
}

// send writes one line. Called from the executor.
func (s *tcpSocket) send(line string) error {
	s.Lock()
	defer s.Unlock()
	if s.conn == nil {
		return fmt.Errorf("%w: sending data on closed socket", rtc.ErrTransport)
	}
	s.log.V(2).Info("Send", "message", line)
	if _, err := io.WriteString(s.conn, line+"\n"); err != nil {
		return fmt.Errorf("%w: failed to write to socket: %v", rtc.ErrTransport, err)
	}
	return nil
}

// disconnect closes the listener and the connection. The close event fires
// on the first call only.
func (s *tcpSocket) disconnect() {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.log.Error(err, "Failed to close socket")
		}
		s.conn = nil
	}
	s.exec.Submit(s.events.onTCPClose)
}

func (s *tcpSocket) reportError(err error) {
	s.log.Error(err, "TCP error")
	s.exec.Submit(func() { s.events.onTCPError(err) })
}
