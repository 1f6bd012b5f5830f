// Package transport exchanges framed clipboard messages with peers over
// TCP. It owns the inbound listener and the outbound connection pool; no
// other component touches raw sockets.
package transport

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"lanclip/protocol"
	"lanclip/registry"
)

const (
	dialTimeout   = 10 * time.Second
	writeTimeout  = 10 * time.Second
	portProbeSpan = 50 // how many sequential ports to try from the base
)

// Handler receives every decoded inbound message.
type Handler func(protocol.Message)

// peerConn is one peer's pooled outbound connection. Its own lock covers
// dialing and writing so a slow peer only blocks sends to that peer, never
// the Manager lock the accept and read loops need.
type peerConn struct {
	mu   sync.Mutex
	conn net.Conn
}

// Manager owns the TCP listener and the per-peer outbound connections.
type Manager struct {
	reg     *registry.Registry
	handler Handler

	listener net.Listener
	port     uint16

	mu       sync.Mutex
	outbound map[string]*peerConn  // peer id -> pooled connection
	conns    map[net.Conn]struct{} // every live connection, inbound and outbound
	closed   bool

	done sync.WaitGroup
}

// New creates a Manager delivering inbound messages to handler.
func New(reg *registry.Registry, handler Handler) *Manager {
	return &Manager{
		reg:      reg,
		handler:  handler,
		outbound: make(map[string]*peerConn),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Listen binds the first free TCP port starting at basePort and starts the
// accept loop.
func (m *Manager) Listen(basePort int) error {
	var lastErr error
	for port := basePort; port < basePort+portProbeSpan; port++ {
		l, err := net.Listen("tcp", ":"+strconv.Itoa(port))
		if err != nil {
			lastErr = err
			continue
		}
		m.listener = l
		m.port = uint16(l.Addr().(*net.TCPAddr).Port)
		m.done.Add(1)
		go m.acceptLoop()
		log.Printf("transport: listening on port %d", m.port)
		return nil
	}
	return fmt.Errorf("transport: no free port in [%d,%d): %w", basePort, basePort+portProbeSpan, lastErr)
}

// Port returns the bound listening port. Valid after Listen.
func (m *Manager) Port() uint16 {
	return m.port
}

func (m *Manager) acceptLoop() {
	defer m.done.Done()
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			m.mu.Lock()
			closed := m.closed
			m.mu.Unlock()
			if closed {
				return
			}
			log.Printf("transport: accept: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			conn.Close()
			return
		}
		m.conns[conn] = struct{}{}
		m.mu.Unlock()
		m.done.Add(1)
		go m.readLoop(conn)
	}
}

// readLoop decodes frames from one inbound connection until it fails. A
// frame error closes only this connection; the peer stays in the registry
// since it may still be reachable after reconnecting.
func (m *Manager) readLoop(conn net.Conn) {
	defer m.done.Done()
	defer func() {
		conn.Close()
		m.mu.Lock()
		delete(m.conns, conn)
		m.mu.Unlock()
	}()
	remote := conn.RemoteAddr()
	for {
		payload, err := ReadFrame(conn)
		if err != nil {
			var tooLarge ErrFrameTooLarge
			if errors.As(err, &tooLarge) {
				log.Printf("transport: closing %s: %v", remote, err)
			}
			return
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			log.Printf("transport: closing %s: %v", remote, err)
			return
		}
		m.handler(msg)
	}
}

// Send frames and writes one message to the given peer, dialing lazily when
// no pooled connection exists. On a network failure the pooled connection is
// dropped; the next Send will dial fresh. The Manager lock is never held
// across the dial or the write.
func (m *Manager) Send(peerID string, msg protocol.Message) error {
	info, ok := m.reg.Get(peerID)
	if !ok {
		return fmt.Errorf("transport: unknown peer %s", peerID)
	}
	payload, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("transport: encode for %s: %w", info.Name, err)
	}
	if len(payload) > MaxFrameSize {
		// Local error, no byte hit the wire: the pooled connection stays up.
		return fmt.Errorf("transport: send to %s: %w", info.Name, ErrFrameTooLarge{Declared: uint32(len(payload))})
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("transport: closed")
	}
	pc := m.outbound[peerID]
	if pc == nil {
		pc = &peerConn{}
		m.outbound[peerID] = pc
	}
	m.mu.Unlock()

	pc.mu.Lock()
	defer pc.mu.Unlock()
	conn := pc.conn
	if conn == nil {
		addr := net.JoinHostPort(info.Address, strconv.Itoa(int(info.Port)))
		conn, err = net.DialTimeout("tcp", addr, dialTimeout)
		if err != nil {
			return fmt.Errorf("transport: connect %s (%s): %w", info.Name, addr, err)
		}
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			conn.Close()
			return fmt.Errorf("transport: closed")
		}
		m.conns[conn] = struct{}{}
		m.mu.Unlock()
		pc.conn = conn
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := WriteFrame(conn, payload); err != nil {
		pc.conn = nil
		conn.Close()
		m.mu.Lock()
		delete(m.conns, conn)
		m.mu.Unlock()
		return fmt.Errorf("transport: write to %s: %w", info.Name, err)
	}
	conn.SetWriteDeadline(time.Time{})
	return nil
}

// SendToAll delivers one message to every known peer. Outcomes are
// independent per peer; the joined error reports every failure without
// aborting delivery to the rest. Returns the number of successful sends.
func (m *Manager) SendToAll(msg protocol.Message) (int, error) {
	var errs []error
	sent := 0
	for _, peer := range m.reg.Snapshot() {
		if err := m.Send(peer.ID, msg); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// Close stops the accept loop, closes every connection and waits for the
// read loops to finish. Closing a connection mid-write unblocks the sender,
// which then sees a write error.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.done.Wait()
		return
	}
	m.closed = true
	if m.listener != nil {
		m.listener.Close()
	}
	for conn := range m.conns {
		conn.Close()
	}
	m.conns = make(map[net.Conn]struct{})
	m.outbound = make(map[string]*peerConn)
	m.mu.Unlock()
	m.done.Wait()
	log.Printf("transport: stopped")
}
