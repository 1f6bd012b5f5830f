// Package discovery announces this device on a multicast group and keeps
// the registry in sync with the peers heard on it.
package discovery

import (
	"log"
	"net"
	"sync"
	"time"

	"lanclip/registry"
)

const goodbyeTimeout = time.Second

// Config holds discovery-related config.
type Config struct {
	GroupAddress string        // multicast group address, e.g. "239.255.255.250"
	GroupPort    int           // multicast group port
	Interval     time.Duration // announce cadence; sweep runs at 2x this
}

// Service runs the three discovery duties over one shared UDP socket:
// periodic announce to the group, receive loop, and registry sweep.
type Service struct {
	cfg   Config
	conn  *net.UDPConn
	group *net.UDPAddr
	reg   *registry.Registry
	self  func() registry.DeviceInfo

	stopOnce sync.Once
	stop     chan struct{}
	done     sync.WaitGroup
}

// New creates a Service. conn is the shared discovery socket (already bound
// to the group port); group is where announcements are sent. self returns
// the local DeviceInfo to announce, including the actual TCP listening port.
func New(cfg Config, conn *net.UDPConn, group *net.UDPAddr, reg *registry.Registry, self func() registry.DeviceInfo) *Service {
	return &Service{
		cfg:   cfg,
		conn:  conn,
		group: group,
		reg:   reg,
		self:  self,
		stop:  make(chan struct{}),
	}
}

// Start launches the announce, receive and sweep loops.
func (s *Service) Start() {
	s.done.Add(3)
	go s.announceLoop()
	go s.receiveLoop()
	go s.sweepLoop()
	log.Printf("discovery: started, group %s, announce every %s", s.group, s.cfg.Interval)
}

// Stop sends one best-effort goodbye, then terminates all loops and waits
// for them. Safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.sendGoodbye()
		close(s.stop)
		s.conn.Close() // unblocks the receive loop
	})
	s.done.Wait()
	log.Printf("discovery: stopped")
}

func (s *Service) announceLoop() {
	defer s.done.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	s.announce()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.announce()
		}
	}
}

func (s *Service) announce() {
	data, err := Encode(Message{Type: TypeAnnounce, Device: s.self()})
	if err != nil {
		log.Printf("discovery: marshal announce: %v", err)
		return
	}
	if _, err := s.conn.WriteToUDP(data, s.group); err != nil {
		log.Printf("discovery: announce to %s: %v", s.group, err)
	}
}

// sendGoodbye is best-effort with a short deadline; failure is not an error.
func (s *Service) sendGoodbye() {
	data, err := Encode(Message{Type: TypeGoodbye, Device: s.self()})
	if err != nil {
		return
	}
	s.conn.SetWriteDeadline(time.Now().Add(goodbyeTimeout))
	s.conn.WriteToUDP(data, s.group)
	s.conn.SetWriteDeadline(time.Time{})
}

func (s *Service) receiveLoop() {
	defer s.done.Done()
	// Sized for the largest possible UDP datagram so a big announcement is
	// never truncated into a parse failure.
	buf := make([]byte, 65535)
	localID := s.self().ID
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			// Socket closed underneath us.
			return
		}
		msg, err := Decode(buf[:n])
		if err != nil {
			log.Printf("discovery: dropping datagram from %s: %v", from, err)
			continue
		}
		if msg.Device.ID == localID {
			continue
		}
		s.handle(msg, from)
	}
}

func (s *Service) handle(msg Message, from *net.UDPAddr) {
	// Trust the datagram source over the announced address: it is the IP
	// this host can actually reach the peer on.
	msg.Device.Address = from.IP.String()
	msg.Device.LastSeen = time.Now()
	switch msg.Type {
	case TypeAnnounce:
		if s.reg.Upsert(msg.Device) {
			log.Printf("discovery: new peer %s (%s:%d)", msg.Device.Name, msg.Device.Address, msg.Device.Port)
		}
		s.respond(from)
	case TypeResponse:
		if s.reg.Upsert(msg.Device) {
			log.Printf("discovery: new peer %s (%s:%d) via response", msg.Device.Name, msg.Device.Address, msg.Device.Port)
		}
	case TypeGoodbye:
		if s.reg.Remove(msg.Device.ID) {
			log.Printf("discovery: peer %s said goodbye", msg.Device.Name)
		}
	}
}

// respond replies once, unicast to the announcement's source, so the new
// peer learns about us without waiting a full announce interval and without
// a broadcast storm.
func (s *Service) respond(to *net.UDPAddr) {
	data, err := Encode(Message{Type: TypeResponse, Device: s.self()})
	if err != nil {
		log.Printf("discovery: marshal response: %v", err)
		return
	}
	if _, err := s.conn.WriteToUDP(data, to); err != nil {
		log.Printf("discovery: response to %s: %v", to, err)
	}
}

func (s *Service) sweepLoop() {
	defer s.done.Done()
	ticker := time.NewTicker(2 * s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for _, id := range s.reg.Sweep(time.Now()) {
				log.Printf("discovery: peer %s timed out", id)
			}
		}
	}
}
