package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/ipv4"

	"lanclip/clipboard"
	"lanclip/config"
	"lanclip/discovery"
	"lanclip/hostinfo"
	"lanclip/notify"
	"lanclip/protocol"
	"lanclip/registry"
	"lanclip/server"
	"lanclip/syncer"
	"lanclip/transport"
)

// Version is set at build time: -ldflags "-X main.Version=1.2.3"
var Version string

func main() {
	cfgPath := ""
	if len(os.Args) > 1 && os.Args[1] == "-config" && len(os.Args) > 2 {
		cfgPath = os.Args[2]
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal("config: ", err)
	}
	version := Version
	if version == "" {
		version = "0.0.0"
	}

	deviceID := uuid.NewString()
	host := hostinfo.Get()
	deviceName := cfg.DeviceName
	if deviceName == "" {
		deviceName = host.Hostname
	}
	if deviceName == "" {
		deviceName = "device-" + deviceID[:8]
	}

	reg := registry.New(cfg.PeerTTL())

	clip, err := clipboard.NewSystem()
	if err != nil {
		log.Fatal("clipboard: ", err)
	}
	notifier := notify.New(cfg.NotificationsEnabled)

	// The transport delivers inbound messages to the engine; the engine
	// broadcasts through the transport. Wire the handler through a variable
	// so both can reference each other; reads start only after Listen.
	var engine *syncer.Engine
	tm := transport.New(reg, func(msg protocol.Message) {
		engine.Apply(msg)
	})
	engine = syncer.New(deviceID, deviceName, clip, tm, notifier, cfg.PollInterval())
	if err := tm.Listen(cfg.BaseTCPPort); err != nil {
		log.Fatal(err)
	}

	// UDP socket for discovery (receive group datagrams + unicast responses).
	conn, group, err := discoverySocket(cfg)
	if err != nil {
		log.Fatal("discovery socket: ", err)
	}
	defer conn.Close()

	selfAddr := hostinfo.OutboundIP(group.IP, group.Port)
	if selfAddr == "" {
		selfAddr = host.HostIP
	}
	self := func() registry.DeviceInfo {
		return registry.DeviceInfo{
			ID:       deviceID,
			Name:     deviceName,
			Address:  selfAddr,
			Port:     tm.Port(),
			LastSeen: time.Now(),
		}
	}

	disc := discovery.New(discovery.Config{
		GroupAddress: cfg.MulticastAddress,
		GroupPort:    cfg.MulticastPort,
		Interval:     cfg.AnnounceInterval(),
	}, conn, group, reg, self)
	disc.Start()

	ctx, cancel := context.WithCancel(context.Background())
	go engine.Run(ctx)

	var httpSrv *http.Server
	if cfg.HTTPPort > 0 {
		srv := server.New(server.Config{
			APIPrefix: cfg.APIPrefix,
			Registry:  reg,
			Engine:    engine,
			Self:      self,
			Version:   version,
		})
		httpSrv = &http.Server{Addr: ":" + strconv.Itoa(cfg.HTTPPort), Handler: srv.Handler()}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http: %v", err)
			}
		}()
		log.Printf("http: status API on port %d", cfg.HTTPPort)
	}

	log.Printf("lanclip %s started as %s (%s), tcp port %d", version, deviceName, deviceID, tm.Port())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	log.Printf("received %v, shutting down...", sig)

	cancel()
	disc.Stop() // sends one best-effort goodbye first
	tm.Close()
	if httpSrv != nil {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		if err := httpSrv.Shutdown(shutCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}
	log.Println("lanclip stopped")
}

// discoverySocket binds the discovery port on all interfaces and joins the
// multicast group. SO_REUSEPORT lets several agents on one host share the
// port; multicast loopback lets them hear each other.
func discoverySocket(cfg *config.Config) (*net.UDPConn, *net.UDPAddr, error) {
	groupIP := net.ParseIP(cfg.MulticastAddress)
	if groupIP == nil || !groupIP.IsMulticast() {
		return nil, nil, fmt.Errorf("invalid multicast address %q", cfg.MulticastAddress)
	}
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			if err := c.Control(func(fd uintptr) {
				serr = setSOReuseport(int(fd))
			}); err != nil {
				return err
			}
			return serr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", ":"+strconv.Itoa(cfg.MulticastPort))
	if err != nil {
		return nil, nil, fmt.Errorf("listen udp :%d: %w", cfg.MulticastPort, err)
	}
	conn := pc.(*net.UDPConn)

	p := ipv4.NewPacketConn(conn)
	groupAddr := &net.UDPAddr{IP: groupIP}
	joined := 0
	ifaces, _ := net.Interfaces()
	for i := range ifaces {
		iface := ifaces[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := p.JoinGroup(&iface, groupAddr); err == nil {
			joined++
		}
	}
	if joined == 0 {
		if err := p.JoinGroup(nil, groupAddr); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("join group %s: %w", groupIP, err)
		}
	}
	p.SetMulticastLoopback(true)

	return conn, &net.UDPAddr{IP: groupIP, Port: cfg.MulticastPort}, nil
}
