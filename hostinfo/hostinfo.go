// Package hostinfo resolves the local host identity used in announcements.
package hostinfo

import (
	"net"
	"os"
)

// Info holds host identity (hostname, primary IP).
type Info struct {
	Hostname string `json:"hostname"`
	HostIP   string `json:"host_ip"`
}

// Get returns host identity, best-effort.
func Get() Info {
	var h Info
	hostname, _ := os.Hostname()
	h.Hostname = hostname
	h.HostIP = primaryIPv4()
	return h
}

func primaryIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return ""
}

// OutboundIP returns the local IP used when sending to remote:port. Use for
// "my IP on this network" when several interfaces are up.
func OutboundIP(remote net.IP, port int) string {
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: remote, Port: port})
	if err != nil {
		return ""
	}
	defer conn.Close()
	if u, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return u.IP.String()
	}
	return ""
}
