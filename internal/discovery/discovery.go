// Package discovery answers LAN discovery probes over UDP and
// periodically announces the server so kiosks find it without
// configuration.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/jeogo/casnos-sub000/internal/models"
)

// Datagram is the JSON frame exchanged on the discovery port.
type Datagram struct {
	Type      string          `json:"type"`
	DeviceID  string          `json:"deviceId,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

const (
	TypeDiscovery = "discovery"
	TypeHeartbeat = "heartbeat"
	TypeStatus    = "status"
	TypeCommand   = "command"
	TypeResponse  = "response"
)

// HeartbeatSink receives liveness signals carried over UDP.
type HeartbeatSink interface {
	Heartbeat(ctx context.Context, deviceID string) (models.Device, error)
}

type Config struct {
	UDPPort  int
	HTTPPort int
	// AdvertiseIP overrides interface detection; tests set it.
	AdvertiseIP string
	// BroadcastInterval defaults to 30s.
	BroadcastInterval time.Duration
	ServerName        string
	Version           string
}

type Responder struct {
	cfg      Config
	presence HeartbeatSink
	conn     *net.UDPConn
}

func NewResponder(cfg Config, sink HeartbeatSink) *Responder {
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = 30 * time.Second
	}
	if cfg.ServerName == "" {
		cfg.ServerName = "casnos-server"
	}
	return &Responder{cfg: cfg, presence: sink}
}

// Run listens for datagrams and broadcasts announcements until ctx is
// cancelled.
func (r *Responder) Run(ctx context.Context) error {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: r.cfg.UDPPort}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}
	r.conn = conn
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go r.broadcastLoop(ctx)

	log.Printf("discovery listening on udp :%d", r.cfg.UDPPort)
	buf := make([]byte, 64*1024)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read udp: %w", err)
		}
		r.handlePacket(ctx, buf[:n], remote)
	}
}

// handlePacket drops anything it cannot parse. The discovery port is
// open to the whole LAN; garbage is expected, not an error.
func (r *Responder) handlePacket(ctx context.Context, raw []byte, remote *net.UDPAddr) {
	var packet Datagram
	if err := json.Unmarshal(raw, &packet); err != nil {
		return
	}

	switch packet.Type {
	case TypeDiscovery:
		if !hasClientInfo(packet) {
			return
		}
		r.replyTo(remote)
	case TypeHeartbeat, TypeStatus:
		if packet.DeviceID == "" {
			return
		}
		if _, err := r.presence.Heartbeat(ctx, packet.DeviceID); err != nil {
			log.Printf("udp heartbeat %s: %v", packet.DeviceID, err)
		}
	}
}

// hasClientInfo requires the probe to identify itself before the server
// reveals its endpoints.
func hasClientInfo(packet Datagram) bool {
	if packet.DeviceID != "" {
		return true
	}
	return len(packet.Data) > 0 && string(packet.Data) != "null" && string(packet.Data) != "{}"
}

func (r *Responder) replyTo(remote *net.UDPAddr) {
	payload := r.announcement()
	if _, err := r.conn.WriteToUDP(payload, remote); err != nil {
		log.Printf("discovery reply to %s: %v", remote, err)
	}
}

func (r *Responder) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.BroadcastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.broadcast()
		}
	}
}

func (r *Responder) broadcast() {
	payload := r.announcement()
	for _, target := range broadcastAddrs() {
		addr := &net.UDPAddr{IP: target, Port: r.cfg.UDPPort}
		if _, err := r.conn.WriteToUDP(payload, addr); err != nil {
			log.Printf("discovery broadcast to %s: %v", addr, err)
		}
	}
}

func (r *Responder) announcement() []byte {
	ip := r.cfg.AdvertiseIP
	if ip == "" {
		ip = serverIP()
	}
	apiURL := fmt.Sprintf("http://%s:%d/api", ip, r.cfg.HTTPPort)
	data, _ := json.Marshal(map[string]interface{}{
		"serverInfo": r.cfg.ServerName,
		"version":    r.cfg.Version,
		"server": map[string]interface{}{
			"ip":        ip,
			"port":      r.cfg.HTTPPort,
			"udpPort":   r.cfg.UDPPort,
			"apiUrl":    apiURL,
			"socketUrl": fmt.Sprintf("http://%s:%d/realtime", ip, r.cfg.HTTPPort),
			"endpoints": map[string]string{
				"api":      apiURL,
				"health":   fmt.Sprintf("http://%s:%d/health", ip, r.cfg.HTTPPort),
				"services": apiURL + "/services",
				"tickets":  apiURL + "/tickets",
			},
		},
	})

	payload, _ := json.Marshal(Datagram{
		Type:      TypeResponse,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	})
	return payload
}

// serverIP picks the first private IPv4 address on an up interface.
func serverIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip != nil && ip.IsPrivate() {
				return ip.String()
			}
		}
	}
	return "127.0.0.1"
}

// broadcastAddrs computes directed broadcast addresses from the private
// interface netmasks, falling back to the limited broadcast and common
// home subnets when detection fails.
func broadcastAddrs() []net.IP {
	seen := map[string]struct{}{}
	var targets []net.IP

	add := func(ip net.IP) {
		key := ip.String()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		targets = append(targets, ip)
	}

	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
				continue
			}
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}
			for _, addr := range addrs {
				ipNet, ok := addr.(*net.IPNet)
				if !ok {
					continue
				}
				ip := ipNet.IP.To4()
				if ip == nil || !ip.IsPrivate() {
					continue
				}
				mask := ipNet.Mask
				if len(mask) == net.IPv6len {
					mask = mask[12:]
				}
				bcast := make(net.IP, 4)
				for i := 0; i < 4; i++ {
					bcast[i] = ip[i] | ^mask[i]
				}
				add(bcast)
			}
		}
	}

	add(net.IPv4bcast)
	for _, fallback := range []string{"192.168.1.255", "192.168.0.255", "10.0.0.255"} {
		if ip := net.ParseIP(fallback); ip != nil {
			add(ip.To4())
		}
	}
	return targets
}

// ParseDatagram is exposed for the dispatcher tests.
func ParseDatagram(raw []byte) (Datagram, bool) {
	var packet Datagram
	if err := json.Unmarshal(raw, &packet); err != nil {
		return Datagram{}, false
	}
	if strings.TrimSpace(packet.Type) == "" {
		return Datagram{}, false
	}
	return packet, true
}
