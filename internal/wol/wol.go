// Package wol builds and sends Wake-on-LAN magic packets.
package wol

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBroadcast = "255.255.255.255"
	DefaultPort      = 9

	macLen     = 6
	packetSize = 6 + 16*macLen
)

var ErrInvalidMAC = errors.New("invalid MAC address")

// ParseMAC accepts twelve hex digits optionally separated by ':', '-' or '.'.
func ParseMAC(mac string) (net.HardwareAddr, error) {
	clean := strings.NewReplacer(":", "", "-", "", ".", "").Replace(strings.TrimSpace(mac))
	if len(clean) != 2*macLen {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}
	return net.HardwareAddr(raw), nil
}

// MagicPacket returns six 0xFF bytes followed by the MAC repeated 16 times.
func MagicPacket(mac string) ([]byte, error) {
	hw, err := ParseMAC(mac)
	if err != nil {
		return nil, err
	}

	packet := make([]byte, 0, packetSize)
	for i := 0; i < 6; i++ {
		packet = append(packet, 0xff)
	}
	for i := 0; i < 16; i++ {
		packet = append(packet, hw...)
	}
	return packet, nil
}

// Sender broadcasts magic packets over UDP.
type Sender struct {
	Broadcast string
	Port      int
	Timeout   time.Duration
}

func NewSender(broadcast string, port int) *Sender {
	if broadcast == "" {
		broadcast = DefaultBroadcast
	}
	if port == 0 {
		port = DefaultPort
	}
	return &Sender{Broadcast: broadcast, Port: port, Timeout: 2 * time.Second}
}

func (s *Sender) Send(ctx context.Context, mac string) error {
	packet, err := MagicPacket(mac)
	if err != nil {
		return err
	}

	dialer := net.Dialer{Timeout: s.Timeout}
	conn, err := dialer.DialContext(ctx, "udp4", net.JoinHostPort(s.Broadcast, strconv.Itoa(s.Port)))
	if err != nil {
		return fmt.Errorf("dial %s:%d: %w", s.Broadcast, s.Port, err)
	}
	defer conn.Close()

	if s.Timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.Timeout))
	}
	if _, err := conn.Write(packet); err != nil {
		return fmt.Errorf("send magic packet: %w", err)
	}
	return nil
}
