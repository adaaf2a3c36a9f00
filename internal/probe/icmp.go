package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const protocolICMP = 1

var probeCounter atomic.Uint32

// ICMPProber sends raw ICMP echo requests. Opening the socket needs root or
// CAP_NET_RAW; without it every probe fails with ErrPermission.
type ICMPProber struct {
	base
	listen func() (net.PacketConn, error)
}

func NewICMPProber(cfg Config, opts ...Option) *ICMPProber {
	b := newBase(cfg, opts)
	source := b.source
	if source == "" {
		source = "0.0.0.0"
	}
	return &ICMPProber{
		base: b,
		listen: func() (net.PacketConn, error) {
			return icmp.ListenPacket("ip4:icmp", source)
		},
	}
}

func (p *ICMPProber) Probe(ctx context.Context, address string) Result {
	nonce := probeCounter.Add(1)
	return p.run(ctx, address, func(ctx context.Context, ip net.IP, attempt int) (time.Duration, error) {
		return p.echo(ctx, ip, EchoID(os.Getpid(), nonce, attempt), attempt+1)
	})
}

func (p *ICMPProber) echo(ctx context.Context, ip net.IP, id, seq int) (time.Duration, error) {
	conn, err := p.listen()
	if err != nil {
		return 0, transportError(err)
	}
	defer conn.Close()

	req := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: []byte("wol-monitor"),
		},
	}
	wb, err := req.Marshal(nil)
	if err != nil {
		return 0, transportError(err)
	}

	if err := conn.SetReadDeadline(p.attemptDeadline(ctx)); err != nil {
		return 0, transportError(err)
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, &net.IPAddr{IP: ip}); err != nil {
		return 0, transportError(err)
	}

	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return 0, errNoReply
			}
			return 0, transportError(err)
		}

		if !samePeer(peer, ip) {
			continue
		}
		if IsEchoReply(rb[:n], id) {
			return time.Since(start), nil
		}
	}
}

// EchoID derives the echo identifier from the process id, a per-probe nonce
// and the attempt number so concurrent probes sharing raw sockets in one or
// several processes do not accept each other's replies.
func EchoID(pid int, nonce uint32, attempt int) int {
	return (pid*31 + int(nonce)*16 + attempt) & 0xffff
}

// IsEchoReply reports whether msg is an ICMP echo reply carrying id.
// Unreachable, time-exceeded, reflected requests and other types are rejected.
func IsEchoReply(msg []byte, id int) bool {
	parsed, err := icmp.ParseMessage(protocolICMP, msg)
	if err != nil {
		return false
	}
	if parsed.Type != ipv4.ICMPTypeEchoReply {
		return false
	}
	echo, ok := parsed.Body.(*icmp.Echo)
	if !ok {
		return false
	}
	return echo.ID == id
}

func samePeer(peer net.Addr, ip net.IP) bool {
	switch a := peer.(type) {
	case *net.IPAddr:
		return a.IP.Equal(ip)
	case *net.UDPAddr:
		return a.IP.Equal(ip)
	default:
		return true
	}
}
