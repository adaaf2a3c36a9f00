package probe

import (
	"context"
	"net"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingerProber runs one pro-bing echo per attempt. Unprivileged mode uses
// ICMP datagram sockets, which Linux allows when net.ipv4.ping_group_range
// covers the process group.
type PingerProber struct {
	base
	privileged bool
}

func NewPingerProber(cfg Config, privileged bool, opts ...Option) *PingerProber {
	return &PingerProber{
		base:       newBase(cfg, opts),
		privileged: privileged,
	}
}

func (p *PingerProber) Probe(ctx context.Context, address string) Result {
	return p.run(ctx, address, p.echo)
}

func (p *PingerProber) echo(ctx context.Context, ip net.IP, _ int) (time.Duration, error) {
	pinger := probing.New(ip.String())
	pinger.SetIPAddr(&net.IPAddr{IP: ip})
	pinger.SetPrivileged(p.privileged)
	pinger.Source = p.source
	pinger.Count = 1
	pinger.Timeout = time.Until(p.attemptDeadline(ctx))

	if err := pinger.RunWithContext(ctx); err != nil {
		if ctx.Err() != nil {
			return 0, errNoReply
		}
		return 0, transportError(err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, errNoReply
	}
	return stats.AvgRtt, nil
}
