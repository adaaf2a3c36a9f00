package probe

import (
	"context"
	"errors"
	"math"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"time"
)

// CommandProber shells out to the system ping utility. Only the exit code is
// inspected: zero within the timeout means the host answered.
type CommandProber struct {
	base
	goos string
}

// WithBinary replaces the ping executable, mainly for tests.
func WithBinary(name string) Option {
	return func(b *base) {
		b.binary = name
	}
}

func NewCommandProber(cfg Config, opts ...Option) *CommandProber {
	b := newBase(cfg, opts)
	if b.binary == "" {
		b.binary = "ping"
	}
	return &CommandProber{
		base: b,
		goos: runtime.GOOS,
	}
}

func (p *CommandProber) Probe(ctx context.Context, address string) Result {
	return p.run(ctx, address, p.echo)
}

func (p *CommandProber) echo(ctx context.Context, ip net.IP, _ int) (time.Duration, error) {
	// -W only takes whole seconds on Linux, so the process is killed at the
	// exact timeout instead.
	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.binary, PingArgs(p.goos, ip.String(), waitSeconds(p.cfg.Timeout))...)
	start := time.Now()
	err := cmd.Run()
	if err == nil {
		return time.Since(start), nil
	}

	if runCtx.Err() != nil {
		return 0, errNoReply
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return 0, errNoReply
	}
	return 0, transportError(err)
}

// PingArgs builds a single-echo ping invocation for the given platform.
func PingArgs(goos, target string, waitSec int) []string {
	switch goos {
	case "windows":
		return []string{"-n", "1", "-w", strconv.Itoa(waitSec * 1000), target}
	case "darwin":
		return []string{"-c", "1", "-W", strconv.Itoa(waitSec * 1000), target}
	default:
		return []string{"-c", "1", "-W", strconv.Itoa(waitSec), target}
	}
}

func waitSeconds(timeout time.Duration) int {
	sec := int(math.Ceil(timeout.Seconds()))
	if sec < 1 {
		return 1
	}
	return sec
}
