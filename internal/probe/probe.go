package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

const (
	MethodICMP    = "icmp"
	MethodPinger  = "pinger"
	MethodCommand = "command"
)

var (
	ErrResolution = errors.New("resolution failed")
	ErrNoResponse = errors.New("no response")
	ErrPermission = errors.New("permission denied opening probe transport")
	ErrTransport  = errors.New("probe transport unavailable")

	// errNoReply marks a single attempt that timed out without a valid reply.
	errNoReply = errors.New("no reply within timeout")
)

// Config controls timeout and retry behaviour of a probe.
type Config struct {
	Timeout       time.Duration
	Retries       int
	RetryInterval time.Duration
	// MaxSocketErrors is how many transport errors a probe tolerates before
	// giving up, independent of the retry budget.
	MaxSocketErrors int
}

func DefaultConfig() Config {
	return Config{
		Timeout:         1500 * time.Millisecond,
		Retries:         2,
		RetryInterval:   500 * time.Millisecond,
		MaxSocketErrors: 1,
	}
}

// Result is the outcome of one Probe call.
type Result struct {
	Target     string
	ResolvedIP string
	Reachable  bool
	Latency    time.Duration
	Attempts   int
	Err        error
}

// LatencyMillis returns the round trip in milliseconds, nil when unreachable.
func (r Result) LatencyMillis() *float64 {
	if !r.Reachable {
		return nil
	}
	ms := float64(r.Latency) / float64(time.Millisecond)
	return &ms
}

// ErrorMessage returns the failure text, nil on success.
func (r Result) ErrorMessage() *string {
	if r.Err == nil {
		return nil
	}
	msg := r.Err.Error()
	return &msg
}

// Prober checks reachability of one address.
type Prober interface {
	Probe(ctx context.Context, address string) Result
}

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Sleeper waits for d or until ctx is done. It reports false when the wait
// was cut short.
type Sleeper func(ctx context.Context, d time.Duration) bool

type Option func(*base)

func WithResolver(r Resolver) Option {
	return func(b *base) {
		b.resolver = r
	}
}

func WithSleeper(s Sleeper) Option {
	return func(b *base) {
		b.sleep = s
	}
}

// WithSource binds ICMP sockets to a local IPv4 address. CommandProber
// ignores it.
func WithSource(addr string) Option {
	return func(b *base) {
		b.source = addr
	}
}

// New returns the prober for the configured method.
func New(method string, cfg Config, privileged bool, opts ...Option) (Prober, error) {
	switch method {
	case MethodICMP:
		return NewICMPProber(cfg, opts...), nil
	case MethodPinger:
		return NewPingerProber(cfg, privileged, opts...), nil
	case MethodCommand:
		return NewCommandProber(cfg, opts...), nil
	default:
		return nil, fmt.Errorf("unknown probe method %q", method)
	}
}

// attemptFunc sends a single echo request to ip. It returns errNoReply on
// timeout, or a transport error when the request could not be sent at all.
type attemptFunc func(ctx context.Context, ip net.IP, attempt int) (time.Duration, error)

type base struct {
	cfg      Config
	resolver Resolver
	sleep    Sleeper
	source   string
	// binary is only consulted by CommandProber.
	binary string
}

func newBase(cfg Config, opts []Option) base {
	if cfg.MaxSocketErrors < 1 {
		cfg.MaxSocketErrors = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	b := base{
		cfg:      cfg,
		resolver: net.DefaultResolver,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) run(ctx context.Context, address string, try attemptFunc) Result {
	res := Result{Target: address}

	ip, err := b.resolve(ctx, address)
	if err != nil {
		res.Err = ErrResolution
		return res
	}
	res.ResolvedIP = ip.String()

	socketErrors := 0
	for attempt := 0; attempt <= b.cfg.Retries; attempt++ {
		res.Attempts = attempt + 1

		latency, err := try(ctx, ip, attempt)
		if err == nil {
			res.Reachable = true
			res.Latency = latency
			res.Err = nil
			return res
		}

		last := attempt == b.cfg.Retries
		wait := b.cfg.RetryInterval

		if !errors.Is(err, errNoReply) {
			res.Err = err
			if errors.Is(err, ErrPermission) {
				return res
			}
			socketErrors++
			if socketErrors >= b.cfg.MaxSocketErrors || last {
				return res
			}
			wait = b.cfg.RetryInterval * time.Duration(1<<attempt)
		}

		if last {
			break
		}
		if !b.sleep(ctx, wait) {
			res.Err = ctx.Err()
			return res
		}
	}

	res.Err = ErrNoResponse
	return res
}

func (b *base) resolve(ctx context.Context, address string) (net.IP, error) {
	if ip := net.ParseIP(address); ip != nil {
		return ip, nil
	}

	addrs, err := b.resolver.LookupIPAddr(ctx, address)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0].IP, nil
	}
	return nil, fmt.Errorf("no addresses for %s", address)
}

// attemptDeadline is the earlier of now+timeout and the context deadline.
func (b *base) attemptDeadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(b.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

func transportError(err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
