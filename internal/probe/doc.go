// Package probe checks whether a single address answers echo requests.
//
// Three interchangeable implementations share one Result contract:
//
//   - ICMPProber: raw ICMP echo via golang.org/x/net/icmp (needs CAP_NET_RAW)
//   - PingerProber: prometheus-community/pro-bing, usable unprivileged over UDP
//   - CommandProber: the platform ping utility, success is a zero exit code
//
// Every prober resolves the address first and gives up immediately when
// resolution fails. Timeouts are retried up to Config.Retries times with
// Config.RetryInterval between attempts. Transport failures (for example a
// raw socket denied by the kernel) are reported through ErrPermission or
// ErrTransport so they can be told apart from a host that is simply down.
package probe
