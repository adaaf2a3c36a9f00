// Package cache stores the last known status of every host with TTLs that
// depend on the result: online entries live longer than offline ones so a
// single lost echo does not flip a host to offline in the UI.
//
// RemoteCache keeps entries in Redis and lets Redis expire them.
// LocalCache keeps them in a mutex-guarded map and checks age at read
// time. FailoverCache fronts both: it uses Redis while the circuit breaker
// is closed and falls back to the local map for any operation Redis fails,
// so callers never see a backend error.
package cache
