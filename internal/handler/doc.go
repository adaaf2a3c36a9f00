// Package handler implements the HTTP surface of the monitor: status
// queries backed by the status cache, a websocket stream of the same
// data, cache administration and wake requests.
//
// Handlers never probe hosts and never fail because the cache is
// degraded; a host without a fresh entry is reported as unknown.
package handler
