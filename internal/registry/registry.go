// Package registry reads the set of hosts to monitor. The web application
// owns the host records; the monitor only ever lists them.
package registry

import (
	"context"
	"fmt"
	"strings"
)

// Host is a registered machine. Only ID and Address matter for probing;
// Name and MAC are carried for logs and wake requests.
type Host struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	MAC     string `yaml:"mac"`
}

// Registry lists every registered host.
type Registry interface {
	Hosts(ctx context.Context) ([]Host, error)
}

// Lookup finds a host by id.
func Lookup(ctx context.Context, r Registry, id string) (Host, bool, error) {
	hosts, err := r.Hosts(ctx)
	if err != nil {
		return Host{}, false, err
	}
	id = strings.TrimSpace(id)
	for _, h := range hosts {
		if h.ID == id {
			return h, true, nil
		}
	}
	return Host{}, false, nil
}

// IDs returns the ids of hosts in registry order.
func IDs(hosts []Host) []string {
	ids := make([]string, 0, len(hosts))
	for _, h := range hosts {
		ids = append(ids, h.ID)
	}
	return ids
}

// Open builds the registry for a configured driver.
func Open(driver, dsn, query string) (Registry, error) {
	switch driver {
	case "file":
		return NewFileRegistry(dsn), nil
	case "sqlite", "postgres":
		reg, err := OpenSQL(driver, dsn, query)
		if err != nil {
			return nil, err
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("unknown registry driver %q", driver)
	}
}
