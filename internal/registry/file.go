package registry

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type inventory struct {
	Hosts []Host `yaml:"hosts"`
}

// FileRegistry reads hosts from a YAML inventory:
//
//	hosts:
//	  - id: "1"
//	    name: nas
//	    address: 192.168.1.20
//	    mac: "00:11:22:33:44:55"
//
// The file is re-read on every call so edits are picked up on the next tick.
type FileRegistry struct {
	path string
}

func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

func (r *FileRegistry) Hosts(ctx context.Context) ([]Host, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read host inventory: %w", err)
	}

	var inv inventory
	if err := yaml.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("parse host inventory %s: %w", r.path, err)
	}

	hosts := make([]Host, 0, len(inv.Hosts))
	for i, h := range inv.Hosts {
		h.ID = strings.TrimSpace(h.ID)
		h.Address = strings.TrimSpace(h.Address)
		if h.ID == "" {
			return nil, fmt.Errorf("host inventory %s: entry %d has no id", r.path, i)
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}
