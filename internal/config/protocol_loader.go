package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// HubAliases maps a server event name to the canonical event type it
// decodes into, for one hub.
type HubAliases map[string]string

// ProtocolAliases is keyed by hub kind ("lobby", "connect4", "speedtyping").
type ProtocolAliases struct {
	Hubs map[string]HubAliases `yaml:"hubs"`
}

func LoadProtocolAliases(path string) (ProtocolAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProtocolAliases{}, fmt.Errorf("read protocol aliases: %w", err)
	}
	return ParseProtocolAliases(data)
}

func ParseProtocolAliases(data []byte) (ProtocolAliases, error) {
	var pa ProtocolAliases
	if err := yaml.Unmarshal(data, &pa); err != nil {
		return ProtocolAliases{}, fmt.Errorf("parse protocol aliases: %w", err)
	}
	for hub, names := range pa.Hubs {
		for wire, canonical := range names {
			if strings.TrimSpace(wire) == "" || strings.TrimSpace(canonical) == "" {
				return ProtocolAliases{}, fmt.Errorf("parse protocol aliases: hub %q has an empty entry", hub)
			}
		}
	}
	return pa, nil
}

// Merge overlays o onto pa. Entries in o win; hubs absent from o are kept.
func (pa ProtocolAliases) Merge(o ProtocolAliases) ProtocolAliases {
	out := ProtocolAliases{Hubs: make(map[string]HubAliases, len(pa.Hubs))}
	for hub, names := range pa.Hubs {
		out.Hubs[hub] = make(HubAliases, len(names))
		for k, v := range names {
			out.Hubs[hub][k] = v
		}
	}
	for hub, names := range o.Hubs {
		if out.Hubs[hub] == nil {
			out.Hubs[hub] = make(HubAliases, len(names))
		}
		for k, v := range names {
			out.Hubs[hub][k] = v
		}
	}
	return out
}

// Hub returns the alias table for one hub kind, or nil.
func (pa ProtocolAliases) Hub(kind string) HubAliases {
	return pa.Hubs[kind]
}
