package hub

import (
	_ "embed"
	"fmt"

	"github.com/charleschow/arcade-client/internal/config"
	"github.com/charleschow/arcade-client/internal/events"
)

//go:embed aliases.yaml
var defaultAliasData []byte

var defaultAliases config.ProtocolAliases

func init() {
	pa, err := config.ParseProtocolAliases(defaultAliasData)
	if err != nil {
		panic(fmt.Sprintf("hub: embedded aliases: %v", err))
	}
	defaultAliases = pa
}

// DefaultAliases returns the built-in per-hub event name table.
func DefaultAliases() config.ProtocolAliases {
	return defaultAliases.Merge(config.ProtocolAliases{})
}

// LoadAliases returns the built-in table overlaid with the file at path.
// An empty path yields the built-in table.
func LoadAliases(path string) (config.ProtocolAliases, error) {
	if path == "" {
		return DefaultAliases(), nil
	}
	override, err := config.LoadProtocolAliases(path)
	if err != nil {
		return config.ProtocolAliases{}, err
	}
	for hub, names := range override.Hubs {
		for wire, canonical := range names {
			if !events.Known(events.EventType(canonical)) {
				return config.ProtocolAliases{}, fmt.Errorf("aliases %s: %s.%s maps to unknown event %q", path, hub, wire, canonical)
			}
		}
	}
	return defaultAliases.Merge(override), nil
}
