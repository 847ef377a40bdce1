package inverter

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/invbridge/invbridge/pkg/log"
	"github.com/invbridge/invbridge/pkg/types"
)

// Constructor builds a backend from its configuration.
type Constructor func(cfg types.InverterConfig) (Inverter, error)

// Registry maps configuration type strings to backend constructors, split
// into an actively supported tier and a deprecated legacy tier. Built once
// at process start and passed to whoever creates inverters.
type Registry struct {
	active map[string]Constructor
	legacy map[string]Constructor
}

// Default returns the registry of built-in backends.
func Default() *Registry {
	return &Registry{
		active: map[string]Constructor{
			"victron":       newVictron,
			"fronius_gen24": newFroniusV2,
			"evcc":          newNull, // control happens externally
			"default":       newNull, // display-only mode
		},
		legacy: map[string]Constructor{
			"fronius_gen24_legacy": newFroniusLegacy,
			"fronius_gen24_v2":     newFroniusV2, // deprecated name for the modern backend
		},
	}
}

// Types returns every registered type string, active and legacy, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.active)+len(r.legacy))
	for t := range r.active {
		out = append(out, t)
	}
	for t := range r.legacy {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Create looks up cfg.Type case-insensitively and constructs the backend.
// Legacy types still work but log a migration warning. Unknown types fail
// with an UnknownTypeError listing everything the registry knows.
func (r *Registry) Create(ctx context.Context, cfg types.InverterConfig) (Inverter, error) {
	t := strings.ToLower(cfg.Type)

	if construct, ok := r.active[t]; ok {
		log.Ctx(ctx).InfoContext(ctx, "creating inverter",
			slog.String("type", t),
			slog.String("address", cfg.Address),
		)
		return construct(cfg)
	}

	if construct, ok := r.legacy[t]; ok {
		log.Ctx(ctx).WarnContext(ctx, "creating deprecated inverter type, consider migrating to a modern type",
			slog.String("type", t),
			slog.String("address", cfg.Address),
		)
		return construct(cfg)
	}

	return nil, &UnknownTypeError{Type: cfg.Type, Supported: r.Types()}
}
