package discordb

import (
	"maps"
	"slices"
	"strings"
)

// Resolver maps logical container names to channel ids.
// It is immutable after NewResolver and safe for concurrent use.
type Resolver struct {
	ids   map[string]string
	names []string
}

// NewResolver validates the mapping once. An empty name or a blank id is a
// configuration error, so a typo in config fails at startup instead of
// silently falling through to the raw-id path.
func NewResolver(containers map[string]string) (*Resolver, error) {
	if len(containers) == 0 {
		return nil, &ConfigurationError{Field: "containers", Reason: "at least one container is required"}
	}
	ids := make(map[string]string, len(containers))
	for name, id := range containers {
		if name == "" {
			return nil, &ConfigurationError{Field: "containers", Reason: "empty container name"}
		}
		if strings.TrimSpace(id) == "" {
			return nil, &ConfigurationError{Field: "containers." + name, Reason: "empty channel id"}
		}
		ids[name] = id
	}
	return &Resolver{
		ids:   ids,
		names: slices.Sorted(maps.Keys(ids)),
	}, nil
}

// Resolve returns the channel id mapped to container, or container itself
// when it is not a known name.
func (r *Resolver) Resolve(container string) string {
	if id, ok := r.ids[container]; ok {
		return id
	}
	return container
}

// Lookup reports the mapped id without the raw-id fallback.
func (r *Resolver) Lookup(name string) (string, bool) {
	id, ok := r.ids[name]
	return id, ok
}

// Names returns the configured names in sorted order.
func (r *Resolver) Names() []string {
	return slices.Clone(r.names)
}
