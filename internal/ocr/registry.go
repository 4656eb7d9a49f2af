package ocr

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfrotate/internal/metrics"
)

// DefaultEndpoints is the service-variant priority order.
var DefaultEndpoints = []string{
	"general_basic",
	"general",
	"accurate_basic",
	"accurate",
	"webimage",
	"webimage_loc",
}

// DefaultMaxFailures evicts an endpoint after this many failures without an
// intervening success.
const DefaultMaxFailures = 3

type endpoint struct {
	name     string
	failures int
	active   bool
}

// Registry holds the ordered service variants with per-variant failure
// counters. Once a counter reaches the threshold the variant is evicted for
// the remaining lifetime of the process and never retried.
type Registry struct {
	mu        sync.Mutex
	endpoints []*endpoint
	maxFails  int
}

func NewRegistry(names []string, maxFails int) *Registry {
	if len(names) == 0 {
		names = DefaultEndpoints
	}
	if maxFails <= 0 {
		maxFails = DefaultMaxFailures
	}
	eps := make([]*endpoint, 0, len(names))
	for _, n := range names {
		eps = append(eps, &endpoint{name: n, active: true})
	}
	return &Registry{endpoints: eps, maxFails: maxFails}
}

// Active returns the still-active endpoint names in priority order.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		if ep.active {
			out = append(out, ep.name)
		}
	}
	return out
}

// HasActive reports whether any endpoint is still in play.
func (r *Registry) HasActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ep := range r.endpoints {
		if ep.active {
			return true
		}
	}
	return false
}

// MarkSuccess resets the failure counter for name.
func (r *Registry) MarkSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ep := range r.endpoints {
		if ep.name == name {
			ep.failures = 0
			return
		}
	}
}

// MarkFailure increments the failure counter for name and evicts the
// endpoint permanently once the threshold is reached. Returns true on
// eviction.
func (r *Registry) MarkFailure(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ep := range r.endpoints {
		if ep.name != name || !ep.active {
			continue
		}
		ep.failures++
		if ep.failures >= r.maxFails {
			ep.active = false
			metrics.EndpointEvicted(name)
			log.Warn().
				Str("endpoint", name).
				Int("failures", ep.failures).
				Msg("endpoint evicted for the rest of the run")
			return true
		}
		return false
	}
	return false
}
