package protocols

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Options carries construction-time settings common to all adapters.
type Options struct {
	// Decoded frame geometry.
	Width  int
	Height int

	// FFmpegBin overrides discovery of the external decode binary.
	FFmpegBin string
}

func (o *Options) applyDefaults() {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
}

// An OpenFunc constructs a specific adapter type.
type OpenFunc func(opts Options) (Adapter, error)

var registry = map[string]OpenFunc{}

// Register an adapter type under its protocol name. Adapters of this type
// will be constructed with the given function.
func Register(name string, open OpenFunc) {
	registry[name] = open
}

// Registered returns the known protocol names, sorted.
func Registered() []string {
	var names []string
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open constructs the adapter registered under the given protocol name.
func Open(name string, opts Options) (Adapter, error) {
	names := Registered()
	log.Debug("Registered protocols: %v", names)

	opts.applyDefaults()
	if open, found := registry[strings.ToLower(name)]; found {
		return open(opts)
	}
	return nil, errors.Errorf("Protocol '%s' not registered (have: %s)",
		name, strings.Join(names, ", "))
}
