package neural

import (
	"embed"
	"encoding/json"
	"io/fs"
	"path"
	"sort"

	"github.com/pkg/errors"
)

//go:embed weights/*.json
var bundled embed.FS

// ErrNoModel is returned when no network is registered for a role/state.
var ErrNoModel = errors.New("no model for role/state")

// Key identifies the network for one role and state, e.g. {"defender", "standing"}.
type Key struct {
	Role  string
	State string
}

func (k Key) String() string { return k.Role + "/" + k.State }

// Scores is a probability distribution over a network's labels.
type Scores struct {
	Labels []string
	Probs  []float64
}

// Best returns the most likely label if its probability reaches floor.
// Ties resolve to the earlier label.
func (s Scores) Best(floor float64) (string, bool) {
	best := -1
	for i, p := range s.Probs {
		if best < 0 || p > s.Probs[best] {
			best = i
		}
	}
	if best < 0 || best >= len(s.Labels) || s.Probs[best] < floor {
		return "", false
	}
	return s.Labels[best], true
}

// Evaluator scores the next action for a role/state. Implementations must
// be pure and safe for concurrent use.
type Evaluator interface {
	Evaluate(key Key, x Features) (Scores, error)
}

// Registry is the set of loaded networks. It is read-only after construction.
type Registry struct {
	nets map[Key]*Network
}

// LoadBundled loads and validates every network compiled into the binary.
func LoadBundled() (*Registry, error) {
	sub, err := fs.Sub(bundled, "weights")
	if err != nil {
		return nil, errors.Wrap(err, "open bundled weights")
	}
	return Load(sub)
}

// Load reads every *.json network at the root of fsys.
func Load(fsys fs.FS) (*Registry, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, errors.Wrap(err, "list weights")
	}
	if len(names) == 0 {
		return nil, errors.New("no weight files found")
	}

	r := &Registry{nets: make(map[Key]*Network, len(names))}
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		var n Network
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, errors.Wrapf(err, "decode %s", name)
		}
		if err := n.Validate(); err != nil {
			return nil, errors.Wrapf(err, "validate %s", path.Base(name))
		}
		key := Key{Role: n.Role, State: n.State}
		if _, dup := r.nets[key]; dup {
			return nil, errors.Errorf("%s: duplicate network for %s", name, key)
		}
		r.nets[key] = &n
	}
	return r, nil
}

// Evaluate implements Evaluator.
func (r *Registry) Evaluate(key Key, x Features) (Scores, error) {
	n, ok := r.nets[key]
	if !ok {
		return Scores{}, errors.Wrap(ErrNoModel, key.String())
	}
	return Scores{Labels: n.Labels, Probs: n.Forward(x)}, nil
}

// Keys lists the loaded networks in a stable order.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.nets))
	for k := range r.nets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// EvaluatorFunc adapts a function to Evaluator, mostly for tests.
type EvaluatorFunc func(key Key, x Features) (Scores, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(key Key, x Features) (Scores, error) { return f(key, x) }
