// Package neural holds the small feed-forward networks consulted when the
// heuristic rules of a state are inconclusive.
//
// Networks are immutable once loaded and safe for concurrent use.
package neural

import (
	"math"

	"github.com/pkg/errors"
)

// FeatureCount is the fixed input width of every bundled network.
const FeatureCount = 8

// Features is the input vector derived from a tick context.
//
//	0 ball dx / pitch width (attacking direction positive)
//	1 ball dy / pitch height
//	2 ball vx / top speed
//	3 ball vy / top speed
//	4 distance to own goal / pitch width
//	5 possession: +1 own team, -1 opponents, 0 loose
//	6 condition / 100
//	7 ball distance / pitch width
type Features [FeatureCount]float64

// Layer is one dense layer. Weights are indexed [output][input].
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Biases     []float64   `json:"biases"`
	Activation string      `json:"activation"`
}

// Network is a dense feed-forward network ending in a softmax over Labels.
type Network struct {
	Role   string   `json:"role"`
	State  string   `json:"state"`
	Labels []string `json:"labels"`
	Layers []Layer  `json:"layers"`
}

// Validate checks that layer shapes chain from FeatureCount to len(Labels).
func (n *Network) Validate() error {
	if len(n.Layers) == 0 {
		return errors.New("network has no layers")
	}
	if len(n.Labels) == 0 {
		return errors.New("network has no labels")
	}

	in := FeatureCount
	for i, l := range n.Layers {
		if len(l.Weights) == 0 {
			return errors.Errorf("layer %d: no weights", i)
		}
		if len(l.Biases) != len(l.Weights) {
			return errors.Errorf("layer %d: %d biases for %d outputs", i, len(l.Biases), len(l.Weights))
		}
		for j, row := range l.Weights {
			if len(row) != in {
				return errors.Errorf("layer %d row %d: %d inputs, want %d", i, j, len(row), in)
			}
		}
		switch l.Activation {
		case "", "linear", "relu", "tanh", "sigmoid":
		default:
			return errors.Errorf("layer %d: unknown activation %q", i, l.Activation)
		}
		in = len(l.Weights)
	}

	if in != len(n.Labels) {
		return errors.Errorf("output width %d does not match %d labels", in, len(n.Labels))
	}
	return nil
}

// Forward runs the network and returns a probability per label.
// The returned slice is freshly allocated.
func (n *Network) Forward(x Features) []float64 {
	cur := x[:]
	for _, l := range n.Layers {
		next := make([]float64, len(l.Weights))
		for o, row := range l.Weights {
			sum := l.Biases[o]
			for i, w := range row {
				sum += w * cur[i]
			}
			next[o] = activate(l.Activation, sum)
		}
		cur = next
	}
	return softmax(cur)
}

func activate(kind string, v float64) float64 {
	switch kind {
	case "relu":
		return math.Max(0, v)
	case "tanh":
		return math.Tanh(v)
	case "sigmoid":
		return 1 / (1 + math.Exp(-v))
	default:
		return v
	}
}

func softmax(v []float64) []float64 {
	out := make([]float64, len(v))
	if len(v) == 0 {
		return out
	}
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	var sum float64
	for i, x := range v {
		out[i] = math.Exp(x - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
