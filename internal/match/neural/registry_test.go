package neural

import (
	"errors"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBundled(t *testing.T) {
	reg, err := LoadBundled()
	require.NoError(t, err)

	keys := reg.Keys()
	want := []Key{
		{"defender", "standing"},
		{"forward", "standing"},
		{"goalkeeper", "standing"},
		{"midfielder", "standing"},
	}
	assert.Equal(t, want, keys)
}

func TestBundledDefenderMarksWhenOpponentsHaveBall(t *testing.T) {
	reg, err := LoadBundled()
	require.NoError(t, err)

	var x Features
	x[4] = 0.1  // close to own goal
	x[5] = -1   // opponents in possession
	x[6] = 0.9  // fresh
	x[7] = 0.5  // ball far away

	scores, err := reg.Evaluate(Key{"defender", "standing"}, x)
	require.NoError(t, err)

	label, ok := scores.Best(0.5)
	require.True(t, ok)
	assert.Equal(t, "marking", label)

	var sum float64
	for _, p := range scores.Probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestBestBelowConfidenceFloor(t *testing.T) {
	reg, err := LoadBundled()
	require.NoError(t, err)

	// Loose ball at the agent's feet: no label is confident.
	scores, err := reg.Evaluate(Key{"defender", "standing"}, Features{})
	require.NoError(t, err)

	_, ok := scores.Best(0.5)
	assert.False(t, ok)
}

func TestEvaluateUnknownKey(t *testing.T) {
	reg, err := LoadBundled()
	require.NoError(t, err)

	_, err = reg.Evaluate(Key{"defender", "sliding_tackle"}, Features{})
	assert.True(t, errors.Is(err, ErrNoModel))
}

func TestEvaluateIsPureUnderConcurrency(t *testing.T) {
	reg, err := LoadBundled()
	require.NoError(t, err)

	x := Features{0.2, -0.1, 0.3, 0, 0.4, 1, 0.8, 0.25}
	ref, err := reg.Evaluate(Key{"midfielder", "standing"}, x)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := reg.Evaluate(Key{"midfielder", "standing"}, x)
			assert.NoError(t, err)
			assert.Equal(t, ref.Probs, got.Probs)
		}()
	}
	wg.Wait()
}

func TestLoadRejectsCorruptWeights(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"not json", `{`},
		{"wrong input width", `{"role":"r","state":"s","labels":["a"],"layers":[{"weights":[[1,2]],"biases":[0]}]}`},
		{"label mismatch", `{"role":"r","state":"s","labels":["a","b"],"layers":[{"weights":[[0,0,0,0,0,0,0,0]],"biases":[0]}]}`},
		{"bad activation", `{"role":"r","state":"s","labels":["a"],"layers":[{"activation":"swish","weights":[[0,0,0,0,0,0,0,0]],"biases":[0]}]}`},
		{"missing biases", `{"role":"r","state":"s","labels":["a"],"layers":[{"weights":[[0,0,0,0,0,0,0,0]]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(fstest.MapFS{"bad.json": {Data: []byte(tt.file)}})
			assert.Error(t, err)
		})
	}

	_, err := Load(fstest.MapFS{})
	assert.Error(t, err, "empty weight set must fail")
}

func TestEvaluatorFuncStub(t *testing.T) {
	var stub Evaluator = EvaluatorFunc(func(Key, Features) (Scores, error) {
		return Scores{Labels: []string{"stay", "go"}, Probs: []float64{0.1, 0.9}}, nil
	})
	s, err := stub.Evaluate(Key{}, Features{})
	require.NoError(t, err)
	label, ok := s.Best(0.5)
	assert.True(t, ok)
	assert.Equal(t, "go", label)
}
