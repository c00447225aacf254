// Package mlp implements a small feed-forward architecture used to exercise
// the serving core end to end. Register it as "SparseMLPForCausalLM".
package mlp

import (
	"fmt"

	"github.com/pdevine/tensor"

	"github.com/jmorganca/sparserve/ml/nn"
	"github.com/jmorganca/sparserve/ml/sparse"
	"github.com/jmorganca/sparserve/model"
)

type Model struct {
	up   *nn.Linear
	down *nn.Linear
}

// New builds the model with empty weight parameters sized from the
// configuration's hidden and intermediate sizes.
func New(c *model.Config, opts model.Options) (model.Model, error) {
	if c.HiddenSize <= 0 || c.IntermediateSize <= 0 {
		return nil, fmt.Errorf("invalid mlp config: hidden_size=%d intermediate_size=%d", c.HiddenSize, c.IntermediateSize)
	}

	return &Model{
		up: &nn.Linear{
			Weight: sparse.NewParameter(c.IntermediateSize, c.HiddenSize, opts.DType, opts.Format),
		},
		down: &nn.Linear{
			Weight: sparse.NewParameter(c.HiddenSize, c.IntermediateSize, opts.DType, opts.Format),
		},
	}, nil
}

func (m *Model) Parameters() map[string]*sparse.Parameter {
	return map[string]*sparse.Parameter{
		"mlp.up_proj.weight":   m.up.Weight,
		"mlp.down_proj.weight": m.down.Weight,
	}
}

// Forward runs up projection, ReLU, down projection.
func (m *Model) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	hidden, err := m.up.Forward(x)
	if err != nil {
		return nil, err
	}

	data := hidden.Data().([]float32)
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}

	return m.down.Forward(hidden)
}
