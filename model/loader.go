package model

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/pdevine/tensor"

	"golang.org/x/sync/errgroup"

	"github.com/jmorganca/sparserve/ml"
)

// WeightSource supplies raw weight payloads by parameter name.
type WeightSource interface {
	Weight(name string) (data []byte, dtype ml.DType, err error)
}

// LoadWeights populates every parameter of m from ws, one goroutine per
// layer. It returns once all layers are resident; serving must not begin
// before then, as the empty-to-loaded transition is the initialization
// barrier for concurrent forward passes.
func LoadWeights(m Model, ws WeightSource) error {
	var g errgroup.Group
	for name, p := range m.Parameters() {
		g.Go(func() error {
			data, dtype, err := ws.Weight(name)
			if err != nil {
				return fmt.Errorf("weight %s: %w", name, err)
			}

			f32s, err := ml.DecodeF32(data, dtype)
			if err != nil {
				return fmt.Errorf("weight %s: %w", name, err)
			}

			if len(f32s) != p.Rows()*p.Cols() {
				return fmt.Errorf("weight %s: expected %d elements, got %d", name, p.Rows()*p.Cols(), len(f32s))
			}

			w := tensor.New(tensor.WithShape(p.Rows(), p.Cols()), tensor.WithBacking(f32s))
			return p.Load(name, w)
		})
	}

	return g.Wait()
}

// InitDummyWeights fills every parameter of m with small deterministic
// pseudo-random values, for benchmarking without weight files. Dummy weights
// are fully dense, so compressible layers degrade gracefully to the dense
// path.
func InitDummyWeights(m Model) error {
	for name, p := range m.Parameters() {
		h := fnv.New64a()
		h.Write([]byte(name))
		rng := rand.New(rand.NewSource(int64(h.Sum64())))

		data := make([]float32, p.Rows()*p.Cols())
		for i := range data {
			data[i] = rng.Float32()*2e-3 - 1e-3
		}

		w := tensor.New(tensor.WithShape(p.Rows(), p.Cols()), tensor.WithBacking(data))
		if err := p.Load(name, w); err != nil {
			return err
		}
	}

	return nil
}
