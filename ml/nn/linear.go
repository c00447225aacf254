package nn

import (
	"fmt"

	"github.com/pdevine/tensor"

	"github.com/jmorganca/sparserve/ml/sparse"
)

// Linear applies y = x @ wᵗ + b for a weight that may be stored dense or
// compressed. Forward dispatches on the weight's payload state and storage
// format; callers always see the same logical transform. Dispatch is a pure
// function of the inputs, so concurrent forward passes over the same weight
// need no synchronization once loading has completed.
type Linear struct {
	Weight *sparse.Parameter
	Bias   *tensor.Dense
}

// Forward applies the linear transform to x, whose trailing dimension must
// equal the weight's input feature count. The output shape is x's leading
// dimensions followed by the output feature count.
func (m *Linear) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	w := m.Weight

	shape := x.Shape()
	if len(shape) < 1 || shape[len(shape)-1] != w.Cols() {
		return nil, fmt.Errorf("input shape %v does not match weight input size %d", shape, w.Cols())
	}

	if w.Empty() {
		return nil, sparse.ErrNotLoaded
	}

	outShape := append(append([]int{}, shape[:len(shape)-1]...), w.Rows())

	// the kernels consume 2-D row-major matrices
	n := 1
	for _, d := range shape[:len(shape)-1] {
		n *= d
	}

	x2 := x.Clone().(*tensor.Dense)
	if err := x2.Reshape(n, w.Cols()); err != nil {
		return nil, err
	}

	var y *tensor.Dense
	var err error
	switch {
	case w.Uncompressed() != nil:
		// compression was rejected or never attempted
		y, err = sparse.DenseLinear(x2, w.Uncompressed(), m.Bias)
	case w.Format() == sparse.FormatSemiStructured:
		if m.Bias != nil {
			return nil, fmt.Errorf("bias is not supported for %s weights", w.Format())
		}

		var padded *tensor.Dense
		var valid sparse.RowRange
		padded, valid, err = sparse.PadRows(x2, sparse.SemiStructuredRowAlign)
		if err != nil {
			return nil, err
		}

		zeros := tensor.New(tensor.WithShape(w.Rows()), tensor.Of(tensor.Float32))
		y, err = sparse.SemiStructuredMatmul(padded, w.Compressed(), zeros)
		if err != nil {
			return nil, err
		}

		y, err = sparse.ExtractRows(y, valid)
	case w.Format() == sparse.FormatBlockGemm:
		if m.Bias != nil {
			return nil, fmt.Errorf("bias is not supported for %s weights", w.Format())
		}

		if !w.CompressTransposed() {
			return nil, fmt.Errorf("%s weights must be compressed transposed", w.Format())
		}

		y, err = sparse.BlockGemm(x2, w.Compressed())
	default:
		// no dedicated kernel for this format: decompress and run the
		// dense path
		if w.CompressTransposed() {
			return nil, fmt.Errorf("cannot decompress a transposed %s weight", w.Format())
		}

		y, err = sparse.DenseLinear(x2, w.Compressed().Decompress(), m.Bias)
	}

	if err != nil {
		return nil, err
	}

	if err := y.Reshape(outShape...); err != nil {
		return nil, err
	}

	return y, nil
}
