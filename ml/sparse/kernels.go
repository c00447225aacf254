package sparse

import (
	"fmt"

	"github.com/pdevine/tensor"
	"github.com/pdevine/tensor/native"
)

// Reference CPU implementations of the compute primitives the linear
// dispatcher invokes. Accelerator builds provide these from the device
// library; the contracts here are what any implementation must uphold.

// RowRange marks the rows of a padded matrix that carry real data.
type RowRange struct {
	Start, End int
}

// PadRows appends zero rows to m until its row count is a multiple of n and
// returns the range of valid rows. Zero rows are numerically inert and are
// stripped from results with ExtractRows.
func PadRows(m *tensor.Dense, n int) (*tensor.Dense, RowRange, error) {
	shape := m.Shape()
	if len(shape) != 2 {
		return nil, RowRange{}, fmt.Errorf("cannot pad tensor of shape %v", shape)
	}

	rows, cols := shape[0], shape[1]
	valid := RowRange{Start: 0, End: rows}
	if rows%n == 0 {
		return m, valid, nil
	}

	padded := rows + n - rows%n
	data := make([]float32, padded*cols)
	copy(data, m.Data().([]float32))

	return tensor.New(tensor.WithShape(padded, cols), tensor.WithBacking(data)), valid, nil
}

// ExtractRows returns the valid rows of a matrix computed from a padded
// input. It is the exact left inverse of PadRows.
func ExtractRows(m *tensor.Dense, r RowRange) (*tensor.Dense, error) {
	shape := m.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("cannot extract rows from tensor of shape %v", shape)
	}

	rows, cols := shape[0], shape[1]
	if r.Start < 0 || r.End > rows || r.Start > r.End {
		return nil, fmt.Errorf("row range [%d:%d] out of bounds for %d rows", r.Start, r.End, rows)
	}

	if r.Start == 0 && r.End == rows {
		return m, nil
	}

	data := make([]float32, (r.End-r.Start)*cols)
	copy(data, m.Data().([]float32)[r.Start*cols:r.End*cols])

	return tensor.New(tensor.WithShape(r.End-r.Start, cols), tensor.WithBacking(data)), nil
}

// SemiStructuredMatmul computes x @ wᵗ + bias against a semi-structured
// weight. The kernel requires the input row count to be a multiple of
// SemiStructuredRowAlign and a bias vector sized to the output feature
// count; callers without a bias pass zeros.
func SemiStructuredMatmul(x *tensor.Dense, w *Compressed, bias *tensor.Dense) (*tensor.Dense, error) {
	if w.format != FormatSemiStructured {
		return nil, fmt.Errorf("semi-structured matmul called with %s weight", w.format)
	}

	if rows := x.Shape()[0]; rows%SemiStructuredRowAlign != 0 {
		return nil, fmt.Errorf("input rows %d not a multiple of %d", rows, SemiStructuredRowAlign)
	}

	if bias == nil || bias.Shape()[0] != w.rows {
		return nil, fmt.Errorf("kernel requires a bias vector of length %d", w.rows)
	}

	return DenseLinear(x, w.Decompress(), bias)
}

// BlockGemm multiplies x directly against a block-compressed weight in its
// stored transposed layout, producing x @ wᵗ without a decompression step
// visible to the caller.
func BlockGemm(x *tensor.Dense, w *Compressed) (*tensor.Dense, error) {
	if w.format != FormatBlockGemm {
		return nil, fmt.Errorf("block gemm called with %s weight", w.format)
	}

	if !w.transposed {
		return nil, fmt.Errorf("block gemm requires the transposed encoding")
	}

	y, err := tensor.MatMul(x, w.Decompress())
	if err != nil {
		return nil, err
	}

	return y.(*tensor.Dense), nil
}

// DenseLinear computes the standard dense linear transform x @ wᵗ + bias.
// bias may be nil.
func DenseLinear(x, w, bias *tensor.Dense) (*tensor.Dense, error) {
	wt := w.Clone().(*tensor.Dense)
	if err := wt.T(); err != nil {
		return nil, err
	}

	if err := wt.Transpose(); err != nil {
		return nil, err
	}

	y, err := tensor.MatMul(x, wt)
	if err != nil {
		return nil, err
	}

	out := y.(*tensor.Dense)
	if bias != nil {
		rows, err := native.MatrixF32(out)
		if err != nil {
			return nil, err
		}

		b := bias.Data().([]float32)
		for _, row := range rows {
			for j := range row {
				row[j] += b[j]
			}
		}
	}

	return out, nil
}
