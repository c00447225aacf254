package sparse

import (
	"fmt"

	"github.com/pdevine/tensor"
)

const (
	// SemiStructuredRowAlign is the input row alignment the semi-structured
	// matmul kernel requires.
	SemiStructuredRowAlign = 8

	// semi-structured pattern: at most 2 nonzeros per aligned group of 4
	semiStructuredGroup    = 4
	semiStructuredGroupMax = 2
)

// Compressed holds a weight in its storage-format encoding: the nonzero
// values in row-major order over the stored layout plus a presence bitmask.
type Compressed struct {
	format StorageFormat

	// stored layout; swapped relative to the logical weight when transposed
	rows, cols int
	transposed bool

	values []float32
	mask   []uint64
}

func (c *Compressed) Format() StorageFormat { return c.format }

// Rows returns the stored row count, which is the logical column count when
// the encoding is transposed.
func (c *Compressed) Rows() int { return c.rows }

func (c *Compressed) Cols() int { return c.cols }

// Transposed reports whether the stored layout is the transpose of the
// logical weight.
func (c *Compressed) Transposed() bool { return c.transposed }

// Bytes returns the in-memory size of the encoding.
func (c *Compressed) Bytes() int64 {
	return int64(len(c.values)*4 + len(c.mask)*8)
}

// Compress encodes w into the given storage format. It returns false when
// the matrix does not meet the format's density requirement and must stay
// dense: bitmask encodings only pay off when at least half the elements are
// zero, and the semi-structured kernel needs a valid 2:4 pattern over every
// aligned group.
func Compress(w *tensor.Dense, format StorageFormat) (*Compressed, bool, error) {
	shape := w.Shape()
	if len(shape) != 2 {
		return nil, false, fmt.Errorf("cannot compress tensor of shape %v", shape)
	}

	data, ok := w.Data().([]float32)
	if !ok {
		return nil, false, fmt.Errorf("cannot compress %v tensor", w.Dtype())
	}
	rows, cols := shape[0], shape[1]

	switch format {
	case FormatSemiStructured:
		if cols%semiStructuredGroup != 0 {
			return nil, false, nil
		}
		for r := 0; r < rows; r++ {
			for g := 0; g < cols; g += semiStructuredGroup {
				var nonzero int
				for _, v := range data[r*cols+g : r*cols+g+semiStructuredGroup] {
					if v != 0 {
						nonzero++
					}
				}
				if nonzero > semiStructuredGroupMax {
					return nil, false, nil
				}
			}
		}
	case FormatBitmask, FormatBlockGemm:
		var zeros int
		for _, v := range data {
			if v == 0 {
				zeros++
			}
		}
		if zeros*2 < len(data) {
			return nil, false, nil
		}
	default:
		return nil, false, nil
	}

	c := &Compressed{format: format, rows: rows, cols: cols}

	stored := w
	if !format.SupportsLinear() {
		// the consuming kernel has no transpose-aware matmul, so store the
		// weight transposed and use a basic matmul
		t := w.Clone().(*tensor.Dense)
		if err := t.T(); err != nil {
			return nil, false, err
		}
		if err := t.Transpose(); err != nil {
			return nil, false, err
		}
		stored = t
		c.rows, c.cols, c.transposed = cols, rows, true
	}

	sdata := stored.Data().([]float32)
	c.mask = make([]uint64, (len(sdata)+63)/64)
	for i, v := range sdata {
		if v != 0 {
			c.mask[i/64] |= 1 << (i % 64)
			c.values = append(c.values, v)
		}
	}

	return c, true, nil
}

// Decompress materializes the stored layout back into a dense matrix. It is
// the exact inverse of the encoding performed by Compress; note the result
// is in the stored layout, so a transposed encoding decompresses transposed.
func (c *Compressed) Decompress() *tensor.Dense {
	data := make([]float32, c.rows*c.cols)
	var n int
	for i := range data {
		if c.mask[i/64]&(1<<(i%64)) != 0 {
			data[i] = c.values[n]
			n++
		}
	}

	return tensor.New(tensor.WithShape(c.rows, c.cols), tensor.WithBacking(data))
}
