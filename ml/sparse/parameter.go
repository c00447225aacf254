package sparse

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdevine/tensor"

	"github.com/jmorganca/sparserve/envconfig"
	"github.com/jmorganca/sparserve/format"
	"github.com/jmorganca/sparserve/ml"
)

var (
	// ErrNotLoaded is returned when a weight is used before the loader
	// populated it.
	ErrNotLoaded = errors.New("weight has not been loaded")

	// ErrLoaded is returned on a second attempt to populate a weight.
	ErrLoaded = errors.New("weight has already been loaded")
)

// Parameter is one layer's weight matrix. It is created empty with only its
// shape and dtype, populated exactly once by the weight loader before serving
// begins, and read-only afterwards, so concurrent forward passes share it
// without locking. The payload is either dense or compressed, never both: a
// weight that does not meet its storage format's density requirement stays
// dense for the life of the layer.
type Parameter struct {
	rows, cols int
	dtype      ml.DType
	storage    StorageFormat

	// only ever true for compressed payloads whose kernel lacks a
	// transpose-aware matmul
	compressTransposed bool

	dense      *tensor.Dense
	compressed *Compressed
}

// NewParameter creates an empty parameter for a weight with the given output
// and input feature counts.
func NewParameter(rows, cols int, dtype ml.DType, storage StorageFormat) *Parameter {
	return &Parameter{rows: rows, cols: cols, dtype: dtype, storage: storage}
}

func (p *Parameter) Rows() int             { return p.rows }
func (p *Parameter) Cols() int             { return p.cols }
func (p *Parameter) DType() ml.DType       { return p.dtype }
func (p *Parameter) Format() StorageFormat { return p.storage }

// CompressTransposed reports whether the compressed payload is stored
// transposed relative to the logical weight.
func (p *Parameter) CompressTransposed() bool { return p.compressTransposed }

// Empty reports whether the parameter has not been populated yet.
func (p *Parameter) Empty() bool { return p.dense == nil && p.compressed == nil }

// Uncompressed returns the dense payload, or nil when the parameter is empty
// or compressed.
func (p *Parameter) Uncompressed() *tensor.Dense { return p.dense }

// Compressed returns the compressed payload, or nil when the parameter is
// empty or dense.
func (p *Parameter) Compressed() *Compressed { return p.compressed }

// Load populates the parameter from a dense weight, compressing it when the
// storage format's density requirement is met. It may only be called once and
// must complete before the first forward pass reads the parameter.
func (p *Parameter) Load(name string, w *tensor.Dense) error {
	if !p.Empty() {
		return fmt.Errorf("weight %s: %w", name, ErrLoaded)
	}

	if shape := w.Shape(); len(shape) != 2 || shape[0] != p.rows || shape[1] != p.cols {
		return fmt.Errorf("weight %s: expected shape [%d %d], got %v", name, p.rows, p.cols, shape)
	}

	if p.storage.Compresses() && !envconfig.NoCompress {
		c, ok, err := Compress(w, p.storage)
		if err != nil {
			return fmt.Errorf("weight %s: %w", name, err)
		}

		if ok {
			p.compressed = c
			p.compressTransposed = c.Transposed()
			slog.Debug("compressed weight", "name", name, "format", p.storage,
				"dense", format.HumanBytes(int64(p.rows*p.cols*4)),
				"compressed", format.HumanBytes(c.Bytes()))
			return nil
		}

		slog.Debug("weight density too high, keeping dense", "name", name, "format", p.storage)
	}

	p.dense = w
	return nil
}
