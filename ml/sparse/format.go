// Package sparse implements weight storage for linear layers: a lazily
// populated parameter that holds either a dense matrix or a format-specific
// compressed encoding, the compression decision, and reference CPU
// implementations of the kernels that consume each encoding.
package sparse

// StorageFormat identifies how a layer's weight is stored and which kernel
// consumes it. It is selected once at layer construction time and never
// changes for the layer's lifetime.
type StorageFormat int

const (
	// FormatDense stores the weight uncompressed; compression is never
	// attempted.
	FormatDense StorageFormat = iota

	// FormatBitmask stores the nonzero values plus a presence bitmask and
	// is decompressed back to dense before every use.
	FormatBitmask

	// FormatSemiStructured stores a 2:4 semi-structured sparsity pattern
	// consumed by a dedicated masked matmul kernel.
	FormatSemiStructured

	// FormatBlockGemm stores a block encoding consumed directly by a
	// dedicated gemm with no decompression step.
	FormatBlockGemm
)

func (f StorageFormat) String() string {
	switch f {
	case FormatDense:
		return "dense"
	case FormatBitmask:
		return "bitmask"
	case FormatSemiStructured:
		return "semi_structured"
	case FormatBlockGemm:
		return "block_gemm"
	default:
		return "unknown"
	}
}

// Compresses reports whether the format attempts compression at load time.
func (f StorageFormat) Compresses() bool {
	return f != FormatDense
}

// SupportsLinear reports whether the format's kernel can multiply against
// the weight in its logical layout. Formats without a transpose-aware kernel
// store the weight transposed at compression time so a basic matmul works.
func (f StorageFormat) SupportsLinear() bool {
	return f != FormatBlockGemm
}
