package model

import (
	"fmt"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/jmorganca/sparserve/ml"
	"github.com/jmorganca/sparserve/ml/sparse"
)

// Method configures how linear layers store and compute their weights.
// Exactly one of a sparsity or a quantization method may be active per
// model.
type Method interface {
	Name() string

	// MinCapability is the minimum device compute capability ordinal the
	// method's kernels run on.
	MinCapability() int

	// SupportedDTypes lists the activation dtypes the method accepts.
	SupportedDTypes() []ml.DType

	// Format selects the weight storage each linear layer is built with.
	Format() sparse.StorageFormat
}

type sparseW16A16 struct{}

func (sparseW16A16) Name() string       { return "sparse_w16a16" }
func (sparseW16A16) MinCapability() int { return 70 }
func (sparseW16A16) SupportedDTypes() []ml.DType {
	return []ml.DType{ml.DTypeF32, ml.DTypeF16, ml.DTypeBF16}
}
func (sparseW16A16) Format() sparse.StorageFormat { return sparse.FormatBlockGemm }

type semiStructuredSparseW16A16 struct{}

func (semiStructuredSparseW16A16) Name() string       { return "semi_structured_sparse_w16a16" }
func (semiStructuredSparseW16A16) MinCapability() int { return 80 }
func (semiStructuredSparseW16A16) SupportedDTypes() []ml.DType {
	return []ml.DType{ml.DTypeF16, ml.DTypeBF16}
}
func (semiStructuredSparseW16A16) Format() sparse.StorageFormat {
	return sparse.FormatSemiStructured
}

type w4a16 struct{}

func (w4a16) Name() string                 { return "w4a16" }
func (w4a16) MinCapability() int           { return 75 }
func (w4a16) SupportedDTypes() []ml.DType  { return []ml.DType{ml.DTypeF16} }
func (w4a16) Format() sparse.StorageFormat { return sparse.FormatBitmask }

var sparsityMethods = map[string]Method{
	"sparse_w16a16":                 sparseW16A16{},
	"semi_structured_sparse_w16a16": semiStructuredSparseW16A16{},
}

var quantizationMethods = map[string]Method{
	"w4a16": w4a16{},
}

// SparsityMethods returns the supported sparsity method names, sorted.
func SparsityMethods() []string {
	names := maps.Keys(sparsityMethods)
	slices.Sort(names)
	return names
}

// QuantizationMethods returns the supported quantization method names,
// sorted.
func QuantizationMethods() []string {
	names := maps.Keys(quantizationMethods)
	slices.Sort(names)
	return names
}

// Methods returns every supported method, sorted by name.
func Methods() []Method {
	all := append(maps.Values(sparsityMethods), maps.Values(quantizationMethods)...)
	slices.SortFunc(all, func(a, b Method) int {
		switch {
		case a.Name() < b.Name():
			return -1
		case a.Name() > b.Name():
			return 1
		default:
			return 0
		}
	})
	return all
}

// GetSparseConfig resolves a sparsity method by name.
func GetSparseConfig(name string) (Method, error) {
	m, ok := sparsityMethods[name]
	if !ok {
		return nil, fmt.Errorf("unknown sparsity method %q, supported methods: %v", name, SparsityMethods())
	}

	return m, nil
}

// GetQuantConfig resolves a quantization method by name.
func GetQuantConfig(name string) (Method, error) {
	m, ok := quantizationMethods[name]
	if !ok {
		return nil, fmt.Errorf("unknown quantization method %q, supported methods: %v", name, QuantizationMethods())
	}

	return m, nil
}
