package model_test

import (
	"testing"

	"github.com/pdevine/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorganca/sparserve/gpu"
	"github.com/jmorganca/sparserve/ml"
	"github.com/jmorganca/sparserve/model"
	"github.com/jmorganca/sparserve/model/mlp"
)

func testRegistry() *model.Registry {
	r := model.NewRegistry()
	r.Register("SparseMLPForCausalLM", model.Architecture{New: mlp.New})
	return r
}

func testConfig() *model.Config {
	return &model.Config{
		Architectures:    []string{"SparseMLPForCausalLM"},
		HiddenSize:       8,
		IntermediateSize: 16,
	}
}

func TestNewUnsupportedArchitecture(t *testing.T) {
	c := testConfig()
	c.Architectures = []string{"FooForCausalLM", "BarForCausalLM"}

	_, err := model.New(c, testRegistry(), gpu.DeviceInfo{}, model.Options{DType: ml.DTypeF32})
	require.ErrorIs(t, err, model.ErrUnsupportedArchitecture)
	assert.ErrorContains(t, err, "FooForCausalLM")
	assert.ErrorContains(t, err, "SparseMLPForCausalLM")
}

func TestNewFirstMatchingArchitectureWins(t *testing.T) {
	c := testConfig()
	c.Architectures = []string{"FooForCausalLM", "SparseMLPForCausalLM"}

	m, err := model.New(c, testRegistry(), gpu.DeviceInfo{}, model.Options{DType: ml.DTypeF32})
	require.NoError(t, err)
	assert.Len(t, m.Parameters(), 2)
}

func TestNewLoRAUnsupported(t *testing.T) {
	_, err := model.New(testConfig(), testRegistry(), gpu.DeviceInfo{}, model.Options{
		DType: ml.DTypeF32,
		LoRA:  &model.LoRAConfig{Rank: 8},
	})
	require.ErrorIs(t, err, model.ErrLoRAUnsupported)
	assert.ErrorContains(t, err, "SparseMLPForCausalLM")
}

func TestNewConflictingMethods(t *testing.T) {
	c := testConfig()
	c.Sparsity = "sparse_w16a16"
	c.Quantization = "w4a16"

	_, err := model.New(c, testRegistry(), gpu.DeviceInfo{Major: 8, Minor: 6}, model.Options{DType: ml.DTypeF16})
	assert.ErrorIs(t, err, model.ErrConflictingMethods)
}

func TestNewCapabilityGate(t *testing.T) {
	c := testConfig()
	c.Sparsity = "semi_structured_sparse_w16a16"

	// below the minimum, the capability check fails regardless of dtype
	for _, dtype := range []ml.DType{ml.DTypeF16, ml.DTypeF32} {
		_, err := model.New(c, testRegistry(), gpu.DeviceInfo{Major: 7, Minor: 5}, model.Options{DType: dtype})
		assert.ErrorIs(t, err, model.ErrCapability)
	}

	// at the minimum with an unsupported dtype, the dtype check fails
	_, err := model.New(c, testRegistry(), gpu.DeviceInfo{Major: 8, Minor: 0}, model.Options{DType: ml.DTypeF32})
	assert.ErrorIs(t, err, model.ErrDType)

	_, err = model.New(c, testRegistry(), gpu.DeviceInfo{Major: 8, Minor: 0}, model.Options{DType: ml.DTypeF16})
	assert.NoError(t, err)
}

func TestNewUnknownMethod(t *testing.T) {
	c := testConfig()
	c.Sparsity = "sparse_w999"

	_, err := model.New(c, testRegistry(), gpu.DeviceInfo{Major: 8, Minor: 6}, model.Options{DType: ml.DTypeF16})
	assert.ErrorContains(t, err, "sparse_w999")

	c = testConfig()
	c.Quantization = "q999"

	_, err = model.New(c, testRegistry(), gpu.DeviceInfo{Major: 8, Minor: 6}, model.Options{DType: ml.DTypeF16})
	assert.ErrorContains(t, err, "q999")
}

func TestNewSelectsMethodFormat(t *testing.T) {
	c := testConfig()
	c.Sparsity = "sparse_w16a16"

	m, err := model.New(c, testRegistry(), gpu.DeviceInfo{Major: 8, Minor: 6}, model.Options{DType: ml.DTypeF16})
	require.NoError(t, err)

	for name, p := range m.Parameters() {
		assert.True(t, p.Empty(), "parameter %s should be empty before loading", name)
		assert.Equal(t, "block_gemm", p.Format().String())
	}
}

func TestNewDummyWeightsForward(t *testing.T) {
	m, err := model.New(testConfig(), testRegistry(), gpu.DeviceInfo{}, model.Options{DType: ml.DTypeF32})
	require.NoError(t, err)
	require.NoError(t, model.InitDummyWeights(m))

	x := tensor.New(tensor.WithShape(2, 8), tensor.Of(tensor.Float32))
	y, err := m.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 8}, []int(y.Shape()))
}

func TestDecodeConfig(t *testing.T) {
	c, err := model.DecodeConfig([]byte(`{
		"architectures": ["SparseMLPForCausalLM"],
		"torch_dtype": "float16",
		"hidden_size": 32,
		"intermediate_size": 128,
		"sparsity_config": "sparse_w16a16"
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"SparseMLPForCausalLM"}, c.Architectures)
	assert.Equal(t, "float16", c.TorchDType)
	assert.Equal(t, 32, c.HiddenSize)
	assert.Equal(t, 128, c.IntermediateSize)
	assert.Equal(t, "sparse_w16a16", c.Sparsity)
	assert.Empty(t, c.Quantization)

	dtype, err := ml.ParseDType(c.TorchDType)
	require.NoError(t, err)
	assert.Equal(t, ml.DTypeF16, dtype)
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := testRegistry()
	assert.Panics(t, func() {
		r.Register("SparseMLPForCausalLM", model.Architecture{New: mlp.New})
	})
}
