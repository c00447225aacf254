package nn

import (
	"testing"

	"github.com/pdevine/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorganca/sparserve/ml"
	"github.com/jmorganca/sparserve/ml/sparse"
)

func dense(shape []int, data []float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

func vector(data []float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(len(data)), tensor.WithBacking(data))
}

func loaded(t *testing.T, rows, cols int, data []float32, format sparse.StorageFormat) *sparse.Parameter {
	t.Helper()
	p := sparse.NewParameter(rows, cols, ml.DTypeF16, format)
	require.NoError(t, p.Load("w", dense([]int{rows, cols}, data)))
	return p
}

func TestForwardDense(t *testing.T) {
	// 4x8 weight, input [2 8], zero bias
	wdata := make([]float32, 32)
	for i := range wdata {
		wdata[i] = float32(i%7) - 3
	}

	m := &Linear{
		Weight: loaded(t, 4, 8, wdata, sparse.FormatDense),
		Bias:   vector(make([]float32, 4)),
	}

	xdata := make([]float32, 16)
	for i := range xdata {
		xdata[i] = float32(i) / 2
	}
	x := dense([]int{2, 8}, xdata)

	y, err := m.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, []int(y.Shape()))

	want, err := sparse.DenseLinear(x, dense([]int{4, 8}, wdata), nil)
	require.NoError(t, err)
	assert.Equal(t, want.Data().([]float32), y.Data().([]float32))
}

func TestForwardUncompressedFallback(t *testing.T) {
	// fully dense weight under a compressing format stays uncompressed and
	// takes the dense path, bias included
	wdata := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	p := loaded(t, 2, 4, wdata, sparse.FormatBlockGemm)
	require.NotNil(t, p.Uncompressed())

	m := &Linear{Weight: p, Bias: vector([]float32{1, -1})}

	x := dense([]int{1, 4}, []float32{1, 1, 1, 1})
	y, err := m.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 25}, y.Data().([]float32))
}

func TestForwardSemiStructured(t *testing.T) {
	// 16x16 diagonal weight, a valid 2:4 pattern
	wdata := make([]float32, 256)
	for i := 0; i < 16; i++ {
		wdata[i*16+i] = 2
	}
	p := loaded(t, 16, 16, wdata, sparse.FormatSemiStructured)
	require.NotNil(t, p.Compressed())

	m := &Linear{Weight: p}

	// 5 rows is not a multiple of 8; the dispatcher pads to 8 and strips
	// the padding from the result
	xdata := make([]float32, 80)
	for i := range xdata {
		xdata[i] = float32(i)
	}
	x := dense([]int{5, 16}, xdata)

	y, err := m.Forward(x)
	require.NoError(t, err)
	require.Equal(t, []int{5, 16}, []int(y.Shape()))

	ydata := y.Data().([]float32)
	for i, v := range xdata {
		assert.Equal(t, 2*v, ydata[i])
	}
}

func TestForwardBlockGemm(t *testing.T) {
	wdata := make([]float32, 32)
	wdata[1] = 3   // w[0][1]
	wdata[21] = -2 // w[2][5]
	p := loaded(t, 4, 8, wdata, sparse.FormatBlockGemm)
	require.NotNil(t, p.Compressed())
	require.True(t, p.CompressTransposed())

	m := &Linear{Weight: p}

	x := dense([]int{2, 8}, []float32{
		1, 1, 1, 1, 1, 1, 1, 1,
		0, 2, 0, 0, 0, 1, 0, 0,
	})

	y, err := m.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, []int(y.Shape()))
	assert.Equal(t, []float32{
		3, 0, -2, 0,
		6, 0, -2, 0,
	}, y.Data().([]float32))
}

func TestForwardBitmaskFallback(t *testing.T) {
	// no dedicated kernel: decompress then dense, bias allowed
	wdata := make([]float32, 32)
	wdata[0] = 1
	wdata[9] = 2 // w[1][1]
	p := loaded(t, 4, 8, wdata, sparse.FormatBitmask)
	require.NotNil(t, p.Compressed())
	require.False(t, p.CompressTransposed())

	m := &Linear{Weight: p, Bias: vector([]float32{10, 10, 10, 10})}

	x := dense([]int{1, 8}, []float32{5, 6, 0, 0, 0, 0, 0, 0})
	y, err := m.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []float32{15, 22, 10, 10}, y.Data().([]float32))
}

func TestForwardBatchedInput(t *testing.T) {
	// leading dimensions are preserved
	wdata := make([]float32, 8)
	for i := range wdata {
		wdata[i] = 1
	}
	m := &Linear{Weight: loaded(t, 2, 4, wdata, sparse.FormatDense)}

	x := dense([]int{3, 2, 4}, make([]float32, 24))
	y, err := m.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 2}, []int(y.Shape()))
}

func TestForwardPreconditions(t *testing.T) {
	diag := func(n int) []float32 {
		data := make([]float32, n*n)
		for i := 0; i < n; i++ {
			data[i*n+i] = 1
		}
		return data
	}

	t.Run("empty weight", func(t *testing.T) {
		m := &Linear{Weight: sparse.NewParameter(4, 4, ml.DTypeF16, sparse.FormatDense)}
		_, err := m.Forward(dense([]int{1, 4}, make([]float32, 4)))
		assert.ErrorIs(t, err, sparse.ErrNotLoaded)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		m := &Linear{Weight: loaded(t, 4, 4, diag(4), sparse.FormatDense)}
		_, err := m.Forward(dense([]int{1, 5}, make([]float32, 5)))
		assert.Error(t, err)
	})

	t.Run("semi-structured rejects bias", func(t *testing.T) {
		m := &Linear{
			Weight: loaded(t, 8, 8, diag(8), sparse.FormatSemiStructured),
			Bias:   vector(make([]float32, 8)),
		}
		require.NotNil(t, m.Weight.Compressed())

		_, err := m.Forward(dense([]int{1, 8}, make([]float32, 8)))
		assert.ErrorContains(t, err, "bias")
	})

	t.Run("block gemm rejects bias", func(t *testing.T) {
		m := &Linear{
			Weight: loaded(t, 8, 8, diag(8), sparse.FormatBlockGemm),
			Bias:   vector(make([]float32, 8)),
		}
		require.NotNil(t, m.Weight.Compressed())

		_, err := m.Forward(dense([]int{1, 8}, make([]float32, 8)))
		assert.ErrorContains(t, err, "bias")
	})
}
