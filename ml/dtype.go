package ml

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// DType is the numeric type a weight is declared with in the model
// configuration. The reference backend computes in float32; DecodeF32
// converts raw payloads accordingly.
type DType int

const (
	DTypeF32 DType = iota
	DTypeF16
	DTypeBF16
	DTypeOther
)

func (t DType) String() string {
	switch t {
	case DTypeF32:
		return "float32"
	case DTypeF16:
		return "float16"
	case DTypeBF16:
		return "bfloat16"
	default:
		return "unknown"
	}
}

// ParseDType maps a torch_dtype string from a model's config.json.
func ParseDType(s string) (DType, error) {
	switch s {
	case "float32", "":
		return DTypeF32, nil
	case "float16", "half":
		return DTypeF16, nil
	case "bfloat16":
		return DTypeBF16, nil
	default:
		return DTypeOther, fmt.Errorf("unsupported dtype %q", s)
	}
}

// ElemSize returns the storage size of one element in bytes.
func (t DType) ElemSize() int {
	switch t {
	case DTypeF32:
		return 4
	case DTypeF16, DTypeBF16:
		return 2
	default:
		return 0
	}
}

// DecodeF32 converts a raw little-endian weight payload of the given dtype
// into float32s.
func DecodeF32(data []byte, t DType) ([]float32, error) {
	if size := t.ElemSize(); size == 0 || len(data)%size != 0 {
		return nil, fmt.Errorf("cannot decode %d bytes as %s", len(data), t)
	}

	switch t {
	case DTypeF32:
		f32s := make([]float32, len(data)/4)
		for i := range f32s {
			f32s[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return f32s, nil
	case DTypeF16:
		f32s := make([]float32, len(data)/2)
		for i := range f32s {
			f32s[i] = float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32()
		}
		return f32s, nil
	case DTypeBF16:
		return bfloat16.DecodeFloat32(data), nil
	default:
		return nil, fmt.Errorf("cannot decode %s", t)
	}
}

// EncodeF16 packs float32s into little-endian IEEE half precision, used by
// tests and the dummy weight path.
func EncodeF16(f32s []float32) []byte {
	data := make([]byte, len(f32s)*2)
	for i, v := range f32s {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(float16.Fromfloat32(v)))
	}
	return data
}
