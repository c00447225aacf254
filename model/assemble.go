package model

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jmorganca/sparserve/gpu"
	"github.com/jmorganca/sparserve/ml"
	"github.com/jmorganca/sparserve/ml/sparse"
)

var (
	// ErrUnsupportedArchitecture is returned when none of the
	// architectures a model declares is registered.
	ErrUnsupportedArchitecture = errors.New("unsupported model architecture")

	// ErrCapability is returned when the device compute capability is
	// below the active method's minimum.
	ErrCapability = errors.New("device compute capability too low")

	// ErrDType is returned when the model dtype is not supported by the
	// active method.
	ErrDType = errors.New("dtype not supported")

	// ErrConflictingMethods is returned when both a sparsity and a
	// quantization method are configured.
	ErrConflictingMethods = errors.New("sparsity and quantization cannot be combined")

	// ErrLoRAUnsupported is returned when LoRA adapters are requested for
	// an architecture that does not support them.
	ErrLoRAUnsupported = errors.New("architecture does not support LoRA")
)

// LoRAConfig requests LoRA adapters for the assembled model.
type LoRAConfig struct {
	Rank  int
	Alpha float32
}

// Options control model assembly.
type Options struct {
	// DType is the numeric type weights are declared with. There is no
	// ambient default; every caller states it.
	DType ml.DType

	// LoRA, when non-nil, requests LoRA adapters.
	LoRA *LoRAConfig

	// Format is the weight storage selected by the active sparsity or
	// quantization method. New overwrites it during assembly; callers
	// leave it zero.
	Format sparse.StorageFormat
}

// New assembles a model for serving: it resolves the architecture from c
// against r, validates the configured sparsity or quantization method
// against the device and dtype, and constructs the model with empty weight
// parameters. All validation runs before any weight is built; every failure
// is fatal and never retried.
func New(c *Config, r *Registry, device gpu.DeviceInfo, opts Options) (Model, error) {
	arch, name, err := resolveArchitecture(c, r)
	if err != nil {
		return nil, err
	}

	if opts.LoRA != nil && !arch.SupportsLoRA {
		return nil, fmt.Errorf("%w: %s", ErrLoRAUnsupported, name)
	}

	method, err := resolveMethod(c)
	if err != nil {
		return nil, err
	}

	opts.Format = sparse.FormatDense
	if method != nil {
		if err := checkDevice(device, opts.DType, method); err != nil {
			return nil, err
		}

		opts.Format = method.Format()
		slog.Info("assembling model", "architecture", name, "method", method.Name(), "format", opts.Format, "dtype", opts.DType)
	} else {
		slog.Info("assembling model", "architecture", name, "format", opts.Format, "dtype", opts.DType)
	}

	return arch.New(c, opts)
}

func resolveArchitecture(c *Config, r *Registry) (Architecture, string, error) {
	for _, name := range c.Architectures {
		if arch, ok := r.Load(name); ok {
			return arch, name, nil
		}
	}

	return Architecture{}, "", fmt.Errorf("%w %v, supported architectures: %v",
		ErrUnsupportedArchitecture, c.Architectures, r.Supported())
}

func resolveMethod(c *Config) (Method, error) {
	if c.Sparsity != "" && c.Quantization != "" {
		return nil, fmt.Errorf("%w: sparsity=%q quantization=%q", ErrConflictingMethods, c.Sparsity, c.Quantization)
	}

	switch {
	case c.Sparsity != "":
		return GetSparseConfig(c.Sparsity)
	case c.Quantization != "":
		return GetQuantConfig(c.Quantization)
	default:
		return nil, nil
	}
}

func checkDevice(device gpu.DeviceInfo, dtype ml.DType, m Method) error {
	if capability := device.Capability(); capability < m.MinCapability() {
		return fmt.Errorf("%w: %s requires compute capability %d, %s has %d",
			ErrCapability, m.Name(), m.MinCapability(), device.Name, capability)
	}

	if !slices.Contains(m.SupportedDTypes(), dtype) {
		return fmt.Errorf("%w: %s does not support %s, supported dtypes: %v",
			ErrDType, m.Name(), dtype, m.SupportedDTypes())
	}

	return nil
}
