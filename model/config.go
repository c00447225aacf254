package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
)

// Config is the architecture configuration parsed from a model's
// config.json. Keys beyond the declared fields are preserved in Raw for
// architecture constructors with extra settings.
type Config struct {
	Architectures    []string `mapstructure:"architectures"`
	TorchDType       string   `mapstructure:"torch_dtype"`
	HiddenSize       int      `mapstructure:"hidden_size"`
	IntermediateSize int      `mapstructure:"intermediate_size"`

	// at most one of the two may be set
	Sparsity     string `mapstructure:"sparsity_config"`
	Quantization string `mapstructure:"quantization_config"`

	Raw map[string]any `mapstructure:"-"`
}

// LoadConfig reads and decodes <dir>/config.json.
func LoadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, err
	}

	return DecodeConfig(data)
}

// DecodeConfig parses a config.json payload.
func DecodeConfig(data []byte) (*Config, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}

	var c Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &c,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}

	c.Raw = raw
	return &c, nil
}
