package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

var (
	// Set via SPARSERVE_DEBUG in the environment
	Debug bool
	// Set via SPARSERVE_CAPABILITY in the environment; overrides the
	// detected device compute capability, e.g. SPARSERVE_CAPABILITY=8.6
	Capability string
	// Set via SPARSERVE_NOCOMPRESS in the environment; keeps every weight
	// dense regardless of its storage format
	NoCompress bool
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"SPARSERVE_DEBUG":      {"SPARSERVE_DEBUG", Debug, "Show additional debug information (e.g. SPARSERVE_DEBUG=1)"},
		"SPARSERVE_CAPABILITY": {"SPARSERVE_CAPABILITY", Capability, "Override the detected device compute capability (e.g. SPARSERVE_CAPABILITY=8.6)"},
		"SPARSERVE_NOCOMPRESS": {"SPARSERVE_NOCOMPRESS", NoCompress, "Keep weights dense, skipping compression"},
	}
}

// LogLevel returns the slog level selected by the environment.
func LogLevel() slog.Level {
	if Debug {
		return slog.LevelDebug
	}

	return slog.LevelInfo
}

func boolVar(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		// any non-empty unparsable value enables the flag, matching 1/true
		return true
	}

	return b
}

// LoadConfig reads the SPARSERVE_* environment variables. It runs at process
// init and is re-run by tests that change the environment.
func LoadConfig() {
	Debug = boolVar("SPARSERVE_DEBUG")
	NoCompress = boolVar("SPARSERVE_NOCOMPRESS")
	Capability = strings.TrimSpace(os.Getenv("SPARSERVE_CAPABILITY"))
}

func init() {
	LoadConfig()
}
