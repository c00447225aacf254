package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmorganca/sparserve/envconfig"
	"github.com/jmorganca/sparserve/logutil"
	"github.com/jmorganca/sparserve/model"
	"github.com/jmorganca/sparserve/model/mlp"
	"github.com/jmorganca/sparserve/version"
)

// DefaultRegistry returns the architectures this build serves.
func DefaultRegistry() *model.Registry {
	r := model.NewRegistry()
	r.Register("SparseMLPForCausalLM", model.Architecture{New: mlp.New})
	return r
}

func NewCLI() *cobra.Command {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	rootCmd := &cobra.Command{
		Use:     "sparserve",
		Short:   "Sparse-aware linear layer serving core",
		Version: version.Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
	}

	cobra.EnableCommandSorting = false

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show device and supported methods",
		RunE:  InfoHandler,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a dummy-weight forward pass",
		RunE:  BenchHandler,
	}
	benchCmd.Flags().String("sparsity", "", "Sparsity method to configure")
	benchCmd.Flags().Int("hidden", 64, "Hidden size")
	benchCmd.Flags().Int("intermediate", 256, "Intermediate size")
	benchCmd.Flags().Int("batch", 8, "Input rows per forward pass")
	benchCmd.Flags().Int("iterations", 100, "Forward passes to run")

	rootCmd.AddCommand(infoCmd, benchCmd)

	return rootCmd
}
