// Package cli implements the ani command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/ani/internal/basis"
	"github.com/born-ml/ani/internal/envconfig"
	"github.com/born-ml/ani/internal/featurizer"
	"github.com/born-ml/ani/internal/logutil"
)

// Version is the CLI version, overridden at link time.
var Version = "v0.1.0-dev"

// appendEnvDocs adds environment-variable documentation to a command's usage.
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "ani",
		Short:         "Batched atomic-environment featurizer with exact adjoints",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
		},
	}
	rootCmd.PersistentFlags().String("basis", "", "Path to a JSON basis-parameter file (default $ANI_BASIS or built-in)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ani version %s\n", Version)
		},
	}

	layoutCmd := newLayoutCmd()
	featurizeCmd := newFeaturizeCmd()
	checkCmd := newCheckCmd()

	envVars := envconfig.AsMap()
	kernelEnvs := []envconfig.EnvVar{
		envVars["ANI_DEBUG"],
		envVars["ANI_NUM_WORKERS"],
		envVars["ANI_MIN_CHUNK"],
		envVars["ANI_SEQUENTIAL"],
		envVars["ANI_BASIS"],
	}
	for _, cmd := range []*cobra.Command{layoutCmd, featurizeCmd, checkCmd} {
		switch cmd {
		case layoutCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["ANI_BASIS"]})
		default:
			appendEnvDocs(cmd, kernelEnvs)
		}
	}

	rootCmd.AddCommand(versionCmd, layoutCmd, featurizeCmd, checkCmd)
	return rootCmd
}

// loadBasis resolves the basis from --basis, then ANI_BASIS, then the default.
func loadBasis(cmd *cobra.Command) (*basis.Basis, error) {
	path, err := cmd.Flags().GetString("basis")
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = envconfig.Basis()
	}

	params := basis.Default()
	if path != "" {
		if params, err = basis.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return basis.New(params)
}

// newEngine builds an engine from the basis flags and the environment.
func newEngine(cmd *cobra.Command) (*featurizer.Engine, error) {
	b, err := loadBasis(cmd)
	if err != nil {
		return nil, err
	}
	return featurizer.New(b,
		featurizer.WithParallel(envconfig.Parallel()),
		featurizer.WithLogger(slog.Default()),
	), nil
}

// Main runs the CLI and returns the process exit code.
func Main() int {
	if err := NewCLI().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
