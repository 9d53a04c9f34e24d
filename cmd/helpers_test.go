// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fairwaylabs/teesnipe/internal/config"
	"github.com/fairwaylabs/teesnipe/internal/observability"
)

// resetForTest clears the global state the root command touches so tests do
// not leak config or flag values into each other.
func resetForTest(t *testing.T) {
	t.Helper()

	viper.Reset()
	viper.SetConfigName("a-config-file-that-does-not-exist")

	cfgFile = ""

	// rootCmd is a package-level singleton, so flag values parsed by one test
	// stay set (and marked Changed) for the next; restore the defaults.
	for _, c := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				if err := f.Value.Set(f.DefValue); err != nil {
					t.Fatalf("resetting flag %q: %v", f.Name, err)
				}
				f.Changed = false
			}
		})
	}

	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})

	// Keep the rolling log and any run artifacts out of the repo tree.
	t.Setenv("TEESNIPE_ARTIFACTS_DIR", t.TempDir())
}

// executeCommand runs the root command with args and captures its combined
// output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// findSubcommand returns the named child of cmd, failing the test when it is
// not registered.
func findSubcommand(t *testing.T, cmd *cobra.Command, name string) *cobra.Command {
	t.Helper()
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}
	t.Fatalf("subcommand %q not registered", name)
	return nil
}
