package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
)

const envPrefix = "PAGESIM_"

// newRootCmd creates the base command when called without any subcommands.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pagesim",
		Short: "pagesim simulates processes paging against a small memory.",
		Long: `pagesim simulates processes that access pages concurrently ` +
			`while a single MMU resolves hits and page faults and evicts ` +
			`pages when the physical frames run out.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return applyEnvDefaults(cmd.Flags())
		},
	}

	rootCmd.PersistentFlags().String("env-file", ".env",
		"File to load "+envPrefix+"* defaults from.")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCompareCmd())

	return rootCmd
}

// Execute runs the command line and exits with 1 on failure.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// applyEnvDefaults loads the env file and then uses PAGESIM_<FLAG> variables
// for every flag not given on the command line. For example, PAGESIM_REF_LEN
// sets --ref-len.
func applyEnvDefaults(flags *pflag.FlagSet) error {
	envFile, err := flags.GetString("env-file")
	if err != nil {
		return err
	}

	err = godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	var setErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || setErr != nil {
			return
		}

		value, found := os.LookupEnv(envName(f.Name))
		if !found {
			return
		}

		setErr = flags.Set(f.Name, value)
	})

	return setErr
}

func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}
