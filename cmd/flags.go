package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlags binds each config key to the named flag of fs.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if f := fs.Lookup(name); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

// addFormatFlag registers --format/-f and rejects values outside allowed
// before the command runs.
func addFormatFlag(cmd *cobra.Command, target *string, allowed ...string) {
	cmd.Flags().StringVarP(target, "format", "f", allowed[0],
		fmt.Sprintf("Output format (%s)", strings.Join(allowed, ", ")))

	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(*target, allowed); err != nil {
			return err
		}
		return run(cmd, args)
	}
}

func validateFormat(format string, allowed []string) error {
	format = strings.ToLower(format)
	if slices.Contains(allowed, format) {
		return nil
	}

	for _, a := range allowed {
		if strings.HasPrefix(a, format) || strings.HasPrefix(format, a) {
			return fmt.Errorf("unsupported format %q, did you mean %q? (supported: %s)",
				format, a, strings.Join(allowed, ", "))
		}
	}

	return fmt.Errorf("unsupported format %q (supported: %s)", format, strings.Join(allowed, ", "))
}

// changedString returns the flag's value if it was set, else fallback.
func changedString(cmd *cobra.Command, name, value, fallback string) string {
	if cmd.Flags().Changed(name) {
		return value
	}

	return fallback
}

// changedBool returns the flag's value if it was set, else fallback.
func changedBool(cmd *cobra.Command, name string, value, fallback bool) bool {
	if cmd.Flags().Changed(name) {
		return value
	}

	return fallback
}
