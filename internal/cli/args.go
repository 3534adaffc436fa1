package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvka-141/classload/pkg/classload"
)

const argsUsage = "<database_connection_string> <input_csv>"

// RequireConnectionAndInput validates that exactly the connection target and
// the input path were given. On a wrong count it prints the usage line to
// stdout and returns an error wrapping classload.ErrUsage.
func RequireConnectionAndInput(cmd *cobra.Command, args []string) error {
	if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
		return nil
	}
	if len(args) != 2 {
		fmt.Fprintf(cmd.OutOrStdout(), "Usage: %s %s\n", cmd.Name(), argsUsage)
		return fmt.Errorf("%w: accepts 2 arg(s), received %d", classload.ErrUsage, len(args))
	}
	return nil
}
