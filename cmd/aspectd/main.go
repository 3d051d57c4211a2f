// Aspectd is a demo host for the call interceptor and the failure layer. It serves a
// small cached quote catalog behind a chi router.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aspectd",
		Short:         "Demo host for cached service calls and request failure handling",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newConfigCmd(),
	)

	return root
}
