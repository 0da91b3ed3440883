// presencectl joins a live-cursor channel from the terminal and logs who
// comes and goes.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "presencectl",
		Short:        "Live cursor presence client",
		SilenceUsage: true,
	}
	root.AddCommand(buildJoinCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
