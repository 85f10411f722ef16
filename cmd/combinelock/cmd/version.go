package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// set at build time
var (
	buildVersion = "0.0.0"
	commitHash   = "default"
	buildDate    = "default"
)

type versionCmd struct {
	BaseCmd
}

func GetVersionCmd() *versionCmd {
	versionCmdIns := new(versionCmd)

	versionCmdIns.cmd = &cobra.Command{
		Use:     "version",
		Short:   "print version information.",
		Example: "combinelock version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s-%s %s\n", buildVersion,
				commitHash, buildDate)
		},
	}

	return versionCmdIns
}
