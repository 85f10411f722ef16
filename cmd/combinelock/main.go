package main

import (
	"fmt"
	"os"

	"github.com/ArkLabsHQ/combinelock/cmd/combinelock/cmd"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/pkg/errors"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitStatus(err))
	}
}

// exitStatus is the process status of a failed command: the exit code of a
// rejecting script group, 1 otherwise.
func exitStatus(err error) int {
	var groupErr *vm.GroupError
	if errors.As(err, &groupErr) && groupErr.ExitCode != 0 {
		return int(uint8(groupErr.ExitCode))
	}
	return 1
}
