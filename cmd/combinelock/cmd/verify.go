package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/ArkLabsHQ/combinelock/internal/mocktx"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/btcsuite/btcd/txscript"
	"github.com/spf13/cobra"
)

type verifyCmd struct {
	BaseCmd
	env   *env
	trace bool
}

func GetVerifyCmd(e *env) *verifyCmd {
	verifyCmdIns := &verifyCmd{env: e}

	verifyCmdIns.cmd = &cobra.Command{
		Use:     "verify <tx file>",
		Short:   "run every script group of a mocked transaction.",
		Example: "combinelock verify tx.yaml --trace",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifyCmdIns.verify(cmd.OutOrStdout(), args[0])
		},
	}

	verifyCmdIns.cmd.Flags().BoolVar(&verifyCmdIns.trace, "trace", false,
		"print every image started")

	return verifyCmdIns
}

func (t *verifyCmd) verify(w io.Writer, path string) error {
	f, err := mocktx.Load(path)
	if err != nil {
		return err
	}
	rtx, err := f.Resolve(t.env.programs)
	if err != nil {
		return err
	}

	var sigCache *txscript.SigCache
	if t.env.cfg.SigCacheSize > 0 {
		sigCache = txscript.NewSigCache(t.env.cfg.SigCacheSize)
	}
	engine, err := vm.NewDebugEngine(rtx, t.env.programs, sigCache,
		t.env.cfg.Limits, func(info *vm.TraceInfo) error {
			if t.trace {
				printTrace(w, info)
			}
			return nil
		})
	if err != nil {
		return err
	}
	engine.SetLogger(t.env.log.WithField("tx", engine.TxHash().String()))

	fmt.Fprintf(w, "tx %s\n", engine.TxHash())

	// Every group is run so each gets a result; the first failure decides
	// the outcome.
	var first error
	for _, group := range engine.Groups() {
		err := engine.VerifyGroup(group)
		fmt.Fprintf(w, "%s %s inputs %v outputs %v: ", group.GroupType,
			group.ScriptHash, group.InputIndices, group.OutputIndices)
		if err == nil {
			fmt.Fprintln(w, "ok")
			continue
		}
		fmt.Fprintf(w, "exit %d\n", vm.ExitCode(err))
		if first == nil {
			first = err
		}
	}
	return first
}

func printTrace(w io.Writer, info *vm.TraceInfo) {
	indent := strings.Repeat("  ", info.Depth+1)
	if info.Done {
		fmt.Fprintf(w, "%s%s exit %d\n", indent, info.Image, info.ExitCode)
		return
	}
	fmt.Fprintf(w, "%s%s %s %q\n", indent, info.Kind, info.Image, info.Argv)
}
