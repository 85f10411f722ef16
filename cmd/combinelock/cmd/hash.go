package cmd

import (
	"fmt"
	"strings"

	"github.com/ArkLabsHQ/combinelock/internal/mocktx"
	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/combinelock"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// scriptFlags are the flags naming a script.
type scriptFlags struct {
	codeHash string
	hashType string
	args     string
}

func (s *scriptFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.codeHash, "code-hash", "c", "",
		"code hash, or @name of a builtin image")
	cmd.Flags().StringVar(&s.hashType, "hash-type", "data1",
		"hash type: data, type or data1")
	cmd.Flags().StringVarP(&s.args, "args", "a", "", "args in hex")
}

func (s *scriptFlags) script(programs *vm.ProgramRegistry) (*ckb.Script, error) {
	var (
		script ckb.Script
		err    error
	)
	if name, ok := strings.CutPrefix(s.codeHash, "@"); ok {
		img, found := programs.ByName(name)
		if !found {
			return nil, errors.Errorf("unknown image %q", name)
		}
		script.CodeHash = img.DataHash()
	} else if script.CodeHash, err = ckb.ParseHash(s.codeHash); err != nil {
		return nil, err
	}
	if err := script.HashType.UnmarshalText([]byte(s.hashType)); err != nil {
		return nil, err
	}
	if script.Args, err = ckb.DecodeHex(s.args); err != nil {
		return nil, err
	}
	return &script, nil
}

type hashCmd struct {
	BaseCmd
}

func GetHashCmd(e *env) *hashCmd {
	hashCmdIns := new(hashCmd)

	hashCmdIns.cmd = &cobra.Command{
		Use:   "hash",
		Short: "hash scripts, child script configs and transactions.",
	}
	hashCmdIns.cmd.AddCommand(getHashScriptCmd(e))
	hashCmdIns.cmd.AddCommand(getHashConfigCmd())
	hashCmdIns.cmd.AddCommand(getHashTxCmd(e))

	return hashCmdIns
}

func getHashScriptCmd(e *env) *cobra.Command {
	var flags scriptFlags
	cmd := &cobra.Command{
		Use:     "script",
		Short:   "print the hash of a script.",
		Example: "combinelock hash script -c @always-success -a 0x01",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			script, err := flags.script(e.programs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), script.Hash())
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func getHashConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "config <child script config hex>",
		Short:   "check a serialized child script config and print its hash.",
		Example: "combinelock hash config 0x...",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := ckb.DecodeHex(args[0])
			if err != nil {
				return err
			}
			cfg, err := combinelock.DecodeChildScriptConfig(raw)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, cfg.Hash())
			for i := range cfg.Array {
				fmt.Fprintf(w, "child %d %s\n", i, cfg.Array[i].Hash())
			}
			for i, group := range cfg.Index {
				fmt.Fprintf(w, "group %d %v\n", i, group)
			}
			return nil
		},
	}
}

func getHashTxCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "tx <tx file>",
		Short:   "print the hash of a transaction file.",
		Example: "combinelock hash tx tx.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := mocktx.Load(args[0])
			if err != nil {
				return err
			}
			tx, err := f.Transaction(e.programs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tx.Hash())
			return nil
		},
	}
}
