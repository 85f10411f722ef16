package cmd

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/childentry"
	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/spf13/cobra"
)

type entryCmd struct {
	BaseCmd
}

func GetEntryCmd(e *env) *entryCmd {
	entryCmdIns := new(entryCmd)

	entryCmdIns.cmd = &cobra.Command{
		Use:   "entry",
		Short: "encode and decode the child entries passed on exec.",
	}
	entryCmdIns.cmd.AddCommand(getEntryEncodeCmd(e))
	entryCmdIns.cmd.AddCommand(getEntryDecodeCmd())

	return entryCmdIns
}

func getEntryEncodeCmd(e *env) *cobra.Command {
	var (
		flags        scriptFlags
		witnessIndex uint16
		reversed     bool
	)
	cmd := &cobra.Command{
		Use:     "encode",
		Short:   "print the entry of a child script.",
		Example: "combinelock entry encode -c @preimage -a 0x... --witness-index 1",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			script, err := flags.script(e.programs)
			if err != nil {
				return err
			}
			entry := &childentry.Entry{
				CodeHash:     script.CodeHash,
				HashType:     script.HashType,
				WitnessIndex: witnessIndex,
				Args:         script.Args,
			}

			var s string
			if reversed {
				s, err = entry.EncodeReversed()
			} else {
				s, err = entry.Encode()
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().Uint16VarP(&witnessIndex, "witness-index", "w", 0,
		"index of the inner witness the child reads")
	cmd.Flags().BoolVar(&reversed, "reversed", false,
		"use the reversed nibble order")
	return cmd
}

func getEntryDecodeCmd() *cobra.Command {
	var reversed bool
	cmd := &cobra.Command{
		Use:     "decode <entry>",
		Short:   "print the fields of an entry.",
		Example: "combinelock entry decode 0A0B...:2:0:",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parse := childentry.Parse
			if reversed {
				parse = childentry.ParseReversed
			}
			entry, err := parse(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "code_hash: %s\n", entry.CodeHash)
			fmt.Fprintf(w, "hash_type: %s\n", entry.HashType)
			fmt.Fprintf(w, "witness_index: %d\n", entry.WitnessIndex)
			fmt.Fprintf(w, "args: %s\n", ckb.EncodeHex(entry.Args))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reversed, "reversed", false,
		"use the reversed nibble order")
	return cmd
}
