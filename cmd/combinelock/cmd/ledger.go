package cmd

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/internal/ledger"
	"github.com/ArkLabsHQ/combinelock/internal/mocktx"
	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/spf13/cobra"
)

type ledgerCmd struct {
	BaseCmd
	env *env
}

func GetLedgerCmd(e *env) *ledgerCmd {
	ledgerCmdIns := &ledgerCmd{env: e}

	ledgerCmdIns.cmd = &cobra.Command{
		Use:   "ledger",
		Short: "commit transactions to the ledger in the data directory.",
	}
	ledgerCmdIns.cmd.AddCommand(&cobra.Command{
		Use:     "init <tx file>...",
		Short:   "commit genesis transactions, which create cells unchecked.",
		Example: "combinelock ledger init genesis.yaml",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ledgerCmdIns.commit(cmd, args, (*ledger.Ledger).Genesis)
		},
	})
	ledgerCmdIns.cmd.AddCommand(&cobra.Command{
		Use:     "submit <tx file>...",
		Short:   "verify transactions against the live cells and commit them.",
		Example: "combinelock ledger submit spend.yaml",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ledgerCmdIns.commit(cmd, args, (*ledger.Ledger).Submit)
		},
	})
	ledgerCmdIns.cmd.AddCommand(&cobra.Command{
		Use:     "cells",
		Short:   "list the live cells.",
		Example: "combinelock ledger cells",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ledgerCmdIns.cells(cmd)
		},
	})

	return ledgerCmdIns
}

func (t *ledgerCmd) open() (*ledger.Ledger, error) {
	cfg := t.env.cfg
	if err := cfg.InitDatadir(); err != nil {
		return nil, err
	}
	return ledger.Open(cfg.LedgerPath(), ledger.Options{
		Programs:     t.env.programs,
		SigCacheSize: cfg.SigCacheSize,
		CellCacheTTL: cfg.CellCacheTTL,
		Limits:       cfg.Limits,
		Logger:       t.env.log,
	})
}

func (t *ledgerCmd) commit(cmd *cobra.Command, paths []string,
	commit func(*ledger.Ledger, *ckb.Transaction) (ckb.Hash, error)) error {

	l, err := t.open()
	if err != nil {
		return err
	}
	defer l.Close()

	for _, path := range paths {
		f, err := mocktx.Load(path)
		if err != nil {
			return err
		}
		tx, err := f.Transaction(t.env.programs)
		if err != nil {
			return err
		}
		h, err := commit(l, tx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "committed %s %s\n", path, h)
	}
	return nil
}

func (t *ledgerCmd) cells(cmd *cobra.Command) error {
	l, err := t.open()
	if err != nil {
		return err
	}
	defer l.Close()

	w := cmd.OutOrStdout()
	return l.LiveCells(func(cell *ckb.CellMeta) error {
		fmt.Fprintf(w, "%s capacity %d lock %s", cell.OutPoint,
			cell.Output.Capacity, cell.Output.Lock.Hash())
		if cell.Output.Type != nil {
			fmt.Fprintf(w, " type %s", cell.Output.Type.Hash())
		}
		fmt.Fprintf(w, " data %d bytes\n", len(cell.Data))
		return nil
	})
}
