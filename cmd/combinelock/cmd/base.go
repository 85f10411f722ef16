// Package cmd holds the commands of the combinelock tool.
package cmd

import (
	"github.com/ArkLabsHQ/combinelock/internal/builtin"
	"github.com/ArkLabsHQ/combinelock/internal/config"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// BaseCmd is embedded by every command.
type BaseCmd struct {
	cmd *cobra.Command
}

func (t *BaseCmd) SetCmd(cmd *cobra.Command) {
	t.cmd = cmd
}

func (t *BaseCmd) GetCmd() *cobra.Command {
	return t.cmd
}

// env is the state commands share, set up once the config is loaded.
type env struct {
	cfg      *config.Config
	log      *log.Logger
	programs *vm.ProgramRegistry
}

func (e *env) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	e.cfg = cfg

	e.log = log.New()
	e.log.SetOutput(cmd.ErrOrStderr())
	e.log.SetLevel(cfg.LogLevel)
	e.programs = builtin.Programs()
	return nil
}

// NewRootCommand returns the combinelock command with every subcommand
// attached.
func NewRootCommand() *cobra.Command {
	e := new(env)
	rootCmd := &cobra.Command{
		Use:           "combinelock <command> [arguments]",
		Short:         "Combinelock verifies composite lock transactions.",
		Long:          "Combinelock runs the composite lock, lock wrapper, registry guard and auth scripts over transaction files and a local ledger.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load(cmd)
		},
	}

	rootCmd.AddCommand(GetVersionCmd().GetCmd())
	rootCmd.AddCommand(GetVerifyCmd(e).GetCmd())
	rootCmd.AddCommand(GetHashCmd(e).GetCmd())
	rootCmd.AddCommand(GetEntryCmd(e).GetCmd())
	rootCmd.AddCommand(GetLedgerCmd(e).GetCmd())
	return rootCmd
}
