// Command rotor analyzes and exploits the rotor slot machine from its
// recorded spin history.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/MJE43/rotor-replay-go/internal/config"
	"github.com/MJE43/rotor-replay-go/internal/logging"
	"github.com/MJE43/rotor-replay-go/internal/store"
)

type app struct {
	configPath string
	envPath    string
	memory     bool
	dev        bool

	cfg    *config.Config
	logger *zap.Logger
	db     store.DB
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := a.rootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "rotor",
		Short:         "Rotor slot machine analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&a.envPath, "env", ".env", "dotenv file with ROTOR_* overrides")
	flags.BoolVar(&a.memory, "memory", false, "use an in-memory store instead of the configured database")
	flags.BoolVar(&a.dev, "dev", false, "human-readable development logging")

	root.AddCommand(
		a.migrateCommand(),
		a.importCommand(),
		a.coverageCommand(),
		a.frequenciesCommand(),
		a.profitCommand(),
		a.calibrateCommand(),
		a.evaluateCommand(),
		a.campaignCommand(),
		a.serveCommand(),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath, a.envPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log.Level, a.dev)
	if err != nil {
		return err
	}
	a.logger = logger

	if a.memory {
		a.db = store.NewMemoryDB()
		return nil
	}
	db, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return err
	}
	a.db = db
	return nil
}

func (a *app) close() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
