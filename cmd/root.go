package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sarth-shah20/sinkswitch/internal/config"
	"github.com/sarth-shah20/sinkswitch/internal/logging"
	"github.com/sarth-shah20/sinkswitch/internal/pulse"
	"github.com/sarth-shah20/sinkswitch/internal/switcher"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// Global variables holding the loaded configuration
var (
	cfg     *config.Config
	cfgFile string
)

// logger is replaced once the configuration is loaded.
var logger = zerolog.Nop()

// audioServer is what the commands need from a connected audio server.
type audioServer interface {
	switcher.Server
	CurrentDefaultSink(ctx context.Context) (string, error)
	ListEntries(ctx context.Context) ([]pulse.RestoreEntry, error)
	Forget(ctx context.Context, names ...string) error
	Close() error
}

// connect opens the audio server connection; tests replace it.
var connect = func(ctx context.Context, opts pulse.Options) (audioServer, error) {
	m, err := pulse.NewManager(ctx, opts)
	if err != nil {
		return nil, err
	}
	return m, nil
}

var rootCmd = &cobra.Command{
	Use:   "sinkswitch <sink>",
	Short: "Make <sink> the default output and move remembered streams to it",
	Long: `sinkswitch sets the audio server's default sink and rewrites every
stream-restore entry so that applications which remembered another device
follow the new default too.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE runs before ANY command (the switch itself, entries, current, forget)
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadedConfig, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		if loadedConfig.Client.Version == "dev" {
			loadedConfig.Client.Version = Version
		}

		cfg = loadedConfig
		logger = logging.Init(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})
		logger.Debug().Str("server", cfg.Server).Dur("timeout", cfg.Timeout).Msg("configuration loaded")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		sink := args[0]
		out := cmd.OutOrStdout()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		srv, err := connect(ctx, serverOptions())
		if err != nil {
			return err
		}
		defer srv.Close()

		if cfg.DryRun {
			fmt.Fprintf(out, "dry run: not changing anything on the server\n")
		} else {
			fmt.Fprintf(out, "setting default sink to %s\n", sink)
		}

		res, err := switcher.New(srv, logger, cfg.DryRun).Run(ctx, sink)
		if res != nil {
			printResult(cmd, sink, res)
		}
		return err
	},
}

func printResult(cmd *cobra.Command, sink string, res *switcher.Result) {
	out := cmd.OutOrStdout()
	if cfg.DryRun {
		fmt.Fprintf(out, "would move %d stream-restore entries to %s\n", res.Entries, sink)
		for _, c := range res.Changes {
			from := c.From
			if from == "" {
				from = "(none)"
			}
			fmt.Fprintf(out, "  %s: %s -> %s\n", c.Name, from, c.To)
		}
		return
	}
	fmt.Fprintf(out, "moved %d of %d stream-restore entries to %s\n", res.Rewritten, res.Entries, sink)
}

// serverOptions turns the loaded configuration into connection options.
func serverOptions() pulse.Options {
	return pulse.Options{
		Server:     cfg.Server,
		CookiePath: cfg.Cookie,
		Properties: pulse.PropList{
			pulse.PropApplicationName:     cfg.Client.Name,
			pulse.PropApplicationID:       cfg.Client.ID,
			pulse.PropApplicationIconName: cfg.Client.Icon,
			pulse.PropApplicationVersion:  cfg.Client.Version,
		},
		Logger: logger,
	}
}

// commandContext applies the configured timeout; zero means none.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout > 0 {
		return context.WithTimeout(ctx, cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Interrupts cancel whatever request is in flight.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.Version = Version

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/sinkswitch/config.yaml)")
	pf.String("server", "", "audio server address (default $PULSE_SERVER or the local socket)")
	pf.String("cookie", "", "path to the authentication cookie")
	pf.Duration("timeout", 0, "give up after this long (0 waits forever)")
	pf.String("log-level", "info", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "auto", "log format: auto, console or json")

	rootCmd.Flags().Bool("dry-run", false, "show which entries would move without changing anything")
}
