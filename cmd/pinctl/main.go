package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-pins/pkg/pinboard"
	"github.com/tendant/simple-pins/pkg/pinboard/assets"
	"github.com/tendant/simple-pins/pkg/pinboard/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var verbose bool
	var asUser string

	rootCmd := &cobra.Command{
		Use:   "pinctl",
		Short: "Pinboard command line client",
		Long: `Pinboard command line client

Works directly against the configured content store and asset storage
(DATABASE_URL, STORAGE_URL). Uses in-memory storage by default, which is
mostly useful together with the interactive shell.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&asUser, "as", os.Getenv("PINBOARD_USER"), "user id to act as (default: $PINBOARD_USER)")

	rootCmd.AddCommand(NewShowCommand())
	rootCmd.AddCommand(NewProfileCommand())
	rootCmd.AddCommand(NewCreateCommand())
	rootCmd.AddCommand(NewCommentCommand())
	rootCmd.AddCommand(NewSaveCommand())
	rootCmd.AddCommand(NewWhoamiCommand())
	rootCmd.AddCommand(NewSeedUserCommand())
	rootCmd.AddCommand(NewTokenCommand())
	rootCmd.AddCommand(NewShellCommand())

	return rootCmd
}

// client bundles what every command needs.
type client struct {
	cfg     *config.ServerConfig
	store   pinboard.ContentStore
	gateway *assets.Gateway
	release func()
	logger  *slog.Logger
	userID  string
}

// newClientFromFlags opens the configured store and gateway.
func newClientFromFlags(ctx context.Context, cmd *cobra.Command) (*client, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	asUser, _ := cmd.Flags().GetString("as")

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	store, release, err := cfg.BuildStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}
	gateway, err := cfg.BuildGateway(ctx, logger)
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to initialize asset gateway: %w", err)
	}
	if verbose {
		logger.Debug("client ready", "database", cfg.DatabaseType, "storage", cfg.Storage.Type)
	}

	return &client{
		cfg:     cfg,
		store:   store,
		gateway: gateway,
		release: release,
		logger:  logger,
		userID:  asUser,
	}, nil
}

func (c *client) options(sessions pinboard.SessionProvider, extra ...pinboard.Option) []pinboard.Option {
	opts := []pinboard.Option{
		pinboard.WithLogger(c.logger),
		pinboard.WithSessions(sessions),
		pinboard.WithValidationWindow(c.cfg.ValidationWindow),
	}
	if c.cfg.EnableEventLogging {
		opts = append(opts, pinboard.WithEventSink(pinboard.NewLoggingEventSink(c.logger)))
	}
	return append(opts, extra...)
}

func (c *client) sessions() pinboard.SessionProvider {
	return pinboard.StaticSession{UserID: c.userID}
}

// sessionContext carries the acting user so the gateway can place assets
// under their owner.
func (c *client) sessionContext(ctx context.Context) context.Context {
	if c.userID == "" {
		return ctx
	}
	return pinboard.ContextWithSession(ctx, pinboard.Session{UserID: c.userID})
}
