package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xcodebn/zoun"
	"github.com/xcodebn/zoun/factory"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli holds the state shared by the subcommands.
type cli struct {
	configPath string
	cfg        *zoun.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "zoun-admin",
		Short:         "Generic admin panel over registered record types",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := zoun.LoadConfig(c.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)
			c.cfg = cfg
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to the YAML configuration file")

	rootCmd.AddCommand(c.serveCmd())
	rootCmd.AddCommand(c.modelsCmd())
	rootCmd.AddCommand(c.schemaCmd())
	return rootCmd
}

// newLogger builds the process logger from the logging settings.
func newLogger(cfg zoun.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging.level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func (c *cli) serveCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			defer zap.L().Sync()

			admin, err := factory.NewAdmin(ctx, c.cfg, demoRegistrations())
			if err != nil {
				return fmt.Errorf("failed to assemble admin: %w", err)
			}
			defer admin.Close()

			if seed {
				if err := seedDemo(ctx, admin.Registry); err != nil {
					return fmt.Errorf("failed to seed demo data: %w", err)
				}
			}

			return serve(ctx, c.cfg.Server, NewServer(admin))
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", true, "store the demo data set when the storage is empty")
	return cmd
}

// serve runs the listener until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, cfg zoun.ServerConfig, handler http.Handler) error {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	zap.S().Infow("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// inspect assembles the demo models over memory storage so that introspection needs no backends.
func (c *cli) inspect(ctx context.Context) (*factory.Admin, error) {
	cfg := *c.cfg
	cfg.Storage.Driver = zoun.StorageDriverMemory
	cfg.Blob.Enabled = false
	cfg.Cache.Enabled = false
	cfg.Resilience.Enabled = false
	cfg.Metrics.Enabled = false
	return factory.NewAdmin(ctx, &cfg, demoRegistrations())
}

func (c *cli) modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Print the registered models and their field descriptors as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := c.inspect(cmd.Context())
			if err != nil {
				return err
			}
			defer admin.Close()

			out, err := json.MarshalIndent(admin.Registry.All(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode models: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

func (c *cli) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <model>",
		Short: "Print the JSON Schema of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := c.inspect(cmd.Context())
			if err != nil {
				return err
			}
			defer admin.Close()

			schema, err := admin.Controller.Schema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return err
		},
	}
}
