package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdpoll "command-centre/command/poll"
	cmdrollup "command-centre/command/rollup"
	cmdweb "command-centre/command/web"
	cmdwatch "command-centre/command/watch"
	cfgloader "command-centre/connectors/config"
	"command-centre/domain/config"
)

// Command centre dashboard rollup.
// Usage:
//   command-centre rollup [--print]     run once
//   command-centre web [--addr :5000]   upload API with debounced runs
//   command-centre poll                 cron job: fetch new files, run if any
//   command-centre watch                run whenever the upload dir changes
// ENV: CONFIG_PATH points to a YAML config file (default ./config.yml); CC_* overrides flags.

var rootCmd = &cobra.Command{
	Use:           "command-centre",
	Short:         "Command centre dashboard rollup",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		slog.SetDefault(slog.New(h))
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("config", "CONFIG_PATH", "CC_CONFIG")
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", "./config.yml", "path to the YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(rollupCmd())
	rootCmd.AddCommand(webCmd())
	rootCmd.AddCommand(pollCmd())
	rootCmd.AddCommand(watchCmd())
}

func loadConfig() (*config.Config, error) {
	return cfgloader.Load(viper.GetString("config"))
}

func rollupCmd() *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Run the dashboard rollup once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var out io.Writer
			if show {
				out = cmd.OutOrStdout()
			}
			return cmdrollup.Run(cmd.Context(), cfg, "cli", out)
		},
	}
	cmd.Flags().BoolVar(&show, "print", false, "render the produced tables")
	return cmd
}

func webCmd() *cobra.Command {
	var addr, ui string
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the upload and table APIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return cmdweb.Run(cmd.Context(), cfg, addr, ui)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "http listen address (host:port), defaults to web.addr")
	cmd.Flags().StringVar(&ui, "ui", "./ui/dist", "directory containing built UI (Vite dist)")
	return cmd
}

func pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Download new files from the remote drop and run if any arrived",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return cmdpoll.Run(cmd.Context(), cfg)
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run whenever files change in the upload directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return cmdwatch.Run(cmd.Context(), cfg)
		},
	}
}
