package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"example.com/backstage/services/erpgateway/config"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "erpgateway",
	Short: "Gateway to the ERP Service Layer",
	Long: `Reads and writes ERP resources through short-lived Service Layer sessions,
spreads blanket agreements into per item group contracts and keeps the item
search index in sync.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command. Interrupts cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file or directory (default ./config.yaml, then ./app.env)")
}

// loadConfig reads and validates the configuration and applies its logging settings
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	configureLogging(cfg.Logging)
	return cfg, nil
}

func configureLogging(cfg config.LoggingConfig) {
	if strings.EqualFold(cfg.Format, "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	// LOG_LEVEL set in main wins over the configured level
	if os.Getenv("LOG_LEVEL") != "" || cfg.Level == "" {
		return
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, keeping the default")
		return
	}
	zerolog.SetGlobalLevel(level)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "failed to write output")
}

// readJSON decodes a request document from path, or from stdin when path is "-"
func readJSON(cmd *cobra.Command, path string, v interface{}) error {
	var r io.Reader
	switch path {
	case "":
		return errors.New("--file is required")
	case "-":
		r = cmd.InOrStdin()
	default:
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "failed to open request file")
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode request")
	}
	return nil
}
