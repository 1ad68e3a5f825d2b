package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/chriskillpack/human360"
	"github.com/chriskillpack/human360/internal/config"
	"github.com/chriskillpack/human360/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const Version = "0.3.0"

var (
	configPath string

	// Populated before any subcommand runs
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:     "human360",
	Short:   "Portrait attribute analysis backed by a vision language model",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		if log, err = logger.New(cfg.Logging.Level, cfg.Logging.Format); err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default: ./config.yaml or ./configs/config.yaml)")
}

// newHuman360 builds the analysis workflow from cfg. Only the settings of the
// configured backend are passed on, the others may be present in the
// environment without being selected.
func newHuman360(ctx context.Context, cfg *config.Config, log *zap.Logger) (*human360.Human360, error) {
	hio := human360.InitOptions{
		RateLimit:  cfg.RateLimit.Requests,
		RateWindow: cfg.RateLimit.Window,
		Timeout:    cfg.Analyzer.Timeout,
		HttpClient: &http.Client{
			Timeout: cfg.Analyzer.Timeout,
		},
		Logger: log,
	}

	switch cfg.Analyzer.Backend {
	case "gemini":
		hio.GeminiAPIKey = cfg.Gemini.APIKey
		hio.GeminiModel = cfg.Gemini.Model
	case "openai":
		hio.OpenAIAPIKey = cfg.OpenAI.APIKey
		hio.OpenAIModel = cfg.OpenAI.Model
	case "llama":
		hio.LlamaServer = cfg.Llama.Server
		hio.LlamaSeed = cfg.Llama.Seed
	}

	return human360.Init(ctx, hio)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
