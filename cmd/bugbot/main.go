// bugbot is an interview bot that collects structured bug-progress
// reports from developers over a multi-turn conversation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bugbot/internal/config"
	"bugbot/internal/dialog"
	"bugbot/internal/extract"
	"bugbot/internal/llm"
	"bugbot/internal/logging"
	"bugbot/internal/metrics"
	"bugbot/internal/session"
	"bugbot/internal/store"
)

var (
	verbose    bool
	apiKey     string
	model      string
	configPath string
	resultsDir string
	dbPath     string
	timeout    time.Duration
	policyName string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bugbot",
	Short: "bugbot - conversational bug progress reporting",
	Long: `bugbot interviews a developer about the bugs assigned to them and
commits structured progress reports to the bug database.

Run without arguments to start an interactive reporting session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession()
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Analyze persisted session artifacts and print performance metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		calc, err := metrics.Load(cfg.Session.ResultsDir)
		if err != nil {
			return fmt.Errorf("failed to load session artifacts: %w", err)
		}
		fmt.Print(calc.Report())
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [developers.json] [bugs.json]",
	Short: "Load the developer roster and bug table from JSON fixtures",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := store.Open(cfg.Storage.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open bug store: %w", err)
		}
		defer s.Close()

		if err := s.SeedFromJSON(args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("Seed complete.")
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if model != "" {
		cfg.LLM.Model = model
	}
	if resultsDir != "" {
		cfg.Session.ResultsDir = resultsDir
	}
	if dbPath != "" {
		cfg.Storage.DatabasePath = dbPath
	}
	if timeout > 0 {
		cfg.LLM.Timeout = timeout.String()
	}
	return cfg, nil
}

func runSession() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.Initialize("."); err != nil {
		logger.Warn("file logging disabled", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	stop := watchInterrupt(ctx, cancel)
	defer stop()
	defer cancel()

	s, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open bug store: %w", err)
	}
	defer s.Close()

	client := llm.NewOpenRouterClientWithConfig(llm.OpenRouterConfig{
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.GetLLMTimeout(),
		SiteName: cfg.LLM.SiteName,
	})

	engine := extract.NewEngine(client, extract.ParsePolicy(policyName))
	orch, err := dialog.New(client, s, engine, cfg.MaxTurns())
	if err != nil {
		return err
	}

	runner := session.New(orch, cfg.Session.ResultsDir)
	output, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("session complete",
		zap.Bool("success", output.Success),
		zap.Int("reports", len(output.Reports)))
	return nil
}

// watchInterrupt cancels the session context on SIGINT/SIGTERM. The
// returned stop function releases the signal registration and waits for
// the watcher goroutine to exit; call it after cancel.
func watchInterrupt(ctx context.Context, cancel context.CancelFunc) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigCh:
			fmt.Println("\nInterrupted.")
			cancel()
		case <-ctx.Done():
		}
	}()

	return func() {
		signal.Stop(sigCh)
		<-done
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "OpenRouter API key (or set OPENROUTER_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Override the configured model")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&resultsDir, "results", "", "Directory for session artifacts")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the bug database")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "LLM request timeout")
	rootCmd.PersistentFlags().StringVar(&policyName, "consistency-policy", "clarify", "Status/solved conflict policy: off, force_unsolved, upgrade_status, clarify")

	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
