// -- cmd/run.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/internal/browser"
	"github.com/mkarrick/flowpilot/internal/component"
	"github.com/mkarrick/flowpilot/internal/engine"
	"github.com/mkarrick/flowpilot/internal/flowcache"
	"github.com/mkarrick/flowpilot/internal/healing"
	"github.com/mkarrick/flowpilot/internal/llmclient"
	"github.com/mkarrick/flowpilot/internal/observability"
	"github.com/mkarrick/flowpilot/internal/pagestate"
	"github.com/mkarrick/flowpilot/internal/planner"
	"github.com/mkarrick/flowpilot/internal/ranker"
	"github.com/mkarrick/flowpilot/internal/recovery"
	"github.com/mkarrick/flowpilot/internal/resolve"
	"github.com/mkarrick/flowpilot/internal/semantic"
	"github.com/mkarrick/flowpilot/internal/snapshot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	runStartURL string
	runStrategy string
	runHeadless bool
	runRecovery int
)

var runCmd = &cobra.Command{
	Use:   "run [instruction]",
	Short: "Execute a natural-language browser flow.",
	Example: `  flowpilot run "go to https://shop.example and click 'Air Conditioners'"
  flowpilot run --start-url https://shop.example "add the first split AC to the cart"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cmd)
		instruction := strings.Join(args, " ")
		return runFlow(cmd.Context(), instruction)
	},
}

func init() {
	runCmd.Flags().StringVar(&runStartURL, "start-url", "", "URL to open before planning")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "ranking strategy: legacy, production or fused")
	runCmd.Flags().BoolVar(&runHeadless, "headless", true, "run the browser headless")
	runCmd.Flags().IntVar(&runRecovery, "max-recovery", 0, "recovery attempts per step before giving up")
	rootCmd.AddCommand(runCmd)
}

func applyRunFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("start-url") {
		appConfig.SetEngineStartURL(runStartURL)
	}
	if cmd.Flags().Changed("strategy") {
		appConfig.SetResolverStrategy(runStrategy)
	}
	if cmd.Flags().Changed("headless") {
		appConfig.SetBrowserHeadless(runHeadless)
	}
	if cmd.Flags().Changed("max-recovery") {
		appConfig.SetEngineMaxRecoveryAttempts(runRecovery)
	}
}

func runFlow(parent context.Context, instruction string) error {
	logger := observability.GetLogger()
	cfg := appConfig

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// LLM client is optional; everything degrades deterministically.
	var client llmclient.Client
	gemini, err := llmclient.New(ctx, cfg.LLM(), logger)
	switch {
	case err == nil:
		client = gemini
	case errors.Is(err, llmclient.ErrDisabled):
		logger.Info("No LLM API key configured; planner and scorer run in fallback mode.")
	default:
		return fmt.Errorf("llm client setup failed: %w", err)
	}

	// Fragment store is optional too.
	var (
		store     *flowcache.Store
		recorder  *flowcache.Recorder
		optimizer *flowcache.Optimizer
	)
	if dbURL := cfg.Database().URL; dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer pool.Close()

		store, err = flowcache.NewStore(ctx, pool, logger)
		if err != nil {
			return err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		recorder = flowcache.NewRecorder(store, logger)
	} else {
		logger.Info("No database configured; flow cache disabled.")
	}
	optimizer = flowcache.NewOptimizer(store, flowcache.DefaultURLShortcuts(), flowcache.DefaultStateShortcuts(), logger)

	strategy, err := ranker.ParseStrategy(cfg.Resolver().Strategy)
	if err != nil {
		return err
	}

	var embedder semantic.Embedder
	if client != nil {
		embedder = client
	}
	scorer := semantic.NewScorer(embedder, cfg.Resolver().EmbeddingCacheSize, logger)
	history := ranker.NewHistory()

	deps := resolve.Deps{
		Scanner: snapshot.NewScanner(snapshot.Options{
			MaxClickables:   cfg.Resolver().MaxClickables,
			MaxInputs:       cfg.Resolver().MaxInputs,
			ScrollSettle:    cfg.Resolver().ScrollSettle,
			PositionTimeout: cfg.Resolver().ScanTimeout,
		}, logger),
		Registry: component.NewRegistry(logger),
		Ranker:   ranker.New(scorer, strategy, history, logger),
		Fused:    ranker.New(scorer, ranker.Fused(), history, logger),
		Healer:   healing.New(logger),
		Logger:   logger,
	}

	mgr := browser.NewManager(cfg.Browser(), cfg.Engine().ActionTimeout, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser shutdown failed.", zap.Error(err))
		}
	}()

	eng := engine.New(
		mgr,
		planner.New(client, logger),
		recovery.New(client, logger),
		resolve.DefaultChain(deps),
		optimizer,
		recorder,
		pagestate.NewCapturer(logger),
		history,
		engine.Config{
			StartURL:            cfg.Engine().StartURL,
			MaxRecoveryAttempts: cfg.Engine().MaxRecoveryAttempts,
			StepTimeout:         cfg.Engine().StepTimeout,
			NavigationTimeout:   cfg.Engine().NavigationTimeout,
			PostActionWait:      cfg.Engine().PostActionWait,
			RecordFragments:     cfg.Engine().RecordFragments,
		},
		logger,
	)

	report := eng.Run(ctx, instruction)

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	fmt.Println(string(out))

	if !report.Success {
		if report.Error != "" {
			return fmt.Errorf("run failed: %s", report.Error)
		}
		return fmt.Errorf("run did not complete all %d steps", report.TotalSteps)
	}
	return nil
}
