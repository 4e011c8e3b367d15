// Command indexer runs the YAM marketplace event indexer: it wires
// configuration, logging, the RPC pool, the subgraph client, and the event
// store into one Indexing Loop and drives it forward until terminated.
// Ground truth: main_indexing.py's top-level wiring and supervising
// `while True` restart-on-failure wrapper.
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

	"github.com/RealToken-Community/yam-transactions-report-generator/internal/config"
	"github.com/RealToken-Community/yam-transactions-report-generator/internal/indexerloop"
	"github.com/RealToken-Community/yam-transactions-report-generator/internal/logging"
	"github.com/RealToken-Community/yam-transactions-report-generator/internal/rpcpool"
	"github.com/RealToken-Community/yam-transactions-report-generator/internal/store"
	"github.com/RealToken-Community/yam-transactions-report-generator/internal/subgraph"
)

// restartBackoff is how long the supervisor waits before restarting the
// loop after an IntegrityError, per spec.md §7's "supervisor restarts
// after backoff" disposition.
const restartBackoff = 30 * time.Second

func main() {
	var configPath string
	var debugLog bool

	root := &cobra.Command{
		Use:   "indexer",
		Short: "Index YAM marketplace events into a local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, debugLog)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to the JSON config file")
	root.Flags().BoolVar(&debugLog, "debug", false, "enable debug-level logging")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, debugLog bool) error {
	logger, err := logging.New(debugLog)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer st.Close()

	pool, err := rpcpool.New(cfg.W3URLs, cfg.ContractAddress(), logger)
	if err != nil {
		logger.Fatal("build rpc pool", zap.Error(err))
	}
	defer pool.Close()

	sg := subgraph.New(cfg.SubgraphURL, cfg.TheGraphAPIKey, logger)

	loop := indexerloop.New(st, pool, sg, cfg.GenesisBlock, logger)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := loop.Init(ctx); err != nil {
			logger.Error("loop initialization failed", zap.Error(err))
			if !sleepOrDone(ctx, restartBackoff) {
				return nil
			}
			continue
		}

		err := loop.Run(ctx)
		if err == nil || err == context.Canceled {
			return nil
		}

		logger.Error("indexing loop aborted, restarting after backoff", zap.Error(err))
		if !sleepOrDone(ctx, restartBackoff) {
			return nil
		}
	}
}

// sleepOrDone waits d unless ctx is cancelled first; it reports whether the
// wait completed normally (false means the caller should stop).
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
