package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kunalsinghdadhwal/zephyr-proof/internal/zephyr-proof/log"
	zephyrproof "github.com/kunalsinghdadhwal/zephyr-proof/pkg/zephyr-proof"
)

const defaultRPCURL = "http://localhost:8545"

// options are the flags shared by every command
type options struct {
	k          int
	threads    int
	queries    int
	noParallel bool
	logLevel   string
	jsonLogs   bool
}

func (o *options) config() *zephyrproof.Config {
	return zephyrproof.DefaultConfig().
		WithK(o.k).
		WithThreads(o.threads).
		WithParallel(!o.noParallel).
		WithNumQueries(o.queries)
}

func (o *options) setupLogging() error {
	level, err := log.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}
	if o.jsonLogs {
		log.SetDefault(log.NewJSON(os.Stderr, level))
	} else {
		log.SetDefault(log.NewText(os.Stderr, level))
	}
	return nil
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	defaults := zephyrproof.DefaultConfig()

	root := &cobra.Command{
		Use:           "zephyr-prover",
		Short:         "Prove and verify EVM execution traces",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setupLogging()
		},
	}

	flags := root.PersistentFlags()
	flags.IntVar(&opts.k, "k", defaults.K, "circuit size exponent; every chunk has 2^k rows")
	flags.IntVar(&opts.threads, "threads", 0, "prover worker threads (0 = GOMAXPROCS)")
	flags.IntVar(&opts.queries, "queries", defaults.NumQueries, "rows sampled per chunk proof")
	flags.BoolVar(&opts.noParallel, "no-parallel", false, "prove chunks one at a time")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.jsonLogs, "json-logs", false, "write logs as JSON")

	root.AddCommand(
		newProveCommand(opts),
		newVerifyCommand(opts),
		newSimulateCommand(opts),
		newFetchCommand(),
	)
	return root
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// loadTrace reads the trace file, or fetches txHash when no file is given
func loadTrace(ctx context.Context, path, txHash, rpcURL string) (*zephyrproof.Trace, error) {
	if path != "" {
		return zephyrproof.ReadTraceFile(path)
	}
	if txHash == "" {
		return nil, fmt.Errorf("either --trace or --tx-hash is required")
	}
	logStderr(fmt.Sprintf("Fetching trace of %s from %s...", txHash, rpcURL))
	return zephyrproof.Fetch(ctx, rpcURL, txHash)
}

func newProveCommand(opts *options) *cobra.Command {
	var tracePath, outPath, txHash, rpcURL string

	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Generate a proof artifact for a trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			tr, err := loadTrace(ctx, tracePath, txHash, rpcURL)
			if err != nil {
				return err
			}

			config := opts.config()
			if txHash != "" {
				config = config.WithTransaction(txHash, tr.BlockNumber)
			}
			prover, err := zephyrproof.NewProver(config)
			if err != nil {
				return err
			}

			logStderr(fmt.Sprintf("Proving %d steps at k=%d...", tr.Len(), config.K))
			artifact, err := prover.Prove(ctx, tr)
			if err != nil {
				return err
			}
			if err := artifact.WriteFile(outPath); err != nil {
				return err
			}
			logStderr(fmt.Sprintf("Proof written to %s (%d chunks, gas used %d, vk %s)",
				outPath, artifact.Metadata.Chunks, artifact.Metadata.GasUsed, artifact.VKHash))
			return nil
		},
	}

	cmd.Flags().StringVar(&tracePath, "trace", "", "trace JSON file")
	cmd.Flags().StringVar(&outPath, "out", "proof.json", "output proof artifact")
	cmd.Flags().StringVar(&txHash, "tx-hash", "", "transaction hash; fetched over RPC when --trace is not set")
	cmd.Flags().StringVar(&rpcURL, "rpc-url", defaultRPCURL, "node JSON-RPC endpoint")
	return cmd
}

func newVerifyCommand(opts *options) *cobra.Command {
	var proofPath string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a proof artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			artifact, err := zephyrproof.ReadArtifactFile(proofPath)
			if err != nil {
				return err
			}
			verifier, err := zephyrproof.NewVerifier(opts.config())
			if err != nil {
				return err
			}

			ok, err := verifier.Verify(ctx, artifact)
			if !ok {
				if err == nil {
					err = fmt.Errorf("proof rejected")
				}
				return err
			}
			logStderr(fmt.Sprintf("Proof valid: %d steps in %d chunks", artifact.NumSteps, artifact.Metadata.Chunks))
			return nil
		},
	}

	cmd.Flags().StringVar(&proofPath, "proof", "proof.json", "proof artifact to verify")
	return cmd
}

func newSimulateCommand(opts *options) *cobra.Command {
	var tracePath string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Validate a trace and report what proving it would cover",
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := zephyrproof.ReadTraceFile(tracePath)
			if err != nil {
				return err
			}
			report, err := zephyrproof.Simulate(tr, opts.k)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVar(&tracePath, "trace", "", "trace JSON file")
	_ = cmd.MarkFlagRequired("trace")
	return cmd
}

func newFetchCommand() *cobra.Command {
	var txHash, rpcURL, outPath string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a transaction trace with debug_traceTransaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			tr, err := zephyrproof.Fetch(ctx, rpcURL, txHash)
			if err != nil {
				return err
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := zephyrproof.WriteTrace(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			logStderr(fmt.Sprintf("Trace of %d steps written to %s", tr.Len(), outPath))
			return nil
		},
	}

	cmd.Flags().StringVar(&txHash, "tx-hash", "", "transaction hash")
	cmd.Flags().StringVar(&rpcURL, "rpc-url", defaultRPCURL, "node JSON-RPC endpoint")
	cmd.Flags().StringVar(&outPath, "out", "trace.json", "output trace file")
	_ = cmd.MarkFlagRequired("tx-hash")
	return cmd
}
