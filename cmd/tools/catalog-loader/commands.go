package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"credit-workers/internal/common/config"
	"credit-workers/internal/common/logger"
	ipc "credit-workers/internal/workers/catalog/index-product-catalog"

	"github.com/spf13/cobra"
)

const app = "catalog-loader"

type options struct {
	apiURL     string
	configFile string
	timeout    time.Duration
	batchSize  int
	debug      bool
}

// sinkFactory is swapped in tests.
type sinkFactory func(ctx context.Context, opts *options, withDatabase bool) (catalogSink, error)

func newRootCmd() *cobra.Command {
	return newRootCmdWithSink(defaultSink)
}

func newRootCmdWithSink(newSink sinkFactory) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          app,
		Short:        "Loads membership tiers and credit products into the vector index",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", "", "worker-manager base URL; when empty the catalog is indexed in-process")
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file for in-process mode (default is configs/config.yaml)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall timeout")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "verbose/debug output")

	load := &cobra.Command{
		Use:   "load FILE",
		Short: "Index the ranks and products of a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := LoadSeed(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			sink, err := newSink(ctx, opts, false)
			if err != nil {
				return err
			}
			defer sink.Close()

			return loadSeed(ctx, cmd.OutOrStdout(), sink, seed, opts.batchSize)
		},
	}
	load.Flags().IntVar(&opts.batchSize, "batch-size", 50, "ranks per batch request")

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Re-index every active product stored in the credit_products table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			sink, err := newSink(ctx, opts, true)
			if err != nil {
				return err
			}
			defer sink.Close()

			out, err := sink.LoadProducts(ctx, &ipc.Input{SyncFromDatabase: true})
			if err != nil {
				return err
			}
			printProducts(cmd.OutOrStdout(), out)
			return nil
		},
	}

	root.AddCommand(load, sync)
	return root
}

func defaultSink(ctx context.Context, opts *options, withDatabase bool) (catalogSink, error) {
	if opts.apiURL != "" {
		return newAPISink(opts.apiURL, opts.timeout), nil
	}

	var (
		cfg *config.Config
		err error
	)
	if opts.configFile != "" {
		cfg, err = config.LoadFromFile(opts.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.debug {
		level = "debug"
	}
	log := logger.NewZapAdapter(logger.New(level, "console", "stderr"))
	return newDirectSink(ctx, cfg, withDatabase, log)
}

func loadSeed(ctx context.Context, w io.Writer, sink catalogSink, seed *SeedFile, batchSize int) error {
	if len(seed.Ranks) == 0 && len(seed.Products) == 0 {
		return fmt.Errorf("seed file holds no ranks and no products")
	}

	var failed int
	for i, batch := range chunk(seed.Ranks, batchSize) {
		out, err := sink.LoadRanks(ctx, batch)
		if err != nil {
			return fmt.Errorf("rank batch %d: %w", i+1, err)
		}
		fmt.Fprintf(w, "ranks: %s\n", out.Message)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  - %s: %s\n", e.ID, e.Message)
		}
		failed += out.FailedRanks
	}

	if len(seed.Products) > 0 {
		out, err := sink.LoadProducts(ctx, &ipc.Input{Products: seed.ProductEntries()})
		if err != nil {
			return fmt.Errorf("products: %w", err)
		}
		printProducts(w, out)
		failed += out.FailedProducts
	}

	if failed > 0 {
		return fmt.Errorf("%d catalog entries failed to index", failed)
	}
	return nil
}

func printProducts(w io.Writer, out *ipc.Output) {
	fmt.Fprintf(w, "products: %s\n", out.Message)
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  - %s: %s\n", e.ID, e.Message)
	}
}
