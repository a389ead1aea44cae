// Command salespop runs the live sales notification widget and its feed.
//
// Usage:
//
//	salespop serve --config ./salespop.yaml
//	salespop watch --config ./salespop.yaml
//	salespop synth --count 5 --mode real_products --prices 15,30
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mishka20003-proger/live-sales-notifications/internal/app"
	"github.com/mishka20003-proger/live-sales-notifications/internal/synth"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
	"github.com/mishka20003-proger/live-sales-notifications/pkg/systemd"
)

const stopTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load(".env")

	defaultCfg := os.Getenv("SALESPOP_CONFIG")
	if defaultCfg == "" {
		defaultCfg = "./salespop.yaml"
	}

	var cfgPath string
	root := &cobra.Command{
		Use:           "salespop",
		Short:         "Live \"someone just purchased\" notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", defaultCfg, "path to config (yaml or json)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve widget settings, recent orders and the order webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath, (*app.App).StartServe)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Poll a feed and display notifications like the storefront widget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath, (*app.App).StartWatch)
		},
	})
	root.AddCommand(synthCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

// run starts one mode and blocks until a signal or a fatal task error.
func run(cfgPath string, start func(*app.App, context.Context) error) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	a, err := app.New(cfgPath)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := start(a, ctx); err != nil {
		return err
	}

	if _, err := systemd.Ready(); err != nil {
		a.Logger().Warn("sd_notify ready failed", logx.Err(err))
	}
	go systemd.Watchdog(ctx, a.Logger())

	reason := app.StopUnknown
	select {
	case sig := <-sigs:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}
	_, _ = systemd.Stopping()
	cancel()

	sctx, scancel := context.WithTimeout(context.Background(), stopTimeout)
	defer scancel()
	stopErr := a.Stop(sctx, reason)
	if err := a.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return stopErr
}

func synthCmd() *cobra.Command {
	var (
		shop     string
		count    int
		mode     string
		minPrice string
		maxPrice string
		prices   []string
		seed     uint64
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Print synthesized demo orders as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := synth.ParseMode(mode)
			if err != nil {
				return err
			}
			opts := synth.Options{Mode: m}
			if opts.Min, err = decimal.NewFromString(minPrice); err != nil {
				return fmt.Errorf("--min: %w", err)
			}
			if opts.Max, err = decimal.NewFromString(maxPrice); err != nil {
				return fmt.Errorf("--max: %w", err)
			}
			for _, p := range prices {
				d, err := decimal.NewFromString(p)
				if err != nil {
					return fmt.Errorf("--prices %q: %w", p, err)
				}
				opts.ProductPrices = append(opts.ProductPrices, d)
			}

			gen := synth.NewGenerator(nil, nil)
			if seed != 0 {
				gen = synth.Seeded(seed, nil)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for range count {
				ev, err := gen.Order(shop, opts)
				if err != nil {
					return err
				}
				if err := enc.Encode(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&shop, "shop", "demo.example.com", "shop domain stamped on each order")
	cmd.Flags().IntVar(&count, "count", 5, "number of orders")
	cmd.Flags().StringVar(&mode, "mode", string(synth.ModeRandom), "price mode: random or real_products")
	cmd.Flags().StringVar(&minPrice, "min", "10", "minimum price (random mode)")
	cmd.Flags().StringVar(&maxPrice, "max", "200", "maximum price (random mode)")
	cmd.Flags().StringSliceVar(&prices, "prices", nil, "product prices (real_products mode)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed; 0 picks one")
	return cmd
}
