// Command ledgerctl runs one-shot maintenance against the configured store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"hris/internal/app/server"
	"hris/internal/domain/auth"
	"hris/internal/domain/finance"
	"hris/internal/domain/payroll"
	"hris/internal/platform/config"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  repair-installments [-dry-run]              recompute stale installment amounts
  normalize-currency -currency CODE [-collection NAME]
                                              rewrite currency codes
  hash-api-key -key KEY                       print the bcrypt hash for PAYROLL_API_KEY_HASH
`

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "repair-installments":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		dryRun := fs.Bool("dry-run", false, "report without writing")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return withServices(ctx, cfg, func(fin *finance.Service, _ *payroll.Service) error {
			var report finance.RepairReport
			var err error
			if *dryRun {
				report, err = fin.PreviewInstallmentRepair(ctx)
			} else {
				report, err = fin.RepairInstallments(ctx)
			}
			if err != nil {
				return err
			}
			return writeJSON(out, report)
		})
	case "normalize-currency":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		currency := fs.String("currency", cfg.DefaultCurrency, "target ISO currency code")
		collection := fs.String("collection", "", "financial_requests or payroll_records; empty means both")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		target := strings.ToLower(strings.TrimSpace(*collection))
		if target != "" && target != finance.CollectionFinancialRequests && target != payroll.CollectionPayrollRecords {
			return fmt.Errorf("unknown collection %q", *collection)
		}
		return withServices(ctx, cfg, func(fin *finance.Service, pay *payroll.Service) error {
			var reports []finance.NormalizeReport
			if target == "" || target == finance.CollectionFinancialRequests {
				report, err := fin.NormalizeCurrency(ctx, *currency)
				if err != nil {
					return err
				}
				reports = append(reports, report)
			}
			if target == "" || target == payroll.CollectionPayrollRecords {
				report, err := pay.NormalizeCurrency(ctx, *currency)
				if err != nil {
					return err
				}
				reports = append(reports, report)
			}
			return writeJSON(out, reports)
		})
	case "hash-api-key":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		key := fs.String("key", "", "api key to hash")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		hash, err := auth.HashAPIKey(*key)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, hash)
		return err
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func withServices(ctx context.Context, cfg config.Config, fn func(*finance.Service, *payroll.Service) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	stores, err := server.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()
	locker, closeLocker, err := server.NewLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	fin := finance.NewService(stores.Finance, locker)
	return fn(fin, payroll.NewService(stores.Payroll, fin, locker))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
