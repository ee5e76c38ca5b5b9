package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reconciliation-service/internal/config"
	"reconciliation-service/internal/repository"
	"reconciliation-service/internal/server"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			db, err := config.ConnectDB(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := repository.Migrate(cmd.Context(), db, logger); err != nil {
				return err
			}
			fmt.Println("Migrations applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the fixed ledger accounts and fee balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, deps *server.Deps) error {
				created, err := deps.Seeder.Seed(ctx)
				if err != nil {
					return err
				}
				return printResult(map[string]int{"created": created},
					fmt.Sprintf("Seeded %d ledger account(s)", created))
			})
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile every pending or retryable failed transaction once",
		Long: `Run one reconciliation sweep in this process.

The sweep scans completed transactions whose reconciliation is pending, or
failed with a retryable error, and reconciles each one. Failures are
reported and never stop the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, deps *server.Deps) error {
				report, err := deps.Reconciliation.Sweep(ctx)
				if report == nil {
					return err
				}

				var b strings.Builder
				fmt.Fprintf(&b, "Processed: %d  Succeeded: %d  Skipped: %d  Failed: %d",
					report.Processed, report.Succeeded, report.Skipped, report.Failed)
				for _, f := range report.Failures {
					fmt.Fprintf(&b, "\n  %s  retryable=%t  %s", f.TransactionID, f.Retryable, f.Error)
				}
				if perr := printResult(report, b.String()); perr != nil {
					return perr
				}
				return err
			})
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [transaction-id]",
		Short: "Reconcile a single transaction now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, deps *server.Deps) error {
				result, err := deps.Reconciliation.ReconcileOne(ctx, args[0])
				if err != nil {
					return err
				}
				text := fmt.Sprintf("Transaction %s reconciled", args[0])
				if result.AlreadyDone {
					text = fmt.Sprintf("Transaction %s was already reconciled", args[0])
				}
				return printResult(result, text)
			})
		},
	}
}

func requeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue [transaction-id]",
		Short: "Move a failed transaction back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, deps *server.Deps) error {
				if err := deps.Reconciliation.Requeue(ctx, args[0]); err != nil {
					return err
				}
				return printResult(map[string]string{"transaction_id": args[0], "reconciliation_status": "pending"},
					fmt.Sprintf("Transaction %s requeued", args[0]))
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [transaction-id]",
		Short: "Show the reconciliation state of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, func(ctx context.Context, deps *server.Deps) error {
				txn, err := deps.Reconciliation.GetStatus(ctx, args[0])
				if err != nil {
					return err
				}
				text := fmt.Sprintf("%s  status=%s  reconciliation=%s  attempts=%d",
					txn.ID, txn.Status, txn.ReconciliationStatus, txn.ReconciliationAttempts)
				if txn.ReconciliationError != nil {
					text += fmt.Sprintf("\n  error: %s (retryable=%t)", *txn.ReconciliationError, txn.ReconciliationRetryable)
				}
				return printResult(txn, text)
			})
		},
	}
}

func balanceCmd() *cobra.Command {
	var merchantID, locationID string

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a merchant balance, or the fee balances with --fees",
		RunE: func(cmd *cobra.Command, args []string) error {
			fees, _ := cmd.Flags().GetBool("fees")
			return withDeps(cmd, func(ctx context.Context, deps *server.Deps) error {
				if fees {
					view, err := deps.Balances.GetFeeBalances(ctx)
					if err != nil {
						return err
					}
					return printResult(view, fmt.Sprintf("Processor fees: %s\nPlatform fees:  %s",
						view.Processor, view.Platform))
				}

				view, err := deps.Balances.GetMerchantBalance(ctx, merchantID, locationID)
				if err != nil {
					return err
				}
				return printResult(view, fmt.Sprintf("%s/%s  balance=%s  on_hold=%s",
					view.MerchantID, view.LocationID, view.CurrentBalance, view.FundsOnHold))
			})
		},
	}

	cmd.Flags().StringVarP(&merchantID, "merchant", "m", "", "merchant id")
	cmd.Flags().StringVarP(&locationID, "location", "l", "", "location id")
	cmd.Flags().Bool("fees", false, "show processor and platform fee balances")

	return cmd
}
