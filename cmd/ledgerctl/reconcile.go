package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"syntra-ledger/internal/database/models"
	"syntra-ledger/internal/ledger"
	"syntra-ledger/internal/ledger/stock"
	"syntra-ledger/internal/store/postgres"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Check every product's stock counter against its movements",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDB()
			if err != nil {
				return err
			}

			var ids []int64
			if err := db.Model(&models.Product{}).Order("id").Pluck("id", &ids).Error; err != nil {
				return err
			}

			store := postgres.New(db)
			drifted := 0
			for _, id := range ids {
				err := stock.Reconcile(cmd.Context(), store, id)
				var drift *ledger.DriftError
				switch {
				case errors.As(err, &drift):
					drifted++
					slog.Warn("stock drift", "product_id", drift.ProductID,
						"current_stock", drift.CurrentStock, "ledger_sum", drift.LedgerSum)
				case err != nil:
					return err
				}
			}
			slog.Info("reconciliation finished", "products", len(ids), "drifted", drifted)
			if drifted > 0 {
				return fmt.Errorf("%d products drifted", drifted)
			}
			return nil
		},
	}
}
