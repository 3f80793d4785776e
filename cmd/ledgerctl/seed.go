package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"syntra-ledger/internal/database"
	"syntra-ledger/internal/database/models"
	"syntra-ledger/internal/ledger/billing"
	"syntra-ledger/internal/store/postgres"
)

// Catalog is the master data file read by `ledgerctl seed`.
type Catalog struct {
	Products  []CatalogProduct  `yaml:"products"`
	Customers []CatalogCustomer `yaml:"customers"`
}

type CatalogProduct struct {
	Code         string `yaml:"code"`
	Name         string `yaml:"name"`
	UnitPrice    string `yaml:"unit_price"`
	CostPrice    string `yaml:"cost_price"`
	TaxRate      string `yaml:"tax_rate"`
	OpeningStock int64  `yaml:"opening_stock"`
}

type CatalogCustomer struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

func parseCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

func (p CatalogProduct) model() (models.Product, error) {
	var (
		out models.Product
		err error
	)
	if p.Code == "" {
		return out, fmt.Errorf("product without code")
	}
	out.ProductCode = p.Code
	out.ProductName = p.Name
	out.IsActive = true
	if out.UnitPrice, err = decimal.NewFromString(p.UnitPrice); err != nil {
		return out, fmt.Errorf("product %s unit_price: %w", p.Code, err)
	}
	if out.CostPrice, err = decimal.NewFromString(p.CostPrice); err != nil {
		return out, fmt.Errorf("product %s cost_price: %w", p.Code, err)
	}
	if out.TaxRate, err = decimal.NewFromString(p.TaxRate); err != nil {
		return out, fmt.Errorf("product %s tax_rate: %w", p.Code, err)
	}
	if p.OpeningStock < 0 {
		return out, fmt.Errorf("product %s opening_stock is negative", p.Code)
	}
	return out, nil
}

func seedCmd() *cobra.Command {
	var (
		file   string
		userID int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load products and customers, booking opening stock as a receipt",
		Long:  "Load products and customers from a YAML catalog. Rows that already exist are kept, so a\nfailed run can be repeated; opening stock is booked once per product.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			catalog, err := parseCatalog(f)
			if err != nil {
				return err
			}

			db, cfg, err := openDB()
			if err != nil {
				return err
			}
			if err := database.MigrateLedgerDB(db); err != nil {
				return err
			}

			receipt, err := insertMasterData(db, catalog)
			if err != nil {
				return err
			}
			if len(receipt) == 0 {
				return nil
			}

			engine := billing.NewEngine(postgres.New(db), billing.Config{
				Location:   cfg.Ledger.Location(),
				MaxRetries: cfg.Ledger.MaxRetries,
			}, billing.WithLogger(slog.Default()))
			doc, err := engine.ReceiveStock(cmd.Context(), billing.ReceiptRequest{
				Actor:   billing.Actor{UserID: userID, Username: "ledgerctl"},
				Remarks: "opening stock",
				Lines:   receipt,
			})
			if err != nil {
				return fmt.Errorf("book opening stock: %w", err)
			}
			slog.Info("opening stock booked", "document_number", doc.DocumentNumber, "lines", len(doc.Lines))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "catalog.yaml", "Catalog file (YAML)")
	cmd.Flags().Int64Var(&userID, "user-id", 1, "User recorded on the opening stock receipt")
	return cmd
}

// seedPlan is what one seed run still has to write. Rows an earlier run
// already stored are left alone, so a run that failed halfway can be repeated.
type seedPlan struct {
	create    []plannedProduct
	restock   []billing.ReceiptLine
	customers []models.Customer
}

type plannedProduct struct {
	product      models.Product
	openingStock int64
}

// planSeed compares the catalog with the stored rows. stocked holds the
// products that already have stock movements; an existing product without
// any still gets its opening stock.
func planSeed(c *Catalog, existing []models.Product, stocked map[int64]bool, customers []models.Customer) (seedPlan, error) {
	var plan seedPlan

	byCode := make(map[string]models.Product, len(existing))
	for _, p := range existing {
		byCode[p.ProductCode] = p
	}
	seen := make(map[string]bool, len(c.Products))
	for _, cp := range c.Products {
		p, err := cp.model()
		if err != nil {
			return plan, err
		}
		if seen[p.ProductCode] {
			return plan, fmt.Errorf("product %s listed twice", p.ProductCode)
		}
		seen[p.ProductCode] = true

		stored, ok := byCode[p.ProductCode]
		if !ok {
			plan.create = append(plan.create, plannedProduct{product: p, openingStock: cp.OpeningStock})
			continue
		}
		if cp.OpeningStock > 0 && !stocked[stored.ID] {
			plan.restock = append(plan.restock, billing.ReceiptLine{ProductID: stored.ID, Quantity: cp.OpeningStock, UnitCost: stored.CostPrice})
		}
	}

	known := make(map[CatalogCustomer]bool, len(customers)+len(c.Customers))
	for _, cu := range customers {
		known[CatalogCustomer{Name: cu.CustomerName, Phone: cu.Phone}] = true
	}
	for _, cc := range c.Customers {
		if known[cc] {
			continue
		}
		known[cc] = true
		plan.customers = append(plan.customers, models.Customer{CustomerName: cc.Name, Phone: cc.Phone})
	}
	return plan, nil
}

// insertMasterData creates the missing catalog rows in one transaction and
// returns the receipt lines for products still waiting for opening stock.
func insertMasterData(db *gorm.DB, c *Catalog) ([]billing.ReceiptLine, error) {
	codes := make([]string, 0, len(c.Products))
	for _, cp := range c.Products {
		codes = append(codes, cp.Code)
	}
	names := make([]string, 0, len(c.Customers))
	for _, cc := range c.Customers {
		names = append(names, cc.Name)
	}

	var lines []billing.ReceiptLine
	err := db.WithContext(context.Background()).Transaction(func(tx *gorm.DB) error {
		var existing []models.Product
		if len(codes) > 0 {
			if err := tx.Where("product_code IN ?", codes).Find(&existing).Error; err != nil {
				return fmt.Errorf("load products: %w", err)
			}
		}
		stocked := make(map[int64]bool, len(existing))
		if len(existing) > 0 {
			ids := make([]int64, 0, len(existing))
			for _, p := range existing {
				ids = append(ids, p.ID)
			}
			var moved []int64
			if err := tx.Model(&models.StockMovement{}).Where("product_id IN ?", ids).Distinct().Pluck("product_id", &moved).Error; err != nil {
				return fmt.Errorf("load stock movements: %w", err)
			}
			for _, id := range moved {
				stocked[id] = true
			}
		}
		var customers []models.Customer
		if len(names) > 0 {
			if err := tx.Where("customer_name IN ?", names).Find(&customers).Error; err != nil {
				return fmt.Errorf("load customers: %w", err)
			}
		}

		plan, err := planSeed(c, existing, stocked, customers)
		if err != nil {
			return err
		}
		lines = plan.restock
		for _, pp := range plan.create {
			p := pp.product
			if err := tx.Create(&p).Error; err != nil {
				return fmt.Errorf("create product %s: %w", p.ProductCode, err)
			}
			if pp.openingStock > 0 {
				lines = append(lines, billing.ReceiptLine{ProductID: p.ID, Quantity: pp.openingStock, UnitCost: p.CostPrice})
			}
		}
		for i := range plan.customers {
			if err := tx.Create(&plan.customers[i]).Error; err != nil {
				return fmt.Errorf("create customer %s: %w", plan.customers[i].CustomerName, err)
			}
		}
		slog.Info("catalog loaded",
			"products_created", len(plan.create), "products_kept", len(c.Products)-len(plan.create),
			"customers_created", len(plan.customers))
		return nil
	})
	return lines, err
}
