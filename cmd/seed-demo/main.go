// seed-demo migrates the schema and loads a small demo dataset: batch number
// configs, a couple of materials, a received raw-material batch and an order
// line with a two-step routing.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-demo
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const seedActor = "seed-demo"

func main() {
	_ = godotenv.Load()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserNameInContext(ctx, seedActor)

	if _, err := models.CreateBatchNumberConfig(ctx, &models.NewBatchNumberConfig{
		Name:           "Raw material receipts",
		Prefix:         "RM",
		OperationType:  utils.NewString("RECEIVING"),
		SequenceLength: 3,
		IncludeDate:    true,
		ResetFrequency: models.SequenceResetDaily,
		Actor:          seedActor,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed RM config: %v\n", err)
		os.Exit(1)
	}
	if _, err := models.CreateBatchNumberConfig(ctx, &models.NewBatchNumberConfig{
		Name:           "Production output default",
		Prefix:         "BAT",
		SequenceLength: 4,
		IncludeDate:    true,
		ResetFrequency: models.SequenceResetDaily,
		Actor:          seedActor,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed BAT config: %v\n", err)
		os.Exit(1)
	}

	iron, err := models.CreateMaterial(ctx, &models.NewMaterial{Code: "IRON", Name: "Iron ingot", Unit: "KG"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed material IRON: %v\n", err)
		os.Exit(1)
	}
	plate, err := models.CreateMaterial(ctx, &models.NewMaterial{Code: "PLATE", Name: "Steel plate", Unit: "PC"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed material PLATE: %v\n", err)
		os.Exit(1)
	}

	received, err := models.ReceiveRawMaterialBatch(ctx, &models.NewRawMaterialReceipt{
		MaterialId:  iron.ID,
		Quantity:    decimal.RequireFromString("500.00"),
		SupplierLot: utils.NewString("LOT-A17"),
		Actor:       seedActor,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed raw material batch: %v\n", err)
		os.Exit(1)
	}

	line, err := models.CreateOrderLine(ctx, &models.NewOrderLine{
		OrderNo:    "MO-1001",
		LineNo:     1,
		MaterialId: plate.ID,
		Quantity:   decimal.RequireFromString("100"),
		Unit:       "PC",
		Actor:      seedActor,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed order line: %v\n", err)
		os.Exit(1)
	}

	process, err := models.CreateProductionProcess(ctx, &models.CreateProductionProcessInput{
		OrderLineId: line.ID,
		ProductSku:  utils.NewString("PLATE-STD"),
		Operations: []models.OperationStep{
			{SequenceNo: 10, OperationCode: "CUT", Name: "Cutting", TargetQty: decimal.RequireFromString("100")},
			{SequenceNo: 20, OperationCode: "WLD", Name: "Welding", TargetQty: decimal.RequireFromString("100")},
		},
		Actor: seedActor,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed production process: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded demo data: batch %s, order %s line %d, process %d with %d operations\n",
		received.BatchNumber, line.OrderNo, line.LineNo, process.Process.ID, len(process.Operations))
}
