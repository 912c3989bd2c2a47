package models_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

func TestMain(m *testing.M) {
	if err := config.ConnectTestDatabase(); err != nil {
		log.Fatalf("connect test database: %v", err)
	}
	models.MigrateTable()
	os.Exit(m.Run())
}

// resetTables clears all rows between tests. Child tables first so foreign
// references never dangle mid-delete.
func resetTables(t *testing.T) {
	t.Helper()
	db := config.GetDB()
	for _, table := range []string{
		"production_confirmation_outputs",
		"production_confirmation_materials",
		"production_confirmations",
		"holds",
		"operations",
		"production_processes",
		"batch_order_allocations",
		"batch_relations",
		"batches",
		"batch_sequences",
		"batch_number_configs",
		"order_lines",
		"materials",
		"histories",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("reset table %s: %v", table, err)
		}
	}
}

func testContext() context.Context {
	return utils.SetUserNameInContext(context.Background(), "Test")
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}

func seedMaterial(t *testing.T, code string, name string, unit string) *models.Material {
	t.Helper()
	material, err := models.CreateMaterial(testContext(), &models.NewMaterial{Code: code, Name: name, Unit: unit})
	if err != nil {
		t.Fatalf("CreateMaterial %s: %v", code, err)
	}
	return material
}

var seededBatches int

// seedBatch inserts a batch directly, bypassing number generation, so tests can
// arrange exact quantities and statuses.
func seedBatch(t *testing.T, material *models.Material, qty string, status models.BatchStatus) *models.Batch {
	t.Helper()
	seededBatches++
	batch := models.Batch{
		BatchNumber:  fmt.Sprintf("TB-%s-%04d", material.Code, seededBatches),
		MaterialId:   material.ID,
		MaterialCode: material.Code,
		MaterialName: material.Name,
		Quantity:     mustDecimal(t, qty),
		Unit:         material.Unit,
		Status:       status,
		CreatedBy:    "Test",
	}
	if err := config.GetDB().Create(&batch).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return &batch
}

var seededLines int

func seedOrderLine(t *testing.T, material *models.Material, qty string) *models.OrderLine {
	t.Helper()
	seededLines++
	line, err := models.CreateOrderLine(testContext(), &models.NewOrderLine{
		OrderNo:    fmt.Sprintf("MO-%04d", seededLines),
		LineNo:     1,
		MaterialId: material.ID,
		Quantity:   mustDecimal(t, qty),
		Unit:       material.Unit,
		Actor:      "Test",
	})
	if err != nil {
		t.Fatalf("CreateOrderLine: %v", err)
	}
	return line
}

// seedProcess creates a routing with one operation per target quantity, with
// sequence numbers 10, 20, 30...
func seedProcess(t *testing.T, line *models.OrderLine, targets ...string) *models.ProductionProcessDetail {
	t.Helper()
	steps := make([]models.OperationStep, 0, len(targets))
	for i, target := range targets {
		steps = append(steps, models.OperationStep{
			SequenceNo:    (i + 1) * 10,
			OperationCode: fmt.Sprintf("OP%d", i+1),
			Name:          fmt.Sprintf("Step %d", i+1),
			TargetQty:     mustDecimal(t, target),
		})
	}
	detail, err := models.CreateProductionProcess(testContext(), &models.CreateProductionProcessInput{
		OrderLineId: line.ID,
		Operations:  steps,
		Actor:       "Test",
	})
	if err != nil {
		t.Fatalf("CreateProductionProcess: %v", err)
	}
	return detail
}

func assertDecimalEqual(t *testing.T, want string, got decimal.Decimal, label string) {
	t.Helper()
	if !got.Equal(mustDecimal(t, want)) {
		t.Fatalf("%s: want %s, got %s", label, want, got.String())
	}
}
