package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/pos-checkout/internal/adapter/storage"
	"github.com/rl1809/pos-checkout/internal/config"
	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/core/service"
	"github.com/rl1809/pos-checkout/internal/port"
)

const (
	initialStock  = 20
	totalRequests = 50
)

type stressStore interface {
	port.DataStore
	port.StockDecrementer
}

func main() {
	ctx := context.Background()
	cfg := config.Load()

	store, productID := openStore(ctx, cfg)

	orderService := service.NewOrderService(store, nil, service.Options{
		TaxRateBP:   &cfg.TaxRateBP,
		Idempotency: storage.NewMemoryIdempotency(),
		Sequence:    storage.NewMemorySequence(),
	})

	// Counters
	var cleanCount, shortCount, failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			res, err := orderService.Checkout(ctx, domain.CheckoutRequest{
				RequestID: fmt.Sprintf("stress-%d", n),
				Lines:     []domain.CartLine{{ProductID: productID, ProductName: "stress item", Quantity: 1, UnitPrice: 9.99}},
			})
			switch {
			case err != nil:
				failCount.Add(1)
			case res.FullSuccess():
				cleanCount.Add(1)
			default:
				shortCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	rows, err := store.Select(ctx, domain.CollectionProducts, port.Query{Filter: map[string]any{domain.ColumnID: productID}})
	if err != nil || len(rows) == 0 {
		log.Fatalf("failed to read final stock: %v", err)
	}
	finalStock, _ := rows[0].Int(domain.ColumnStockQuantity)

	fmt.Println("=== Stress Test Results ===")
	fmt.Printf("Store:           %s\n", cfg.StoreDriver)
	fmt.Printf("Total requests:  %d\n", totalRequests)
	fmt.Printf("Initial stock:   %d\n", initialStock)
	fmt.Printf("Covered sales:   %d\n", cleanCount.Load())
	fmt.Printf("Over-sold sales: %d\n", shortCount.Load())
	fmt.Printf("Failed:          %d\n", failCount.Load())
	fmt.Printf("Final stock:     %d\n", finalStock)
	fmt.Printf("Elapsed:         %v\n", elapsed)
	fmt.Println()

	if cleanCount.Load() == int32(initialStock) && finalStock == 0 && failCount.Load() == 0 {
		fmt.Println("PASS: every unit was decremented exactly once")
	} else {
		fmt.Printf("FAIL: expected %d covered sales and stock 0\n", initialStock)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (stressStore, string) {
	if cfg.StoreDriver == config.DriverMySQL {
		db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.Migrate(ctx); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		productID := uuid.NewString()
		if _, err := adapter.Insert(ctx, domain.CollectionProducts, []port.Record{{
			domain.ColumnID: productID, "name": "stress item", domain.ColumnStockQuantity: initialStock,
		}}); err != nil {
			log.Fatalf("failed to seed product: %v", err)
		}
		return adapter, productID
	}

	store := storage.NewMemoryStore()
	store.Seed(domain.CollectionProducts, port.Record{domain.ColumnID: "stress-item", domain.ColumnStockQuantity: initialStock})
	return store, "stress-item"
}
