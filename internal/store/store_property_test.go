package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"tradeguard/internal/models"
)

// Property: for any set of positions, writing the positions record and reading
// it back yields the same symbols, quantities and prices on every adapter.
func TestProperty_PositionsRecordRoundTrip(t *testing.T) {
	stores := adapters(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"AAPL", "TSLA", "MSFT", "NVDA", "AMZN", "META", "GOOG", "AMD"}

	properties.Property("positions survive a write/read cycle", prop.ForAll(
		func(count int, qty int, cents int64, openCents int64) bool {
			ctx := context.Background()

			book := models.Book{MarketOpenValue: decimal.New(openCents, -2), LastResetDate: "2024-01-02"}
			for i := 0; i < count; i++ {
				q := qty + i
				if q == 0 {
					q = 1
				}
				if i%2 == 1 {
					q = -q
				}
				book.Positions = append(book.Positions, models.Position{
					Symbol:       symbols[i%len(symbols)],
					Quantity:     q,
					AverageCost:  decimal.New(cents+int64(i), -2),
					CurrentPrice: decimal.New(cents*2+int64(i), -2),
				})
			}

			for name, s := range stores {
				if err := s.Write(ctx, CollectionPositions, book); err != nil {
					t.Logf("%s: write failed: %v", name, err)
					return false
				}
				var got models.Book
				found, err := s.Read(ctx, CollectionPositions, &got)
				if err != nil || !found {
					t.Logf("%s: read failed: found=%v err=%v", name, found, err)
					return false
				}
				if err := sameBook(book, got); err != nil {
					t.Logf("%s: %v", name, err)
					return false
				}
			}
			return true
		},
		gen.IntRange(0, len(symbols)),
		gen.IntRange(1, 10000),
		gen.Int64Range(1, 10_000_000),
		gen.Int64Range(0, 100_000_000),
	))

	properties.TestingRun(t)
}

func sameBook(want, got models.Book) error {
	if len(want.Positions) != len(got.Positions) {
		return fmt.Errorf("position count: want %d, got %d", len(want.Positions), len(got.Positions))
	}
	for i := range want.Positions {
		w, g := want.Positions[i], got.Positions[i]
		if w.Symbol != g.Symbol || w.Quantity != g.Quantity ||
			!w.AverageCost.Equal(g.AverageCost) || !w.CurrentPrice.Equal(g.CurrentPrice) {
			return fmt.Errorf("position %d: want %+v, got %+v", i, w, g)
		}
	}
	if !want.MarketOpenValue.Equal(got.MarketOpenValue) || want.LastResetDate != got.LastResetDate {
		return fmt.Errorf("header mismatch: want %s/%s, got %s/%s",
			want.MarketOpenValue, want.LastResetDate, got.MarketOpenValue, got.LastResetDate)
	}
	return nil
}
