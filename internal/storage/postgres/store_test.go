package postgres

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"sandwichScope/internal/model"
	"sandwichScope/internal/storage"
)

func TestToInt64(t *testing.T) {
	if v, err := toInt64(math.MaxInt64); err != nil || v != math.MaxInt64 {
		t.Fatalf("max int64: %d %v", v, err)
	}
	if _, err := toInt64(math.MaxInt64 + 1); !errors.Is(err, model.ErrNumericOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

// TestStoreRoundTrip runs against a live database when SANDWICH_TEST_PG_DSN is set.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("SANDWICH_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SANDWICH_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	base, err := store.InsertToken(ctx, model.Token{ChainID: "test", Address: "0xAAAA000000000000000000000000000000000001", Symbol: "AAA", Decimals: 18})
	if err != nil {
		t.Fatalf("insert base: %v", err)
	}
	again, err := store.InsertToken(ctx, model.Token{ChainID: "TEST", Address: "0xaaaa000000000000000000000000000000000001", Symbol: "AAA", Decimals: 18})
	if err != nil {
		t.Fatalf("insert base again: %v", err)
	}
	if again.ID != base.ID {
		t.Fatalf("expected existing token id %d, got %d", base.ID, again.ID)
	}
	quote, err := store.InsertToken(ctx, model.Token{ChainID: "test", Address: "0xaaaa000000000000000000000000000000000002", Symbol: "BBB", Decimals: 6})
	if err != nil {
		t.Fatalf("insert quote: %v", err)
	}

	pair, err := store.InsertPair(ctx, model.Pair{ChainID: "test", FactoryAddress: "0xf0", Address: "0xaaaa0000000000000000000000000000000000ff", BaseTokenID: base.ID, QuoteTokenID: quote.ID})
	if err != nil {
		t.Fatalf("insert pair: %v", err)
	}

	r, err := store.InsertRange(ctx, model.ScanRange{PairID: pair.ID, LowerBound: 100, UpperBound: 200})
	if err != nil {
		t.Fatalf("insert range: %v", err)
	}
	if err := store.CompleteRange(ctx, r.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.FailRange(ctx, r.ID); !errors.Is(err, storage.ErrRangeFinalized) {
		t.Fatalf("expected finalized, got %v", err)
	}

	id, err := store.InsertSandwich(ctx, pair.ID, 150)
	if err != nil {
		t.Fatalf("insert sandwich: %v", err)
	}
	for i, role := range []model.LegRole{model.RoleFrontrun, model.RoleLunchmeat, model.RoleBackrun} {
		if _, err := store.InsertLeg(ctx, model.TransactionLeg{SandwichID: id, Role: role, Position: i, TxHash: "0x01", TxIndex: uint64(i)}); err != nil {
			t.Fatalf("insert leg: %v", err)
		}
	}
	got, err := store.SandwichesInRange(ctx, pair.ID, 100, 200)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) == 0 || len(got[len(got)-1].Lunchmeat) != 1 {
		t.Fatalf("unexpected sandwiches: %+v", got)
	}
}
