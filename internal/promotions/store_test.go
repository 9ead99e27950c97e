package promotions

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-grocery-orderflow/internal/aws"
	"github.com/imrishuroy/go-grocery-orderflow/internal/dynamotest"
)

func newTestStore() (*Store, *dynamotest.Fake) {
	fake := dynamotest.New()
	fake.CreateTable("promotions", "code", "")
	return NewStore(fake, "promotions"), fake
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "SAVE10", Normalize("  save10 "))
	assert.Equal(t, "", Normalize("   "))
}

func TestSaveAndLookup(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	until := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	limit := decimal.RequireFromString("2.00")

	require.NoError(t, s.Save(ctx, Promotion{
		Code:              "save10",
		DiscountType:      DiscountPercentage,
		DiscountValue:     decimal.NewFromInt(10),
		MinOrderAmount:    decimal.RequireFromString("15.50"),
		MaxDiscountAmount: &limit,
		IsActive:          true,
		ValidUntil:        &until,
	}))

	p, err := s.Lookup(ctx, " Save10")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "SAVE10", p.Code)
	assert.Equal(t, DiscountPercentage, p.DiscountType)
	assert.True(t, p.DiscountValue.Equal(decimal.NewFromInt(10)))
	assert.True(t, p.MinOrderAmount.Equal(decimal.RequireFromString("15.5")))
	require.NotNil(t, p.MaxDiscountAmount)
	assert.True(t, p.MaxDiscountAmount.Equal(limit))
	require.NotNil(t, p.ValidUntil)
	assert.True(t, p.ValidUntil.Equal(until))
	assert.False(t, p.Expired(until))
	assert.True(t, p.Expired(until.Add(time.Second)))
}

func TestLookupMissing(t *testing.T) {
	s, _ := newTestStore()

	p, err := s.Lookup(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = s.Lookup(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestIncrementUsage(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, Promotion{Code: "FLAT5", DiscountType: DiscountFixed, DiscountValue: decimal.NewFromInt(5), IsActive: true}))

	for i := 0; i < 2; i++ {
		tx := aws.NewTx()
		tx.Add(s.IncrementUsage("flat5"))
		require.NoError(t, tx.Commit(ctx, fake))
	}
	p, err := s.Lookup(ctx, "FLAT5")
	require.NoError(t, err)
	assert.Equal(t, 2, p.UsedCount)

	tx := aws.NewTx()
	tx.Add(s.IncrementUsage("GONE"))
	err = tx.Commit(ctx, fake)
	var tce *aws.TxCanceledError
	require.ErrorAs(t, err, &tce)
	f, ok := tce.FirstOfKind(TxKindUsage)
	require.True(t, ok)
	assert.Equal(t, "GONE", f.Key)
	assert.Equal(t, aws.ReasonConditionalCheck, f.Code)
}

func TestIncrementUsageRejectsDeactivatedCode(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()
	promo := Promotion{Code: "SPRING", DiscountType: DiscountPercentage, DiscountValue: decimal.NewFromInt(10), IsActive: true}
	require.NoError(t, s.Save(ctx, promo))

	promo.IsActive = false
	require.NoError(t, s.Save(ctx, promo))

	tx := aws.NewTx()
	tx.Add(s.IncrementUsage("spring"))
	err := tx.Commit(ctx, fake)
	var tce *aws.TxCanceledError
	require.ErrorAs(t, err, &tce)
	f, ok := tce.FirstOfKind(TxKindUsage)
	require.True(t, ok)
	assert.Equal(t, aws.ReasonConditionalCheck, f.Code)

	p, err := s.Lookup(ctx, "SPRING")
	require.NoError(t, err)
	assert.Equal(t, 0, p.UsedCount)
}
