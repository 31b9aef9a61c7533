package storage

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidationScope/internal/model"
)

func TestJsonlJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")
	journal := NewJsonlJournal(path)
	ctx := context.Background()

	usdc := model.MustAssetID("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	target := model.LiquidationTarget{
		User:           common.HexToAddress("0x01"),
		DebtAsset:      usdc,
		DebtToCover:    big.NewInt(1_000_000),
		ExpectedProfit: 2.5,
		FlashSource:    model.DefaultFlashSource(),
	}
	batch := model.BatchOpportunity{ID: "batch-1", DebtAsset: usdc}
	batch.Add(target)

	require.NoError(t, journal.WriteOpportunities(ctx, []model.BatchOpportunity{batch}))
	require.NoError(t, journal.WriteSettlements(ctx, []model.SettlementRecord{
		{BatchID: "batch-1", Target: target, Status: model.SettlementFailed, Error: "execution reverted"},
	}))
	require.NoError(t, journal.WriteSettlements(ctx, nil))

	entries, err := ReadJournal(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, EntryOpportunity, entries[0].Type)
	require.NotNil(t, entries[0].Opportunity)
	assert.Equal(t, "1000000", entries[0].Opportunity.TotalDebtToCover.String())
	assert.Equal(t, usdc, entries[0].Opportunity.DebtAsset)

	assert.Equal(t, EntrySettlement, entries[1].Type)
	require.NotNil(t, entries[1].Settlement)
	assert.Equal(t, model.SettlementFailed, entries[1].Settlement.Status)
}

type failingJournal struct{}

func (failingJournal) WriteOpportunities(context.Context, []model.BatchOpportunity) error {
	return errors.New("disk full")
}

func (failingJournal) WriteSettlements(context.Context, []model.SettlementRecord) error {
	return errors.New("disk full")
}

func TestMultiJournalWritesAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	multi := MultiJournal{failingJournal{}, NewJsonlJournal(path)}

	err := multi.WriteOpportunities(context.Background(), []model.BatchOpportunity{{ID: "b"}})
	require.Error(t, err)

	entries, err := ReadJournal(path)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
