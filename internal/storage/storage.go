package storage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"liquidationScope/internal/model"
)

// Journal records grouped opportunities and settlement outcomes.
type Journal interface {
	WriteOpportunities(ctx context.Context, batches []model.BatchOpportunity) error
	WriteSettlements(ctx context.Context, records []model.SettlementRecord) error
}

// PositionSink persists snapshots of the monitored positions. Each save
// replaces the stored set, so closed positions disappear.
type PositionSink interface {
	SavePositions(ctx context.Context, positions []model.Position) error
}

// PositionStore is a PositionSink that can hand the saved users back after a restart.
type PositionStore interface {
	PositionSink
	MonitoredUsers(ctx context.Context) ([]common.Address, error)
}

// MultiJournal writes to every journal and joins their errors.
type MultiJournal []Journal

func (m MultiJournal) WriteOpportunities(ctx context.Context, batches []model.BatchOpportunity) error {
	var errs []error
	for _, j := range m {
		if err := j.WriteOpportunities(ctx, batches); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiJournal) WriteSettlements(ctx context.Context, records []model.SettlementRecord) error {
	var errs []error
	for _, j := range m {
		if err := j.WriteSettlements(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
