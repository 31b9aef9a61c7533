// Package tracker maintains the set of monitored borrowers from pool events.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidationScope/internal/chain"
	"liquidationScope/internal/lending"
	"liquidationScope/internal/model"
	"liquidationScope/internal/profit"
	"liquidationScope/internal/rpcpool"
)

// DefaultMinDebtUSD is the admission floor for new borrowers.
const DefaultMinDebtUSD = 50.0

// Observer receives tracker activity.
type Observer interface {
	EventApplied(kind model.EventKind)
	AccountRead(err error)
	Monitored(count int)
}

// Config holds tracker settings.
type Config struct {
	Pool        common.Address
	MinDebtUSD  float64
	Concurrency int
}

// Tracker applies position events to a Registry. Every transition re-reads
// account data from the pool instead of trusting event amounts.
type Tracker struct {
	cfg      Config
	source   chain.Source
	registry *Registry
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

func New(cfg Config, source chain.Source, registry *Registry, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if cfg.MinDebtUSD <= 0 {
		cfg.MinDebtUSD = DefaultMinDebtUSD
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Tracker{
		cfg:      cfg,
		source:   source,
		registry: registry,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithObserver attaches an activity observer.
func (t *Tracker) WithObserver(observer Observer) *Tracker {
	t.observer = observer
	return t
}

// Registry returns the registry the tracker writes to.
func (t *Tracker) Registry() *Registry {
	return t.registry
}

// Run applies events in arrival order until ctx ends or events is closed.
func (t *Tracker) Run(ctx context.Context, events <-chan model.PositionEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := t.Handle(ctx, event); err != nil {
				t.logger.Warn("position event skipped",
					zap.String("kind", string(event.Kind)),
					zap.String("user", event.User.Hex()),
					zap.Uint64("block", event.BlockNumber),
					zap.Error(err),
				)
			}
		}
	}
}

// Handle applies one event.
func (t *Tracker) Handle(ctx context.Context, event model.PositionEvent) error {
	var err error
	switch event.Kind {
	case model.EventBorrow:
		err = t.Admit(ctx, event.User)
	case model.EventRepay, model.EventLiquidationCall:
		err = t.Reevaluate(ctx, event.User)
	default:
		return fmt.Errorf("unsupported event kind %q", event.Kind)
	}
	if err == nil && t.observer != nil {
		t.observer.EventApplied(event.Kind)
	}
	return err
}

// Admit reads the user's account and starts monitoring it if the debt clears
// the admission floor. An already monitored user is refreshed.
func (t *Tracker) Admit(ctx context.Context, user common.Address) error {
	data, err := t.readAccount(ctx, user)
	if err != nil {
		return err
	}
	t.apply(user, data)
	return nil
}

// Reevaluate re-reads a monitored user's account, dropping it once the debt is
// repaid. Unmonitored users are left alone; only a Borrow admits.
func (t *Tracker) Reevaluate(ctx context.Context, user common.Address) error {
	if !t.registry.Contains(user) {
		return nil
	}
	data, err := t.readAccount(ctx, user)
	if err != nil {
		return err
	}
	t.apply(user, data)
	return nil
}

// Refresh re-reads users through the bounded runner and returns how many
// reads succeeded. Failed reads leave the previous position in place.
func (t *Tracker) Refresh(ctx context.Context, users []common.Address) (int, error) {
	ok, failed, lastErr := t.readMany(ctx, users)
	if ok == 0 && len(failed) > 0 {
		return 0, fmt.Errorf("read %d accounts: %w", len(users), lastErr)
	}
	return ok, nil
}

// SeedResult reports which users a seeding pass could not read.
type SeedResult struct {
	Read   int
	Failed []common.Address
}

// Seed admits users discovered outside the live stream, e.g. a historical
// scan or a restored snapshot. Failed reads are retried up to maxRetries
// times; any user still unread is listed in Failed and makes Seed return an
// error.
func (t *Tracker) Seed(ctx context.Context, users []common.Address, maxRetries int, backoff time.Duration) (SeedResult, error) {
	var result SeedResult
	pending := users
	err := chain.Retry(ctx, maxRetries, backoff, func(ctx context.Context) error {
		ok, failed, lastErr := t.readMany(ctx, pending)
		result.Read += ok
		pending = failed
		if len(failed) > 0 {
			return fmt.Errorf("read %d of %d accounts: %w", len(failed), len(users), lastErr)
		}
		return nil
	})
	result.Failed = pending
	return result, err
}

// UserSource lists users monitored before a restart.
type UserSource interface {
	MonitoredUsers(ctx context.Context) ([]common.Address, error)
}

// Restore seeds the registry from a previously saved monitored set.
func (t *Tracker) Restore(ctx context.Context, source UserSource, maxRetries int, backoff time.Duration) (SeedResult, error) {
	users, err := source.MonitoredUsers(ctx)
	if err != nil {
		return SeedResult{}, fmt.Errorf("load monitored users: %w", err)
	}
	if len(users) == 0 {
		return SeedResult{}, nil
	}
	result, err := t.Seed(ctx, users, maxRetries, backoff)
	t.logger.Info("monitored set restored",
		zap.Int("saved", len(users)),
		zap.Int("read", result.Read),
		zap.Int("failed", len(result.Failed)),
		zap.Int("monitored", t.registry.Len()),
	)
	return result, err
}

func (t *Tracker) readMany(ctx context.Context, users []common.Address) (int, []common.Address, error) {
	if len(users) == 0 {
		return 0, nil, nil
	}
	tasks := make([]rpcpool.Task[model.AccountData], len(users))
	for i, user := range users {
		user := user
		tasks[i] = func(ctx context.Context) (model.AccountData, error) {
			return t.readAccount(ctx, user)
		}
	}

	ok := 0
	var failed []common.Address
	var lastErr error
	for _, res := range rpcpool.ParallelFetch(ctx, t.cfg.Concurrency, tasks) {
		user := users[res.Index]
		if res.Err != nil {
			lastErr = res.Err
			failed = append(failed, user)
			t.logger.Debug("account read failed", zap.String("user", user.Hex()), zap.Error(res.Err))
			continue
		}
		ok++
		t.apply(user, res.Value)
	}
	return ok, failed, lastErr
}

func (t *Tracker) apply(user common.Address, data model.AccountData) {
	switch {
	case !data.HasDebt():
		if t.registry.Delete(user) {
			t.logger.Info("position closed", zap.String("user", user.Hex()))
		}
	case t.registry.Contains(user):
		t.registry.Put(model.NewPosition(user, data, t.now()))
	default:
		debtUSD := profit.BaseToUSD(data.TotalDebtBase)
		if debtUSD < t.cfg.MinDebtUSD {
			t.logger.Debug("below admission floor",
				zap.String("user", user.Hex()),
				zap.Float64("debt_usd", debtUSD),
			)
			break
		}
		t.registry.Put(model.NewPosition(user, data, t.now()))
		t.logger.Info("position monitored", zap.String("user", user.Hex()), zap.Float64("debt_usd", debtUSD))
	}
	if t.observer != nil {
		t.observer.Monitored(t.registry.Len())
	}
}

func (t *Tracker) readAccount(ctx context.Context, user common.Address) (model.AccountData, error) {
	client := t.source.Client()
	if client == nil {
		return model.AccountData{}, rpcpool.ErrNoEndpoints
	}
	data, err := lending.UserAccountData(ctx, client, t.cfg.Pool, user)
	if t.observer != nil {
		t.observer.AccountRead(err)
	}
	if err != nil {
		return model.AccountData{}, fmt.Errorf("account data %s: %w", user.Hex(), err)
	}
	return data, nil
}
