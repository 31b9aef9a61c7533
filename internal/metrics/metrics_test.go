package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"liquidationScope/internal/executor"
	"liquidationScope/internal/liquidity"
	"liquidationScope/internal/model"
	"liquidationScope/internal/oracle"
	"liquidationScope/internal/tracker"
)

var (
	_ tracker.Observer   = (*Metrics)(nil)
	_ oracle.Observer    = (*Metrics)(nil)
	_ liquidity.Observer = (*Metrics)(nil)
	_ executor.Observer  = (*Metrics)(nil)
)

func TestObserversUpdateCollectors(t *testing.T) {
	m := New()

	m.EventApplied(model.EventBorrow)
	m.EventApplied(model.EventBorrow)
	m.AccountRead(nil)
	m.AccountRead(errors.New("timeout"))
	m.Monitored(7)
	m.PriceLookup(true)
	m.PriceLookup(false)
	m.SourceSelected("USDC", model.FlashSourceBalancer)
	m.BatchesGrouped(3)
	m.SettlementResult(model.SettlementFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsApplied.WithLabelValues("Borrow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccountReads.WithLabelValues("error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.MonitoredPositions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriceLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceSelections.WithLabelValues("USDC", "balancer")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.GroupedBatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettlementResults.WithLabelValues("failed")))
}

func TestEndpointLabelDropsSecrets(t *testing.T) {
	assert.Equal(t, "https://eth-mainnet.g.alchemy.com", endpointLabel("https://eth-mainnet.g.alchemy.com/v2/SECRETKEY"))
	assert.Equal(t, "wss://node.example:8546", endpointLabel("wss://node.example:8546/?key=abc"))
	assert.Equal(t, "invalid", endpointLabel("not a url"))
}

func TestRegisterEndpoints(t *testing.T) {
	m := New()
	m.RegisterEndpoints(func() map[string]uint64 {
		return map[string]uint64{"https://rpc.one/key": 3, "https://rpc.two": 5}
	})
	n, err := testutil.GatherAndCount(m.Registry(), "liquidator_rpc_requests_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}
