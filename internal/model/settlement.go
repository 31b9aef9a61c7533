package model

import "time"

// SettlementStatus is the outcome of a single dispatched target.
type SettlementStatus string

const (
	SettlementSucceeded SettlementStatus = "succeeded"
	SettlementFailed    SettlementStatus = "failed"
	SettlementSkipped   SettlementStatus = "skipped"
)

// SettlementRecord is the journal entry for one target.
type SettlementRecord struct {
	BatchID   string            `json:"batch_id"`
	Target    LiquidationTarget `json:"target"`
	Status    SettlementStatus  `json:"status"`
	Error     string            `json:"error,omitempty"`
	TxHash    string            `json:"tx_hash,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
