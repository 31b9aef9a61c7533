package model

// SyncState is the resumable checkpoint of the historical scan.
type SyncState struct {
	LastScannedBlock     uint64 `json:"lastScannedBlock"`
	LastScannedTimestamp int64  `json:"lastScannedTimestamp"`
}
