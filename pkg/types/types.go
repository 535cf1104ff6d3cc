package types

import "time"

// ShardIndex identifies one input/output shard of a batch.
type ShardIndex int

// NoMoreWork is the sentinel assignment telling a worker to exit.
const NoMoreWork ShardIndex = -1

// WorkerID identifies a worker. 0 is reserved for the coordinator.
type WorkerID int

// CoordinatorID is the identity the coordinator uses in logs.
const CoordinatorID WorkerID = 0

// Kron is the Kronecker symbol of (-D, ell).
type Kron int8

const (
	Inert    Kron = -1
	Ramified Kron = 0
	Split    Kron = 1
)

func (k Kron) String() string {
	switch k {
	case Inert:
		return "inert"
	case Ramified:
		return "ramified"
	case Split:
		return "split"
	default:
		return "unknown"
	}
}

// ShardStatus is the outcome of processing one shard.
type ShardStatus string

const (
	StatusDone    ShardStatus = "done"
	StatusSkipped ShardStatus = "skipped"
	StatusFailed  ShardStatus = "failed"
	StatusFatal   ShardStatus = "fatal"
)

// Report is a worker's completion message for one shard.
type Report struct {
	Worker  WorkerID      `json:"worker"`
	Index   ShardIndex    `json:"index"`
	Status  ShardStatus   `json:"status"`
	Lines   int64         `json:"lines"`
	Elapsed time.Duration `json:"elapsed"`
	Error   string        `json:"error,omitempty"`
}

// ShardState is the ledger entry of one index.
type ShardState struct {
	Index  ShardIndex  `json:"index"`
	Worker WorkerID    `json:"worker,omitempty"`
	Status ShardStatus `json:"status,omitempty"`
}

// Summary counts shard outcomes.
type Summary struct {
	Files      int          `json:"files"`
	Dispatched int          `json:"dispatched"`
	Done       int          `json:"done"`
	Skipped    int          `json:"skipped"`
	Failed     []ShardIndex `json:"failed,omitempty"`
}
