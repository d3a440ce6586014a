package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanEvent is the journal record written for every conversion-plan request
// that reached the builder.
type PlanEvent struct {
	Time      time.Time       `json:"time"`
	Pair      string          `json:"pair"`
	EntryKind string          `json:"entry_kind"`
	AmountIn  decimal.Decimal `json:"amount_in"`
	Null      bool            `json:"null"`
	Plan      ConversionPlan  `json:"plan"`
}

// PlanEventRecord pairs a journal event with its WAL index for streaming.
type PlanEventRecord struct {
	Index uint64    `json:"index"`
	Event PlanEvent `json:"event"`
}

// RebalanceEvent is the journal record written for every rebalance request.
type RebalanceEvent struct {
	Time               time.Time       `json:"time"`
	Pair               string          `json:"pair"`
	TargetHealthFactor decimal.Decimal `json:"target_health_factor"`
	Direction          string          `json:"direction"`
	Amount             decimal.Decimal `json:"amount"`
	ResultingHF        decimal.Decimal `json:"resulting_hf"`
	Rejected           bool            `json:"rejected"`
	Reason             string          `json:"reason,omitempty"`
}

// RebalanceEventRecord pairs a journal event with its WAL index for streaming.
type RebalanceEventRecord struct {
	Index uint64         `json:"index"`
	Event RebalanceEvent `json:"event"`
}
