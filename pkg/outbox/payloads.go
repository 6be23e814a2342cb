package outbox

import "github.com/google/uuid"

// TransactionRecorded is emitted once per recorded drop-off line.
type TransactionRecorded struct {
	TransactionID uuid.UUID  `json:"transactionId"`
	ResidentID    uuid.UUID  `json:"residentId"`
	CategoryID    uuid.UUID  `json:"categoryId"`
	BatchID       *uuid.UUID `json:"batchId,omitempty"`
	WeightKg      string     `json:"weightKg"`
	PricePerKg    int64      `json:"pricePerKg"`
	TotalAmount   int64      `json:"totalAmount"`
	CommitteeFee  int64      `json:"committeeFee"`
	NetAmount     int64      `json:"netAmount"`
	BalanceAfter  int64      `json:"balanceAfter"`
}

// BatchRecorded summarizes a committed multi-line drop-off.
type BatchRecorded struct {
	BatchID        uuid.UUID   `json:"batchId"`
	ResidentID     uuid.UUID   `json:"residentId"`
	TransactionIDs []uuid.UUID `json:"transactionIds"`
	TotalAmount    int64       `json:"totalAmount"`
	CommitteeFee   int64       `json:"committeeFee"`
	NetAmount      int64       `json:"netAmount"`
	BalanceAfter   int64       `json:"balanceAfter"`
}

// MovementRecorded covers both deposits and withdrawals.
type MovementRecorded struct {
	MovementID    uuid.UUID `json:"movementId"`
	ResidentID    uuid.UUID `json:"residentId"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balanceBefore"`
	BalanceAfter  int64     `json:"balanceAfter"`
}

// CategoryPriceUpdated announces a price change effective for future drop-offs.
type CategoryPriceUpdated struct {
	CategoryID uuid.UUID `json:"categoryId"`
	Name       string    `json:"name"`
	OldPrice   int64     `json:"oldPrice"`
	NewPrice   int64     `json:"newPrice"`
}
