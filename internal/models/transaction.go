package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus values. Pending orders are the only ones the reconciler
// will complete; completed and failed are both terminal.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction is an internally issued pending payment order. The order code is
// embedded by the payer in their bank transfer note and is the only link back
// from an external bank transaction to this record.
type Transaction struct {
	ID        uuid.UUID `json:"id"`
	OrderCode string    `json:"order_code"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int64     `json:"amount"` // expected minimum transfer, in VND
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
