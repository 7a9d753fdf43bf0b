package marketplace

import "time"

// Listing is one escrow offer. While Active, Amount tokens sit in the
// custodial escrow account and are excluded from the seller's spendable
// balance. IsPaid only records the buyer's assertion that an off-ledger
// payment happened; the marketplace never verifies it.
type Listing struct {
	ID            int64
	Seller        string
	Amount        int64
	PricePerToken int64
	// PaymentReference is an opaque pointer for the buyer (QR code, payment
	// URL). Informational only.
	PaymentReference string
	IsPaid           bool
	Active           bool
	CreatedAt        time.Time
}
