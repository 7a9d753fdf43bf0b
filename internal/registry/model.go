package registry

import "time"

// Status is the closed set of lifecycle states a company moves through.
type Status string

const (
	// StatusRegistered means the company exists but no allowance was minted yet.
	StatusRegistered Status = "registered"
	// StatusActive means the initial allowance has been minted.
	StatusActive Status = "active"
	// StatusPendingSettlement means an audit report was received but not settled.
	StatusPendingSettlement Status = "pending_settlement"
	// StatusAudited means the last audit settled and credits were burned.
	StatusAudited Status = "audited"
	// StatusDeficit means the last audit required more credits than the wallet held.
	StatusDeficit Status = "deficit"
)

// Company is one registered entity holding carbon credit tokens. The wallet is
// the ledger account owning its balance; grade and surplus are derived on read
// and never stored.
type Company struct {
	ID                      string
	Name                    string
	Wallet                  string
	InitialAllowance        int64
	LastVerifiedConsumption int64
	Status                  Status
	SettlementTx            string
	CreatedAt               time.Time
}
