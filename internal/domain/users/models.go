package users

import (
	"time"

	"github.com/google/uuid"
)

// User is the ledger view of an account holder. Session issuance and
// credential storage live in a separate service; this service only reads
// profile data and caches gateway identifiers on the row.
type User struct {
	ID             uuid.UUID
	Email          string
	DisplayName    string
	AvatarURL      string
	CustomerID     *string // payment processor customer id, cached after first charge
	GatewayAccount *string // connected account id, set during onboarding
	BankAccountID  *string // external bank account id, set by webhook
	PayoutsEnabled bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
