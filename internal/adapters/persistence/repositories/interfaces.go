package repositories

import (
	"context"
	"time"

	"chamahub/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error

	// ConsumeEmailVerification marks the owner of tokenHash verified and clears the token.
	// It returns ErrNotFound when no unexpired token matches.
	ConsumeEmailVerification(ctx context.Context, tokenHash string, now time.Time) (uint, error)
	// IncrementOTPAttempts bumps the failed phone OTP counter and returns the new value
	IncrementOTPAttempts(ctx context.Context, id uint) (int, error)
	// ConsumePhoneOTP marks the phone verified only if codeHash is still current,
	// unexpired and under the attempt limit. It returns ErrStaleWrite otherwise.
	ConsumePhoneOTP(ctx context.Context, id uint, codeHash string, maxAttempts int, now time.Time) error
	// ConsumePasswordReset swaps in a new password hash for the owner of tokenHash
	ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (uint, error)
}

// RefreshTokenRepository defines refresh token repository interface
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	// GetByTokenHash returns the record whether or not it is revoked
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	// Rotate revokes oldID and stores next in one transaction.
	// It returns ErrStaleWrite if oldID was already revoked.
	Rotate(ctx context.Context, oldID uint, next *models.RefreshToken, now time.Time) error
	RevokeByFingerprint(ctx context.Context, userID uint, fingerprint string) (int64, error)
	RevokeAllByUserID(ctx context.Context, userID uint) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	CountActiveByUserID(ctx context.Context, userID uint) (int64, error)
}

// ChamaRepository defines chama repository interface
type ChamaRepository interface {
	// Create stores the chama and its founding membership together
	Create(ctx context.Context, chama *models.Chama, founder *models.ChamaMember) error
	GetByID(ctx context.Context, id uint) (*models.Chama, error)
	GetByInviteCode(ctx context.Context, code string) (*models.Chama, error)
	ListByUser(ctx context.Context, userID uint) ([]*models.Chama, error)
}

// MembershipRepository defines membership repository interface (Identity Store)
type MembershipRepository interface {
	Get(ctx context.Context, chamaID, userID uint) (*models.ChamaMember, error)
	Create(ctx context.Context, member *models.ChamaMember) error
	Reactivate(ctx context.Context, id uint, role string) error
	ListByChama(ctx context.Context, chamaID uint, offset, limit int) ([]*models.ChamaMember, int64, error)
	ActiveChamaIDs(ctx context.Context, userID uint) ([]uint, error)
	UpdateRole(ctx context.Context, chamaID, userID uint, role string) error
	SetActive(ctx context.Context, chamaID, userID uint, active bool) error
}

// CycleSummary is a cycle row with its roster counts
type CycleSummary struct {
	models.RoscaCycle
	MemberCount  int64 `json:"member_count"`
	PaidCount    int64 `json:"paid_count"`
	PendingCount int64 `json:"pending_count"`
}

// RoscaRepository is the Cycle Store. Reads run outside a transaction;
// every mutation goes through WithTx.
type RoscaRepository interface {
	GetCycle(ctx context.Context, id uint) (*models.RoscaCycle, error)
	GetCycleSummary(ctx context.Context, id uint) (*CycleSummary, error)
	ListCyclesByChama(ctx context.Context, chamaID uint) ([]*CycleSummary, error)
	ListRoster(ctx context.Context, cycleID uint) ([]*models.RosterEntry, error)
	GetSwapRequest(ctx context.Context, id uint) (*models.SwapRequest, error)
	ListSwapRequests(ctx context.Context, cycleID uint) ([]*models.SwapRequest, error)
	ListPendingSwapsBefore(ctx context.Context, before time.Time, limit int) ([]*models.SwapRequest, error)

	// WithTx runs fn in a REPEATABLE READ transaction. Any error rolls back.
	// Lock conflicts (deadlock, lock wait timeout) replay fn from scratch, so fn
	// must not perform side effects outside tx.
	WithTx(ctx context.Context, fn func(tx RoscaTx) error) error
}

// RoscaTx is the set of reads and writes allowed inside a cycle transaction.
// Lock* methods take row locks (SELECT ... FOR UPDATE) held until commit.
type RoscaTx interface {
	ActiveMembers(chamaID uint) ([]*models.ChamaMember, error)
	LockChama(chamaID uint) (*models.Chama, error)
	// AdjustChamaFund adds delta to current_fund; it returns ErrStaleWrite
	// instead of letting the fund go negative
	AdjustChamaFund(chamaID uint, delta decimal.Decimal) error

	CreateCycle(cycle *models.RoscaCycle) error
	LockCycle(cycleID uint) (*models.RoscaCycle, error)
	// SetCycleStatus moves the cycle from one status to another and fails with ErrStaleWrite
	// if it is no longer in from
	SetCycleStatus(cycleID uint, from, to string, endDate *time.Time) error

	CreateRosterEntries(entries []*models.RosterEntry) error
	LockRosterEntryByPosition(cycleID uint, position int) (*models.RosterEntry, error)
	LockRosterEntryByUser(cycleID, userID uint) (*models.RosterEntry, error)
	CountRoster(cycleID uint) (int64, error)
	CountRosterByStatus(cycleID uint, status string) (int64, error)
	// CountEligibleMembers counts roster members other than excludeUserID whose
	// contributions to the cycle sum to at least required
	CountEligibleMembers(cycleID, excludeUserID uint, required decimal.Decimal) (int64, error)
	// MarkEntryPaid transitions a PENDING entry to PAID; ErrStaleWrite if it is not PENDING
	MarkEntryPaid(entryID uint, paidAt time.Time, proof *string) error
	// SwapPositions exchanges the positions of two entries without breaking (cycle, position) uniqueness
	SwapPositions(a, b *models.RosterEntry) error

	CountContributions(cycleID uint) (int64, error)
	CreateContribution(contribution *models.Contribution) error
	CreateTransaction(txn *models.Transaction) error

	CreateSwapRequest(req *models.SwapRequest) error
	LockSwapRequest(id uint) (*models.SwapRequest, error)
	// ResolveSwapRequest moves a PENDING request to status and frees its pending key
	ResolveSwapRequest(id uint, status string, at time.Time) error
}
