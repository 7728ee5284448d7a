package repositories

import (
	"context"
	"database/sql"
	"time"

	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/pkg/retry"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// roscaRepository implements RoscaRepository interface
type roscaRepository struct {
	store
	retry *retry.Config
}

// NewRoscaRepository creates a new cycle store
func NewRoscaRepository(db *gorm.DB) RoscaRepository {
	return &roscaRepository{
		store: newStore(db),
		retry: &retry.Config{
			MaxAttempts:       3,
			InitialBackoff:    20 * time.Millisecond,
			MaxBackoff:        200 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	}
}

const cycleSummarySelect = "rosca_cycles.*, COUNT(r.id) AS member_count, " +
	"COALESCE(SUM(CASE WHEN r.status = 'PAID' THEN 1 ELSE 0 END), 0) AS paid_count, " +
	"COALESCE(SUM(CASE WHEN r.status = 'PENDING' THEN 1 ELSE 0 END), 0) AS pending_count"

// GetCycle gets a cycle by ID
func (r *roscaRepository) GetCycle(ctx context.Context, id uint) (*models.RoscaCycle, error) {
	var cycle models.RoscaCycle
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", id).First(&cycle).Error
	})
	if err != nil {
		return nil, err
	}
	return &cycle, nil
}

// GetCycleSummary gets a cycle with its roster counts
func (r *roscaRepository) GetCycleSummary(ctx context.Context, id uint) (*CycleSummary, error) {
	var out []*CycleSummary
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Model(&models.RoscaCycle{}).
			Select(cycleSummarySelect).
			Joins("LEFT JOIN rosca_roster r ON r.cycle_id = rosca_cycles.id").
			Where("rosca_cycles.id = ?", id).
			Group("rosca_cycles.id").
			Scan(&out).Error
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

// ListCyclesByChama lists cycles of a chama, newest first
func (r *roscaRepository) ListCyclesByChama(ctx context.Context, chamaID uint) ([]*CycleSummary, error) {
	var out []*CycleSummary
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Model(&models.RoscaCycle{}).
			Select(cycleSummarySelect).
			Joins("LEFT JOIN rosca_roster r ON r.cycle_id = rosca_cycles.id").
			Where("rosca_cycles.chama_id = ?", chamaID).
			Group("rosca_cycles.id").
			Order("rosca_cycles.created_at DESC, rosca_cycles.id DESC").
			Scan(&out).Error
	})
	return out, err
}

// ListRoster lists the roster of a cycle ordered by position
func (r *roscaRepository) ListRoster(ctx context.Context, cycleID uint) ([]*models.RosterEntry, error) {
	var entries []*models.RosterEntry
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Preload("User", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped().Select("id", "first_name", "last_name")
		}).
			Where("cycle_id = ?", cycleID).
			Order("position ASC").
			Find(&entries).Error
	})
	return entries, err
}

// GetSwapRequest gets a swap request by ID
func (r *roscaRepository) GetSwapRequest(ctx context.Context, id uint) (*models.SwapRequest, error) {
	var req models.SwapRequest
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", id).First(&req).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListSwapRequests lists swap requests of a cycle, newest first
func (r *roscaRepository) ListSwapRequests(ctx context.Context, cycleID uint) ([]*models.SwapRequest, error) {
	var reqs []*models.SwapRequest
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Where("cycle_id = ?", cycleID).
			Order("created_at DESC, id DESC").
			Find(&reqs).Error
	})
	return reqs, err
}

// ListPendingSwapsBefore lists PENDING swap requests created before the cutoff
func (r *roscaRepository) ListPendingSwapsBefore(ctx context.Context, before time.Time, limit int) ([]*models.SwapRequest, error) {
	var reqs []*models.SwapRequest
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Where("status = ? AND created_at < ?", "PENDING", before).
			Order("id ASC").
			Limit(limit).
			Find(&reqs).Error
	})
	return reqs, err
}

// WithTx runs fn inside a REPEATABLE READ transaction, replaying on lock conflicts
func (r *roscaRepository) WithTx(ctx context.Context, fn func(tx RoscaTx) error) error {
	return retry.Do(ctx, r.retry, "rosca transaction", func(ctx context.Context) error {
		err := r.run(ctx, func(db *gorm.DB) error {
			return db.Transaction(func(tx *gorm.DB) error {
				return fn(&roscaTx{db: tx})
			}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
		})
		if err != nil && !isRetryable(err) {
			return &retry.Permanent{Err: err}
		}
		return err
	})
}

// roscaTx implements RoscaTx on top of an open gorm transaction
type roscaTx struct {
	db *gorm.DB
}

func (t *roscaTx) forUpdate() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *roscaTx) ActiveMembers(chamaID uint) ([]*models.ChamaMember, error) {
	var members []*models.ChamaMember
	err := t.db.Preload("User").
		Where("chama_id = ? AND is_active = ?", chamaID, true).
		Order("id ASC").
		Find(&members).Error
	return members, translate(err)
}

func (t *roscaTx) LockChama(chamaID uint) (*models.Chama, error) {
	var chama models.Chama
	if err := t.forUpdate().Where("id = ?", chamaID).First(&chama).Error; err != nil {
		return nil, err
	}
	return &chama, nil
}

func (t *roscaTx) AdjustChamaFund(chamaID uint, delta decimal.Decimal) error {
	return affected(t.db.Model(&models.Chama{}).
		Where("id = ? AND current_fund + ? >= 0", chamaID, delta).
		Update("current_fund", gorm.Expr("current_fund + ?", delta)))
}

func (t *roscaTx) CreateCycle(cycle *models.RoscaCycle) error {
	return translate(t.db.Create(cycle).Error)
}

func (t *roscaTx) LockCycle(cycleID uint) (*models.RoscaCycle, error) {
	var cycle models.RoscaCycle
	if err := t.forUpdate().Where("id = ?", cycleID).First(&cycle).Error; err != nil {
		return nil, err
	}
	return &cycle, nil
}

func (t *roscaTx) SetCycleStatus(cycleID uint, from, to string, endDate *time.Time) error {
	fields := map[string]interface{}{"status": to}
	if endDate != nil {
		fields["end_date"] = *endDate
	}
	return affected(t.db.Model(&models.RoscaCycle{}).
		Where("id = ? AND status = ?", cycleID, from).
		Updates(fields))
}

func (t *roscaTx) CreateRosterEntries(entries []*models.RosterEntry) error {
	return translate(t.db.Omit("User").Create(&entries).Error)
}

func (t *roscaTx) LockRosterEntryByPosition(cycleID uint, position int) (*models.RosterEntry, error) {
	var entry models.RosterEntry
	if err := t.forUpdate().Where("cycle_id = ? AND position = ?", cycleID, position).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (t *roscaTx) LockRosterEntryByUser(cycleID, userID uint) (*models.RosterEntry, error) {
	var entry models.RosterEntry
	if err := t.forUpdate().Where("cycle_id = ? AND user_id = ?", cycleID, userID).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (t *roscaTx) CountRoster(cycleID uint) (int64, error) {
	var n int64
	err := t.db.Model(&models.RosterEntry{}).Where("cycle_id = ?", cycleID).Count(&n).Error
	return n, err
}

func (t *roscaTx) CountRosterByStatus(cycleID uint, status string) (int64, error) {
	var n int64
	err := t.db.Model(&models.RosterEntry{}).
		Where("cycle_id = ? AND status = ?", cycleID, status).
		Count(&n).Error
	return n, err
}

func (t *roscaTx) CountEligibleMembers(cycleID, excludeUserID uint, required decimal.Decimal) (int64, error) {
	var n int64
	err := t.db.Raw(`
		SELECT COUNT(*) FROM (
			SELECT r.user_id
			FROM rosca_roster r
			JOIN contributions c ON c.cycle_id = r.cycle_id AND c.user_id = r.user_id
			WHERE r.cycle_id = ? AND r.user_id <> ?
			GROUP BY r.user_id
			HAVING SUM(c.amount) >= ?
		) eligible`, cycleID, excludeUserID, required).
		Scan(&n).Error
	return n, err
}

func (t *roscaTx) MarkEntryPaid(entryID uint, paidAt time.Time, proof *string) error {
	return affected(t.db.Model(&models.RosterEntry{}).
		Where("id = ? AND status = ?", entryID, "PENDING").
		Updates(map[string]interface{}{
			"status":        "PAID",
			"payout_date":   paidAt,
			"payment_proof": proof,
		}))
}

func (t *roscaTx) SwapPositions(a, b *models.RosterEntry) error {
	setPosition := func(id uint, position int) error {
		return affected(t.db.Model(&models.RosterEntry{}).
			Where("id = ? AND status = ?", id, "PENDING").
			Update("position", position))
	}

	// Park a on a negative sentinel so no two rows ever share a position
	if err := setPosition(a.ID, -a.Position); err != nil {
		return err
	}
	if err := setPosition(b.ID, a.Position); err != nil {
		return err
	}
	if err := setPosition(a.ID, b.Position); err != nil {
		return err
	}
	a.Position, b.Position = b.Position, a.Position
	return nil
}

func (t *roscaTx) CountContributions(cycleID uint) (int64, error) {
	var n int64
	err := t.db.Model(&models.Contribution{}).Where("cycle_id = ?", cycleID).Count(&n).Error
	return n, err
}

func (t *roscaTx) CreateContribution(contribution *models.Contribution) error {
	return translate(t.db.Create(contribution).Error)
}

func (t *roscaTx) CreateTransaction(txn *models.Transaction) error {
	return translate(t.db.Create(txn).Error)
}

func (t *roscaTx) CreateSwapRequest(req *models.SwapRequest) error {
	return translate(t.db.Create(req).Error)
}

func (t *roscaTx) LockSwapRequest(id uint) (*models.SwapRequest, error) {
	var req models.SwapRequest
	if err := t.forUpdate().Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (t *roscaTx) ResolveSwapRequest(id uint, status string, at time.Time) error {
	return affected(t.db.Model(&models.SwapRequest{}).
		Where("id = ? AND status = ?", id, "PENDING").
		Updates(map[string]interface{}{
			"status":       status,
			"responded_at": at,
			"pending_key":  nil,
		}))
}
