package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"chamahub/internal/adapters/cache"
	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/adapters/persistence/repositories"
	"chamahub/internal/config"
	"chamahub/internal/core/domain"
	"chamahub/internal/observability/metrics"
	"chamahub/internal/observability/tracing"
	"chamahub/internal/pkg/validator"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// expireBatchSize bounds one run of the swap expiry job
const expireBatchSize = 200

// RoscaService is the cycle engine: rosters, contributions, payouts and swaps.
// Every mutation runs inside RoscaRepository.WithTx; cache invalidation and
// events happen only after the transaction has committed.
type RoscaService struct {
	roscaRepo repositories.RoscaRepository
	authz     *AuthzService
	cache     cache.Cache
	events    EventPublisher
	cfg       *config.Config
	now       func() time.Time
}

// NewRoscaService creates a new ROSCA service
func NewRoscaService(
	roscaRepo repositories.RoscaRepository,
	authz *AuthzService,
	c cache.Cache,
	events EventPublisher,
	cfg *config.Config,
) *RoscaService {
	return &RoscaService{
		roscaRepo: roscaRepo,
		authz:     authz,
		cache:     c,
		events:    events,
		cfg:       cfg,
		now:       time.Now,
	}
}

// CreateCycleInput represents cycle creation input
type CreateCycleInput struct {
	ChamaID            uint            `json:"chama_id"`
	CycleName          string          `json:"cycle_name"`
	ContributionAmount decimal.Decimal `json:"contribution_amount"`
	Frequency          string          `json:"frequency"`
	StartDate          string          `json:"start_date" example:"2026-11-01"`
	RosterMethod       string          `json:"roster_method"`
	ManualRoster       []uint          `json:"manual_roster,omitempty"`
}

// CreateCycleResult is the created cycle with its roster
type CreateCycleResult struct {
	Cycle       *models.RoscaCycle            `json:"cycle"`
	MemberCount int                           `json:"member_count"`
	Roster      []*models.RosterEntryResponse `json:"roster"`
}

// ContributionInput represents a contribution to a cycle.
// UserID defaults to the caller; officials may record for another member.
type ContributionInput struct {
	Amount decimal.Decimal `json:"amount"`
	UserID *uint           `json:"user_id,omitempty"`
}

// PayoutInput represents payout input
type PayoutInput struct {
	Position     int    `json:"position"`
	PaymentProof string `json:"payment_proof,omitempty"`
}

// PayoutResult describes an applied payout
type PayoutResult struct {
	UserID         uint            `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Position       int             `json:"position"`
	CycleCompleted bool            `json:"cycle_completed"`
}

// SwapRequestInput represents a position swap request
type SwapRequestInput struct {
	TargetPosition int    `json:"target_position"`
	Reason         string `json:"reason"`
}

// SwapResponseInput represents the target's answer to a swap request
type SwapResponseInput struct {
	Action string `json:"action" example:"APPROVED"`
}

// ============================================================
// Cycles
// ============================================================

// CreateCycle creates a PENDING cycle and its roster over the chama's active members
func (s *RoscaService) CreateCycle(ctx context.Context, userID uint, input *CreateCycleInput) (res *CreateCycleResult, err error) {
	ctx, done := s.observe(ctx, "create_cycle", attribute.Int64("chama.id", int64(input.ChamaID)))
	defer func() { done(err) }()

	// 1. Validate input
	method := domain.RosterMethod(strings.ToUpper(input.RosterMethod))
	frequency := domain.Frequency(strings.ToUpper(input.Frequency))
	name := strings.TrimSpace(input.CycleName)

	v := validator.Errors{}
	v.Check(input.ChamaID > 0, "chama_id", "is required")
	v.Check(name != "" && len(name) <= 100, "cycle_name", "must be 1 to 100 characters")
	v.Check(validAmount(input.ContributionAmount), "contribution_amount", "must be a positive amount with at most 2 decimals")
	v.Check(frequency.IsValid(), "frequency", "must be WEEKLY, BIWEEKLY or MONTHLY")
	v.Check(method.IsValid(), "roster_method", "must be RANDOM, TRUST or MANUAL")
	startDate, dateErr := time.Parse(time.DateOnly, input.StartDate)
	v.Check(dateErr == nil, "start_date", "must be a date in YYYY-MM-DD format")
	if method == domain.RosterManual {
		v.Check(len(input.ManualRoster) > 0, "manual_roster", "is required for MANUAL rosters")
	} else {
		v.Check(len(input.ManualRoster) == 0, "manual_roster", "is only allowed for MANUAL rosters")
	}
	if !v.Empty() {
		return nil, domain.InvalidFields(v)
	}

	// 2. Caller must be an official of the chama
	if _, err := s.authz.Require(ctx, userID, input.ChamaID, domain.OfficialRoles); err != nil {
		return nil, err
	}

	// 3. Cycle and roster in one unit of work
	var cycle *models.RoscaCycle
	var entries []*models.RosterEntry
	err = s.roscaRepo.WithTx(ctx, func(tx repositories.RoscaTx) error {
		if _, err := tx.LockChama(input.ChamaID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return domain.ErrChamaNotFound
			}
			return err
		}

		members, err := tx.ActiveMembers(input.ChamaID)
		if err != nil {
			return err
		}
		if len(members) < domain.MinCycleMembers {
			return domain.ErrNotEnoughMembers
		}

		order, err := buildRoster(method, members, input.ManualRoster)
		if err != nil {
			return err
		}

		cycle = &models.RoscaCycle{
			ChamaID:            input.ChamaID,
			Name:               name,
			ContributionAmount: input.ContributionAmount,
			Frequency:          string(frequency),
			RosterMethod:       string(method),
			StartDate:          startDate,
			Status:             string(domain.CyclePending),
			CreatedBy:          userID,
		}
		if err := tx.CreateCycle(cycle); err != nil {
			return err
		}

		payout := input.ContributionAmount.Mul(decimal.NewFromInt(int64(len(order) - 1)))
		entries = make([]*models.RosterEntry, len(order))
		for i, m := range order {
			entries[i] = &models.RosterEntry{
				CycleID:      cycle.ID,
				UserID:       m.UserID,
				Position:     i + 1,
				PayoutAmount: payout,
				Status:       string(domain.RosterPending),
				User:         m.User,
			}
		}
		return tx.CreateRosterEntries(entries)
	})
	if err != nil {
		return nil, err
	}

	// 4. Post-commit
	cache.Invalidate(ctx, s.cache, domain.CyclesKey(cycle.ChamaID))
	s.publish(ctx, domain.NewEvent(domain.ChamaRoom(cycle.ChamaID), domain.EventCycleCreated, map[string]any{
		"cycle_id":     cycle.ID,
		"cycle_name":   cycle.Name,
		"member_count": len(entries),
	}))

	log.Printf("✅ ROSCA cycle created: %s (ID: %d, chama %d, %d members, %s)",
		cycle.Name, cycle.ID, cycle.ChamaID, len(entries), cycle.RosterMethod)

	roster := make([]*models.RosterEntryResponse, len(entries))
	for i, e := range entries {
		roster[i] = e.ToResponse()
	}
	return &CreateCycleResult{Cycle: cycle, MemberCount: len(entries), Roster: roster}, nil
}

// ListCycles lists the cycles of a chama with roster counts (cached)
func (s *RoscaService) ListCycles(ctx context.Context, userID, chamaID uint) ([]*repositories.CycleSummary, error) {
	if _, err := s.authz.Require(ctx, userID, chamaID, domain.AnyRole); err != nil {
		return nil, err
	}

	return cache.GetOrLoad(ctx, s.cache, domain.CyclesKey(chamaID), s.cfg.CacheTTL,
		func(ctx context.Context) ([]*repositories.CycleSummary, error) {
			cycles, err := s.roscaRepo.ListCyclesByChama(ctx, chamaID)
			if err != nil {
				return nil, err
			}
			if cycles == nil {
				cycles = []*repositories.CycleSummary{}
			}
			return cycles, nil
		})
}

// GetCycle returns a cycle with its paid and pending counts
func (s *RoscaService) GetCycle(ctx context.Context, userID, cycleID uint) (*repositories.CycleSummary, error) {
	summary, err := s.roscaRepo.GetCycleSummary(ctx, cycleID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrCycleNotFound
		}
		return nil, err
	}
	if _, err := s.authz.Require(ctx, userID, summary.ChamaID, domain.AnyRole); err != nil {
		return nil, err
	}
	return summary, nil
}

// GetRoster returns the roster of a cycle ordered by position (cached).
// Entries carry names only.
func (s *RoscaService) GetRoster(ctx context.Context, userID, cycleID uint) ([]*models.RosterEntryResponse, error) {
	if _, err := s.requireCycleRole(ctx, userID, cycleID, domain.AnyRole); err != nil {
		return nil, err
	}

	return cache.GetOrLoad(ctx, s.cache, domain.RosterKey(cycleID), s.cfg.CacheTTL,
		func(ctx context.Context) ([]*models.RosterEntryResponse, error) {
			entries, err := s.roscaRepo.ListRoster(ctx, cycleID)
			if err != nil {
				return nil, err
			}
			out := make([]*models.RosterEntryResponse, len(entries))
			for i, e := range entries {
				out[i] = e.ToResponse()
			}
			return out, nil
		})
}

// ActivateCycle moves a PENDING cycle to ACTIVE
func (s *RoscaService) ActivateCycle(ctx context.Context, userID, cycleID uint) (err error) {
	ctx, done := s.observe(ctx, "activate_cycle", attribute.Int64("cycle.id", int64(cycleID)))
	defer func() { done(err) }()

	cycle, err := s.requireCycleRole(ctx, userID, cycleID, domain.OfficialRoles)
	if err != nil {
		return err
	}

	err = s.roscaRepo.WithTx(ctx, func(tx repositories.RoscaTx) error {
		locked, err := tx.LockCycle(cycleID)
		if err != nil {
			return err
		}
		if domain.CycleStatus(locked.Status) != domain.CyclePending {
			return domain.ErrCycleNotPending
		}
		return tx.SetCycleStatus(cycleID, string(domain.CyclePending), string(domain.CycleActive), nil)
	})
	if err != nil {
		return err
	}

	s.afterStatusChange(ctx, cycle, domain.CycleActive)
	log.Printf("✅ ROSCA cycle activated: ID %d by user %d", cycleID, userID)
	return nil
}

// CancelCycle cancels a PENDING cycle that has no contributions and no payouts
func (s *RoscaService) CancelCycle(ctx context.Context, userID, cycleID uint) (err error) {
	ctx, done := s.observe(ctx, "cancel_cycle", attribute.Int64("cycle.id", int64(cycleID)))
	defer func() { done(err) }()

	cycle, err := s.requireCycleRole(ctx, userID, cycleID, domain.OfficialRoles)
	if err != nil {
		return err
	}

	err = s.roscaRepo.WithTx(ctx, func(tx repositories.RoscaTx) error {
		locked, err := tx.LockCycle(cycleID)
		if err != nil {
			return err
		}
		if !domain.CycleStatus(locked.Status).CanTransitionTo(domain.CycleCancelled) {
			return domain.ErrCycleNotPending
		}

		contributions, err := tx.CountContributions(cycleID)
		if err != nil {
			return err
		}
		paid, err := tx.CountRosterByStatus(cycleID, string(domain.RosterPaid))
		if err != nil {
			return err
		}
		if contributions > 0 || paid > 0 {
			return domain.ErrCycleNotCancellable
		}

		now := s.now().UTC()
		return tx.SetCycleStatus(cycleID, string(domain.CyclePending), string(domain.CycleCancelled), &now)
	})
	if err != nil {
		return err
	}

	cache.Invalidate(ctx, s.cache, domain.RosterKey(cycleID))
	s.afterStatusChange(ctx, cycle, domain.CycleCancelled)
	log.Printf("✅ ROSCA cycle cancelled: ID %d by user %d", cycleID, userID)
	return nil
}

// ============================================================
// Contributions and payouts
// ============================================================

// RecordContribution appends a contribution to a cycle and credits the chama fund.
// The first contribution to a PENDING cycle activates it.
func (s *RoscaService) RecordContribution(ctx context.Context, userID, cycleID uint, input *ContributionInput) (contribution *models.Contribution, err error) {
	ctx, done := s.observe(ctx, "record_contribution", attribute.Int64("cycle.id", int64(cycleID)))
	defer func() { done(err) }()

	if !validAmount(input.Amount) {
		return nil, domain.InvalidFields(map[string]string{"amount": "must be a positive amount with at most 2 decimals"})
	}

	// 1. Members record their own; officials may record for others
	contributorID := userID
	roles := domain.AnyRole
	if input.UserID != nil && *input.UserID != userID {
		contributorID = *input.UserID
		roles = domain.OfficialRoles
	}
	cycle, err := s.requireCycleRole(ctx, userID, cycleID, roles)
	if err != nil {
		return nil, err
	}

	// 2. Append ledger rows and credit the fund
	var activated bool
	err = s.roscaRepo.WithTx(ctx, func(tx repositories.RoscaTx) error {
		activated = false

		locked, err := tx.LockCycle(cycleID)
		if err != nil {
			return err
		}
		status := domain.CycleStatus(locked.Status)
		if status.IsTerminal() {
			return domain.ErrCycleClosed
		}

		if _, err := tx.LockRosterEntryByUser(cycleID, contributorID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return domain.ErrContributorNotInRoster
			}
			return err
		}

		if status == domain.CyclePending {
			if err := tx.SetCycleStatus(cycleID, string(domain.CyclePending), string(domain.CycleActive), nil); err != nil {
				return err
			}
			activated = true
		}

		contribution = &models.Contribution{
			ChamaID:    locked.ChamaID,
			CycleID:    &locked.ID,
			UserID:     contributorID,
			Amount:     input.Amount,
			RecordedBy: userID,
		}
		if err := tx.CreateContribution(contribution); err != nil {
			return err
		}
		if err := tx.CreateTransaction(&models.Transaction{
			ChamaID:     locked.ChamaID,
			UserID:      contributorID,
			Amount:      input.Amount,
			Kind:        string(domain.TxContribution),
			Description: fmt.Sprintf("ROSCA contribution: %s", locked.Name),
		}); err != nil {
			return err
		}
		return tx.AdjustChamaFund(locked.ChamaID, input.Amount)
	})
	if err != nil {
		return nil, err
	}

	// 3. Post-commit
	s.publish(ctx, domain.NewEvent(domain.ChamaRoom(cycle.ChamaID), domain.EventContributionAdded, map[string]any{
		"cycle_id": cycleID,
		"user_id":  contributorID,
		"amount":   input.Amount.StringFixed(2),
	}))
	if activated {
		s.afterStatusChange(ctx, cycle, domain.CycleActive)
	}

	log.Printf("💰 Contribution recorded: cycle %d, user %d, amount %s", cycleID, contributorID, input.Amount.StringFixed(2))
	return contribution, nil
}

// ProcessPayout pays the member at input.Position. Only the chama's treasurer may call it.
//
// The cycle row lock serializes payouts of a cycle; the entry lock and the
// PENDING check make a second payout at the same position fail. Eligibility
// is read inside the same transaction, never from cache.
func (s *RoscaService) ProcessPayout(ctx context.Context, userID, cycleID uint, input *PayoutInput) (res *PayoutResult, err error) {
	ctx, done := s.observe(ctx, "process_payout",
		attribute.Int64("cycle.id", int64(cycleID)),
		attribute.Int("roster.position", input.Position))
	defer func() { done(err) }()

	// 1. Validate input
	v := validator.Errors{}
	v.Check(input.Position >= 1, "position", "must be a positive integer")
	v.Check(utf8.RuneCountInString(input.PaymentProof) <= domain.MaxPaymentProofLength, "payment_proof",
		fmt.Sprintf("must be at most %d characters", domain.MaxPaymentProofLength))
	if !v.Empty() {
		return nil, domain.InvalidFields(v)
	}
	var proof *string
	if p := strings.TrimSpace(input.PaymentProof); p != "" {
		proof = &p
	}

	// 2. Treasurer of the cycle's chama
	cycle, err := s.requireCycleRole(ctx, userID, cycleID, domain.TreasurerOnly)
	if err != nil {
		return nil, err
	}

	// 3. Check and apply
	var completed bool
	err = s.roscaRepo.WithTx(ctx, func(tx repositories.RoscaTx) error {
		completed = false

		locked, err := tx.LockCycle(cycleID)
		if err != nil {
			return err
		}
		if domain.CycleStatus(locked.Status) != domain.CycleActive {
			return domain.ErrCycleNotActive
		}

		entry, err := tx.LockRosterEntryByPosition(cycleID, input.Position)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return domain.ErrInvalidPosition
			}
			return err
		}
		if domain.RosterStatus(entry.Status) != domain.RosterPending {
			return domain.ErrInvalidPosition
		}

		// Every other member must have paid in position x contribution
		rosterSize, err := tx.CountRoster(cycleID)
		if err != nil {
			return err
		}
		required := locked.ContributionAmount.Mul(decimal.NewFromInt(int64(input.Position)))
		eligible, err := tx.CountEligibleMembers(cycleID, entry.UserID, required)
		if err != nil {
			return err
		}
		if eligible < rosterSize-1 {
			return domain.NotAllMembersPaid(int64(input.Position), eligible, rosterSize-1)
		}

		// The fund may never go negative
		chama, err := tx.LockChama(locked.ChamaID)
		if err != nil {
			return err
		}
		if chama.CurrentFund.LessThan(entry.PayoutAmount) {
			return domain.ErrInsufficientFunds
		}
		if err := tx.AdjustChamaFund(chama.ID, entry.PayoutAmount.Neg()); err != nil {
			if errors.Is(err, repositories.ErrStaleWrite) {
				return domain.ErrInsufficientFunds
			}
			return err
		}

		now := s.now().UTC()
		if err := tx.MarkEntryPaid(entry.ID, now, proof); err != nil {
			if errors.Is(err, repositories.ErrStaleWrite) {
				return domain.ErrInvalidPosition
			}
			return err
		}

		ref := payoutReference(cycleID, entry.UserID)
		if err := tx.CreateTransaction(&models.Transaction{
			ChamaID:           chama.ID,
			UserID:            entry.UserID,
			Amount:            entry.PayoutAmount,
			Kind:              string(domain.TxRoscaPayout),
			Description:       fmt.Sprintf("ROSCA payout: %s, position %d", locked.Name, input.Position),
			ExternalReference: &ref,
		}); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return domain.ErrDuplicatePayoutRef
			}
			return err
		}

		pending, err := tx.CountRosterByStatus(cycleID, string(domain.RosterPending))
		if err != nil {
			return err
		}
		if pending == 0 {
			if err := tx.SetCycleStatus(cycleID, string(domain.CycleActive), string(domain.CycleCompleted), &now); err != nil {
				return err
			}
			completed = true
		}

		res = &PayoutResult{
			UserID:         entry.UserID,
			Amount:         entry.PayoutAmount,
			Position:       entry.Position,
			CycleCompleted: completed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 4. Post-commit
	cache.Invalidate(ctx, s.cache, domain.RosterKey(cycleID), domain.CyclesKey(cycle.ChamaID))
	s.publish(ctx, domain.NewEvent(domain.ChamaRoom(cycle.ChamaID), domain.EventPayoutProcessed, map[string]any{
		"cycle_id": cycleID,
		"user_id":  res.UserID,
		"amount":   res.Amount.StringFixed(2),
		"position": res.Position,
	}))
	if completed {
		s.publish(ctx, statusEvent(cycle, domain.CycleCompleted))
		log.Printf("🏁 ROSCA cycle completed: ID %d", cycleID)
	}

	log.Printf("✅ ROSCA payout processed: cycle %d, position %d, user %d, amount %s",
		cycleID, res.Position, res.UserID, res.Amount.StringFixed(2))
	return res, nil
}

// ============================================================
// Position swaps
// ============================================================

// RequestSwap asks the occupant of input.TargetPosition to trade positions with the caller
func (s *RoscaService) RequestSwap(ctx context.Context, userID, cycleID uint, input *SwapRequestInput) (req *models.SwapRequest, err error) {
	ctx, done := s.observe(ctx, "request_swap", attribute.Int64("cycle.id", int64(cycleID)))
	defer func() { done(err) }()

	reason := strings.TrimSpace(input.Reason)
	v := validator.Errors{}
	v.Check(input.TargetPosition >= 1, "target_position", "must be a positive integer")
	v.Check(len(reason) <= 500, "reason", "must be at most 500 characters")
	if !v.Empty() {
		return nil, domain.InvalidFields(v)
	}

	if _, err := s.requireCycleRole(ctx, userID, cycleID, domain.AnyRole); err != nil {
		return nil, err
	}

	err = s.roscaRepo.WithTx(ctx, func(tx repositories.RoscaTx) error {
		locked, err := tx.LockCycle(cycleID)
		if err != nil {
			return err
		}
		if domain.CycleStatus(locked.Status).IsTerminal() {
			return domain.ErrCycleClosed
		}

		mine, err := tx.LockRosterEntryByUser(cycleID, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return domain.ErrNotInRoster
			}
			return err
		}
		if mine.Position == input.TargetPosition {
			return domain.ErrSwapTargetInvalid
		}

		target, err := tx.LockRosterEntryByPosition(cycleID, input.TargetPosition)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return domain.ErrSwapTargetInvalid
			}
			return err
		}
		if mine.Status != string(domain.RosterPending) || target.Status != string(domain.RosterPending) {
			return domain.ErrSwapEntryPaid
		}

		key := pendingSwapKey(cycleID, mine.Position, target.Position)
		req = &models.SwapRequest{
			CycleID:           cycleID,
			RequesterID:       userID,
			RequesterPosition: mine.Position,
			TargetPosition:    target.Position,
			TargetUserID:      target.UserID,
			Status:            string(domain.SwapPending),
			Reason:            reason,
			PendingKey:        &key,
		}
		if err := tx.CreateSwapRequest(req); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return domain.ErrSwapExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.NewEvent(domain.UserRoom(req.TargetUserID), domain.EventSwapRequested, map[string]any{
		"request_id":      req.ID,
		"cycle_id":        cycleID,
		"requester_id":    userID,
		"target_position": req.TargetPosition,
		"reason":          req.Reason,
	}))

	log.Printf("🔁 Swap requested: cycle %d, position %d -> %d (request %d)",
		cycleID, req.RequesterPosition, req.TargetPosition, req.ID)
	return req, nil
}

// RespondToSwap applies the target occupant's answer to a swap request.
// If either position was paid or moved meanwhile the request expires instead.
func (s *RoscaService) RespondToSwap(ctx context.Context, userID, requestID uint, input *SwapResponseInput) (req *models.SwapRequest, err error) {
	ctx, done := s.observe(ctx, "respond_swap", attribute.Int64("swap.id", int64(requestID)))
	defer func() { done(err) }()

	action := domain.SwapStatus(strings.ToUpper(strings.TrimSpace(input.Action)))
	if action != domain.SwapApproved && action != domain.SwapRejected {
		return nil, domain.ErrInvalidSwapAction
	}

	existing, err := s.roscaRepo.GetSwapRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrSwapNotFound
		}
		return nil, err
	}
	if existing.TargetUserID != userID {
		return nil, domain.ErrForbidden
	}

	var expired bool
	var requesterEntry, targetEntry *models.RosterEntry
	err = s.roscaRepo.WithTx(ctx, func(tx repositories.RoscaTx) error {
		expired = false

		locked, err := tx.LockCycle(existing.CycleID)
		if err != nil {
			return err
		}
		req, err = tx.LockSwapRequest(requestID)
		if err != nil {
			return err
		}
		if req.Status != string(domain.SwapPending) {
			return domain.ErrSwapNotPending
		}

		targetEntry, err = tx.LockRosterEntryByPosition(req.CycleID, req.TargetPosition)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return err
		}
		requesterEntry, err = tx.LockRosterEntryByUser(req.CycleID, req.RequesterID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return err
		}

		now := s.now().UTC()
		if domain.CycleStatus(locked.Status).IsTerminal() ||
			requesterEntry == nil || targetEntry == nil ||
			targetEntry.UserID != req.TargetUserID ||
			requesterEntry.Position != req.RequesterPosition ||
			requesterEntry.Status != string(domain.RosterPending) ||
			targetEntry.Status != string(domain.RosterPending) {
			expired = true
			req.Status = string(domain.SwapExpired)
			req.RespondedAt = &now
			return tx.ResolveSwapRequest(req.ID, string(domain.SwapExpired), now)
		}

		if action == domain.SwapApproved {
			if err := tx.SwapPositions(requesterEntry, targetEntry); err != nil {
				return err
			}
		}
		req.Status = string(action)
		req.RespondedAt = &now
		req.PendingKey = nil
		return tx.ResolveSwapRequest(req.ID, string(action), now)
	})
	if err != nil {
		return nil, err
	}
	if expired {
		log.Printf("⌛ Swap request %d expired on response", requestID)
		return nil, domain.ErrSwapExpired
	}

	// Post-commit
	if action == domain.SwapApproved {
		cache.Invalidate(ctx, s.cache, domain.RosterKey(req.CycleID))
	}
	s.publish(ctx,
		swapCompletedEvent(req, requesterEntry, action),
		swapCompletedEvent(req, targetEntry, action),
	)

	log.Printf("✅ Swap request %d %s by user %d", requestID, strings.ToLower(string(action)), userID)
	return req, nil
}

// ListSwapRequests lists the swap requests of a cycle
func (s *RoscaService) ListSwapRequests(ctx context.Context, userID, cycleID uint) ([]*models.SwapRequest, error) {
	if _, err := s.requireCycleRole(ctx, userID, cycleID, domain.AnyRole); err != nil {
		return nil, err
	}
	reqs, err := s.roscaRepo.ListSwapRequests(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []*models.SwapRequest{}
	}
	return reqs, nil
}

// ExpireStaleSwapRequests expires PENDING swap requests older than the configured TTL
func (s *RoscaService) ExpireStaleSwapRequests(ctx context.Context) (n int, err error) {
	ctx, done := s.observe(ctx, "expire_swaps")
	defer func() { done(err) }()

	cutoff := s.now().UTC().Add(-s.cfg.SwapRequestTTL)
	stale, err := s.roscaRepo.ListPendingSwapsBefore(ctx, cutoff, expireBatchSize)
	if err != nil {
		return 0, err
	}

	for _, req := range stale {
		err := s.roscaRepo.WithTx(ctx, func(tx repositories.RoscaTx) error {
			if _, err := tx.LockCycle(req.CycleID); err != nil {
				return err
			}
			return tx.ResolveSwapRequest(req.ID, string(domain.SwapExpired), s.now().UTC())
		})
		if errors.Is(err, repositories.ErrStaleWrite) {
			continue // answered meanwhile
		}
		if err != nil {
			return n, fmt.Errorf("expire swap request %d: %w", req.ID, err)
		}
		n++
	}

	if n > 0 {
		log.Printf("⌛ Expired %d stale swap requests", n)
	}
	return n, nil
}

// ============================================================
// Helpers
// ============================================================

// requireCycleRole loads a cycle and checks the caller's role in its chama
func (s *RoscaService) requireCycleRole(ctx context.Context, userID, cycleID uint, roles []domain.Role) (*models.RoscaCycle, error) {
	cycle, err := s.roscaRepo.GetCycle(ctx, cycleID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrCycleNotFound
		}
		return nil, err
	}
	if _, err := s.authz.Require(ctx, userID, cycle.ChamaID, roles); err != nil {
		return nil, err
	}
	return cycle, nil
}

func (s *RoscaService) afterStatusChange(ctx context.Context, cycle *models.RoscaCycle, status domain.CycleStatus) {
	cache.Invalidate(ctx, s.cache, domain.CyclesKey(cycle.ChamaID))
	s.publish(ctx, statusEvent(cycle, status))
}

// publish hands events to the bus; a cancelled request must not drop them
func (s *RoscaService) publish(ctx context.Context, events ...domain.Event) {
	s.events.Publish(context.WithoutCancel(ctx), events...)
}

// observe opens a span for op and returns the function that closes it
func (s *RoscaService) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracing.Start(ctx, "rosca."+op, attrs...)
	start := time.Now()
	return ctx, func(err error) {
		finishSpan(span, err)
		metrics.ObserveRosca(op, resultLabel(err), time.Since(start))
	}
}

func finishSpan(span oteltrace.Span, err error) {
	// Domain rejections are expected outcomes, not span errors
	if _, ok := domain.AsAppError(err); ok {
		span.SetAttributes(attribute.String("rosca.rejection", err.Error()))
		err = nil
	}
	tracing.End(span, err)
}

// resultLabel is the metrics label for an operation outcome
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if appErr, ok := domain.AsAppError(err); ok {
		return string(appErr.Kind)
	}
	return "error"
}

func statusEvent(cycle *models.RoscaCycle, status domain.CycleStatus) domain.Event {
	return domain.NewEvent(domain.ChamaRoom(cycle.ChamaID), domain.EventCycleStatusChanged, map[string]any{
		"cycle_id": cycle.ID,
		"status":   string(status),
	})
}

func swapCompletedEvent(req *models.SwapRequest, entry *models.RosterEntry, status domain.SwapStatus) domain.Event {
	payload := map[string]any{
		"request_id": req.ID,
		"cycle_id":   req.CycleID,
		"status":     string(status),
	}
	if status == domain.SwapApproved {
		payload["new_position"] = entry.Position
	}
	return domain.NewEvent(domain.UserRoom(entry.UserID), domain.EventSwapCompleted, payload)
}

// payoutReference is unique per (cycle, payee)
func payoutReference(cycleID, userID uint) string {
	return fmt.Sprintf("ROSCA-%d-%d", cycleID, userID)
}

// pendingSwapKey identifies the unordered position pair of a pending swap
func pendingSwapKey(cycleID uint, a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d:%d", cycleID, a, b)
}

// validAmount accepts positive amounts with at most 2 decimal places
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}
