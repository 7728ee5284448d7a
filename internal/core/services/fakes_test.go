package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/adapters/persistence/repositories"
	"chamahub/internal/core/domain"

	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory database behind every repository interface.
// WithTx serializes units of work and restores a snapshot when fn fails.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID        uint
	users         map[uint]*models.User
	tokens        map[uint]*models.RefreshToken
	chamas        map[uint]*models.Chama
	members       map[uint]*models.ChamaMember
	cycles        map[uint]*models.RoscaCycle
	roster        map[uint]*models.RosterEntry
	swaps         map[uint]*models.SwapRequest
	contributions []*models.Contribution
	transactions  []*models.Transaction

	clock func() time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[uint]*models.User{},
		tokens:  map[uint]*models.RefreshToken{},
		chamas:  map[uint]*models.Chama{},
		members: map[uint]*models.ChamaMember{},
		cycles:  map[uint]*models.RoscaCycle{},
		roster:  map[uint]*models.RosterEntry{},
		swaps:   map[uint]*models.SwapRequest{},
		clock:   time.Now,
	}
}

func (s *fakeStore) id() uint {
	s.nextID++
	return s.nextID
}

type fakeSnapshot struct {
	nextID        uint
	users         map[uint]*models.User
	tokens        map[uint]*models.RefreshToken
	chamas        map[uint]*models.Chama
	members       map[uint]*models.ChamaMember
	cycles        map[uint]*models.RoscaCycle
	roster        map[uint]*models.RosterEntry
	swaps         map[uint]*models.SwapRequest
	contributions int
	transactions  int
}

func cloneMap[T any](in map[uint]*T) map[uint]*T {
	out := make(map[uint]*T, len(in))
	for k, v := range in {
		cp := *v
		out[k] = &cp
	}
	return out
}

func (s *fakeStore) snapshot() fakeSnapshot {
	return fakeSnapshot{
		nextID:        s.nextID,
		users:         cloneMap(s.users),
		tokens:        cloneMap(s.tokens),
		chamas:        cloneMap(s.chamas),
		members:       cloneMap(s.members),
		cycles:        cloneMap(s.cycles),
		roster:        cloneMap(s.roster),
		swaps:         cloneMap(s.swaps),
		contributions: len(s.contributions),
		transactions:  len(s.transactions),
	}
}

func (s *fakeStore) restore(snap fakeSnapshot) {
	s.nextID = snap.nextID
	s.users = snap.users
	s.tokens = snap.tokens
	s.chamas = snap.chamas
	s.members = snap.members
	s.cycles = snap.cycles
	s.roster = snap.roster
	s.swaps = snap.swaps
	s.contributions = s.contributions[:snap.contributions]
	s.transactions = s.transactions[:snap.transactions]
}

// ============================================================
// Seeding helpers
// ============================================================

func (s *fakeStore) addUser(email string, trust int) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	u := &models.User{
		ID:         id,
		Email:      email,
		Phone:      "+2547000" + padID(id),
		FirstName:  "User",
		LastName:   padID(id),
		TrustScore: trust,
		IsActive:   true,
		CreatedAt:  s.clock(),
	}
	s.users[id] = u
	cp := *u
	return &cp
}

func (s *fakeStore) addChama(name string, fund decimal.Decimal) *models.Chama {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	c := &models.Chama{ID: id, Name: name, CurrentFund: fund, Visibility: "PRIVATE", InviteCode: "INV" + padID(id)}
	s.chamas[id] = c
	cp := *c
	return &cp
}

func (s *fakeStore) addMember(chamaID, userID uint, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.members[id] = &models.ChamaMember{
		ID: id, ChamaID: chamaID, UserID: userID, Role: string(role), IsActive: true, JoinedAt: s.clock(),
	}
}

func (s *fakeStore) chamaFund(chamaID uint) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chamas[chamaID].CurrentFund
}

func (s *fakeStore) setChamaFund(chamaID uint, fund decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chamas[chamaID].CurrentFund = fund
}

func (s *fakeStore) transactionsOfKind(kind domain.TransactionKind) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, t := range s.transactions {
		if t.Kind == string(kind) {
			out = append(out, *t)
		}
	}
	return out
}

func (s *fakeStore) userByEmail(email string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return *u
		}
	}
	return models.User{}
}

func padID(id uint) string {
	const digits = "0123456789"
	out := []byte{'0', '0', '0', '0'}
	for i := 3; i >= 0 && id > 0; i-- {
		out[i] = digits[id%10]
		id /= 10
	}
	return string(out)
}

// ============================================================
// UserRepository
// ============================================================

type fakeUsers struct{ *fakeStore }

func (r fakeUsers) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email || u.Phone == user.Phone {
			return repositories.ErrDuplicateKey
		}
	}
	user.ID = r.id()
	user.CreatedAt = r.clock()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r fakeUsers) find(match func(u *models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r fakeUsers) GetByID(_ context.Context, id uint) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r fakeUsers) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Phone == phone })
}

func (r fakeUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r fakeUsers) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	_, err := r.GetByPhone(ctx, phone)
	return err == nil, nil
}

func (r fakeUsers) UpdateFields(_ context.Context, id uint, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrStaleWrite
	}
	for k, v := range fields {
		switch k {
		case "last_login_at":
			t := v.(time.Time)
			u.LastLoginAt = &t
		case "password_hash":
			u.PasswordHash = v.(string)
		case "first_name":
			u.FirstName = v.(string)
		case "last_name":
			u.LastName = v.(string)
		case "email_verify_hash":
			h := v.(string)
			u.EmailVerifyHash = &h
		case "email_verify_expires":
			t := v.(time.Time)
			u.EmailVerifyExpires = &t
		case "email_verify_sent_at":
			t := v.(time.Time)
			u.EmailVerifySentAt = &t
		case "phone_otp_hash":
			h := v.(string)
			u.PhoneOTPHash = &h
		case "phone_otp_expires":
			t := v.(time.Time)
			u.PhoneOTPExpires = &t
		case "phone_otp_sent_at":
			t := v.(time.Time)
			u.PhoneOTPSentAt = &t
		case "phone_otp_attempts":
			u.PhoneOTPAttempts = v.(int)
		case "reset_token_hash":
			h := v.(string)
			u.ResetTokenHash = &h
		case "reset_token_expires":
			t := v.(time.Time)
			u.ResetTokenExpires = &t
		case "reset_sent_at":
			t := v.(time.Time)
			u.ResetSentAt = &t
		default:
			panic("fakeUsers.UpdateFields: unsupported column " + k)
		}
	}
	return nil
}

func (r fakeUsers) ConsumeEmailVerification(_ context.Context, tokenHash string, now time.Time) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.EmailVerifyHash != nil && *u.EmailVerifyHash == tokenHash &&
			u.EmailVerifyExpires != nil && u.EmailVerifyExpires.After(now) {
			u.EmailVerified = true
			u.EmailVerifyHash = nil
			u.EmailVerifyExpires = nil
			return u.ID, nil
		}
	}
	return 0, repositories.ErrNotFound
}

func (r fakeUsers) IncrementOTPAttempts(_ context.Context, id uint) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, repositories.ErrStaleWrite
	}
	u.PhoneOTPAttempts++
	return u.PhoneOTPAttempts, nil
}

func (r fakeUsers) ConsumePhoneOTP(_ context.Context, id uint, codeHash string, maxAttempts int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.PhoneOTPHash == nil || *u.PhoneOTPHash != codeHash ||
		u.PhoneOTPExpires == nil || !u.PhoneOTPExpires.After(now) || u.PhoneOTPAttempts >= maxAttempts {
		return repositories.ErrStaleWrite
	}
	u.PhoneVerified = true
	u.PhoneOTPHash = nil
	u.PhoneOTPExpires = nil
	u.PhoneOTPAttempts = 0
	return nil
}

func (r fakeUsers) ConsumePasswordReset(_ context.Context, tokenHash, passwordHash string, now time.Time) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash &&
			u.ResetTokenExpires != nil && u.ResetTokenExpires.After(now) {
			u.PasswordHash = passwordHash
			u.ResetTokenHash = nil
			u.ResetTokenExpires = nil
			return u.ID, nil
		}
	}
	return 0, repositories.ErrNotFound
}

// ============================================================
// RefreshTokenRepository
// ============================================================

type fakeTokens struct{ *fakeStore }

func (r fakeTokens) Create(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(token)
}

func (r fakeTokens) createLocked(token *models.RefreshToken) error {
	for _, t := range r.tokens {
		if t.TokenHash == token.TokenHash {
			return repositories.ErrDuplicateKey
		}
	}
	token.ID = r.id()
	token.CreatedAt = r.clock()
	cp := *token
	r.tokens[token.ID] = &cp
	return nil
}

func (r fakeTokens) GetByTokenHash(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r fakeTokens) Rotate(_ context.Context, oldID uint, next *models.RefreshToken, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.tokens[oldID]
	if !ok || old.RevokedAt != nil {
		return repositories.ErrStaleWrite
	}
	if err := r.createLocked(next); err != nil {
		return err
	}
	old.RevokedAt = &now
	old.ReplacedByID = &next.ID
	return nil
}

func (r fakeTokens) RevokeByFingerprint(_ context.Context, userID uint, fingerprint string) (int64, error) {
	return r.revoke(func(t *models.RefreshToken) bool {
		return t.UserID == userID && t.Fingerprint == fingerprint
	}), nil
}

func (r fakeTokens) RevokeAllByUserID(_ context.Context, userID uint) (int64, error) {
	return r.revoke(func(t *models.RefreshToken) bool { return t.UserID == userID }), nil
}

func (r fakeTokens) revoke(match func(t *models.RefreshToken) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	var n int64
	for _, t := range r.tokens {
		if t.RevokedAt == nil && match(t) {
			t.RevokedAt = &now
			n++
		}
	}
	return n
}

func (r fakeTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tokens {
		if t.ExpiresAt.Before(before) {
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}

func (r fakeTokens) CountActiveByUserID(_ context.Context, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	var n int64
	for _, t := range r.tokens {
		if t.UserID == userID && t.RevokedAt == nil && t.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

// ============================================================
// ChamaRepository and MembershipRepository
// ============================================================

type fakeChamas struct{ *fakeStore }

func (r fakeChamas) Create(_ context.Context, chama *models.Chama, founder *models.ChamaMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chamas {
		if c.InviteCode == chama.InviteCode {
			return repositories.ErrDuplicateKey
		}
	}
	chama.ID = r.id()
	cp := *chama
	r.chamas[chama.ID] = &cp

	founder.ID = r.id()
	founder.ChamaID = chama.ID
	founder.JoinedAt = r.clock()
	fcp := *founder
	r.members[founder.ID] = &fcp
	return nil
}

func (r fakeChamas) GetByID(_ context.Context, id uint) (*models.Chama, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chamas[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r fakeChamas) GetByInviteCode(_ context.Context, code string) (*models.Chama, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chamas {
		if c.InviteCode == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r fakeChamas) ListByUser(_ context.Context, userID uint) ([]*models.Chama, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Chama
	for _, m := range r.members {
		if m.UserID == userID && m.IsActive {
			cp := *r.chamas[m.ChamaID]
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakeMembers struct{ *fakeStore }

func (r fakeMembers) Get(_ context.Context, chamaID, userID uint) (*models.ChamaMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.ChamaID == chamaID && m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r fakeMembers) Create(_ context.Context, member *models.ChamaMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.ChamaID == member.ChamaID && m.UserID == member.UserID {
			return repositories.ErrDuplicateKey
		}
	}
	member.ID = r.id()
	member.JoinedAt = r.clock()
	cp := *member
	r.members[member.ID] = &cp
	return nil
}

func (r fakeMembers) Reactivate(_ context.Context, id uint, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok || m.IsActive {
		return repositories.ErrStaleWrite
	}
	m.IsActive = true
	m.Role = role
	return nil
}

func (r fakeMembers) ListByChama(_ context.Context, chamaID uint, offset, limit int) ([]*models.ChamaMember, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*models.ChamaMember
	for _, m := range r.members {
		if m.ChamaID == chamaID {
			cp := *m
			if u, ok := r.users[m.UserID]; ok {
				ucp := *u
				cp.User = &ucp
			}
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := int64(len(all))
	if offset >= len(all) {
		return []*models.ChamaMember{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r fakeMembers) ActiveChamaIDs(_ context.Context, userID uint) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uint
	for _, m := range r.members {
		if m.UserID == userID && m.IsActive {
			ids = append(ids, m.ChamaID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r fakeMembers) UpdateRole(_ context.Context, chamaID, userID uint, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.ChamaID == chamaID && m.UserID == userID && m.IsActive {
			m.Role = role
			return nil
		}
	}
	return repositories.ErrStaleWrite
}

func (r fakeMembers) SetActive(_ context.Context, chamaID, userID uint, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.ChamaID == chamaID && m.UserID == userID {
			if m.IsActive == active {
				return repositories.ErrStaleWrite
			}
			m.IsActive = active
			return nil
		}
	}
	return repositories.ErrStaleWrite
}

// ============================================================
// RoscaRepository
// ============================================================

type fakeRosca struct{ *fakeStore }

func (r fakeRosca) GetCycle(_ context.Context, id uint) (*models.RoscaCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cycles[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r fakeRosca) summaryLocked(c *models.RoscaCycle) *repositories.CycleSummary {
	sum := &repositories.CycleSummary{RoscaCycle: *c}
	for _, e := range r.roster {
		if e.CycleID != c.ID {
			continue
		}
		sum.MemberCount++
		switch e.Status {
		case string(domain.RosterPaid):
			sum.PaidCount++
		case string(domain.RosterPending):
			sum.PendingCount++
		}
	}
	return sum
}

func (r fakeRosca) GetCycleSummary(_ context.Context, id uint) (*repositories.CycleSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cycles[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return r.summaryLocked(c), nil
}

func (r fakeRosca) ListCyclesByChama(_ context.Context, chamaID uint) ([]*repositories.CycleSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repositories.CycleSummary
	for _, c := range r.cycles {
		if c.ChamaID == chamaID {
			out = append(out, r.summaryLocked(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r fakeRosca) ListRoster(_ context.Context, cycleID uint) ([]*models.RosterEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.RosterEntry
	for _, e := range r.roster {
		if e.CycleID == cycleID {
			cp := *e
			if u, ok := r.users[e.UserID]; ok {
				cp.User = &models.User{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
			}
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r fakeRosca) GetSwapRequest(_ context.Context, id uint) (*models.SwapRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.swaps[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (r fakeRosca) ListSwapRequests(_ context.Context, cycleID uint) ([]*models.SwapRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SwapRequest
	for _, req := range r.swaps {
		if req.CycleID == cycleID {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r fakeRosca) ListPendingSwapsBefore(_ context.Context, before time.Time, limit int) ([]*models.SwapRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SwapRequest
	for _, req := range r.swaps {
		if req.Status == string(domain.SwapPending) && req.CreatedAt.Before(before) {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakeRosca) WithTx(ctx context.Context, fn func(tx repositories.RoscaTx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	snap := r.snapshot()
	r.mu.Unlock()

	if err := fn(fakeTx{r.fakeStore}); err != nil {
		r.mu.Lock()
		r.restore(snap)
		r.mu.Unlock()
		return err
	}
	return nil
}

// ============================================================
// RoscaTx
// ============================================================

type fakeTx struct{ *fakeStore }

func (t fakeTx) ActiveMembers(chamaID uint) ([]*models.ChamaMember, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*models.ChamaMember
	for _, m := range t.members {
		if m.ChamaID == chamaID && m.IsActive {
			cp := *m
			if u, ok := t.users[m.UserID]; ok {
				ucp := *u
				cp.User = &ucp
			}
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t fakeTx) LockChama(chamaID uint) (*models.Chama, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chamas[chamaID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (t fakeTx) AdjustChamaFund(chamaID uint, delta decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chamas[chamaID]
	if !ok || c.CurrentFund.Add(delta).IsNegative() {
		return repositories.ErrStaleWrite
	}
	c.CurrentFund = c.CurrentFund.Add(delta)
	return nil
}

func (t fakeTx) CreateCycle(cycle *models.RoscaCycle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cycle.ID = t.id()
	cycle.CreatedAt = t.clock()
	cp := *cycle
	t.cycles[cycle.ID] = &cp
	return nil
}

func (t fakeTx) LockCycle(cycleID uint) (*models.RoscaCycle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.cycles[cycleID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (t fakeTx) SetCycleStatus(cycleID uint, from, to string, endDate *time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.cycles[cycleID]
	if !ok || c.Status != from {
		return repositories.ErrStaleWrite
	}
	c.Status = to
	if endDate != nil {
		d := *endDate
		c.EndDate = &d
	}
	return nil
}

func (t fakeTx) CreateRosterEntries(entries []*models.RosterEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		for _, existing := range t.roster {
			if existing.CycleID == e.CycleID && (existing.Position == e.Position || existing.UserID == e.UserID) {
				return repositories.ErrDuplicateKey
			}
		}
		e.ID = t.id()
		cp := *e
		cp.User = nil
		t.roster[e.ID] = &cp
	}
	return nil
}

func (t fakeTx) lockEntry(match func(e *models.RosterEntry) bool) (*models.RosterEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.roster {
		if match(e) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (t fakeTx) LockRosterEntryByPosition(cycleID uint, position int) (*models.RosterEntry, error) {
	return t.lockEntry(func(e *models.RosterEntry) bool { return e.CycleID == cycleID && e.Position == position })
}

func (t fakeTx) LockRosterEntryByUser(cycleID, userID uint) (*models.RosterEntry, error) {
	return t.lockEntry(func(e *models.RosterEntry) bool { return e.CycleID == cycleID && e.UserID == userID })
}

func (t fakeTx) CountRoster(cycleID uint) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n int64
	for _, e := range t.roster {
		if e.CycleID == cycleID {
			n++
		}
	}
	return n, nil
}

func (t fakeTx) CountRosterByStatus(cycleID uint, status string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n int64
	for _, e := range t.roster {
		if e.CycleID == cycleID && e.Status == status {
			n++
		}
	}
	return n, nil
}

func (t fakeTx) CountEligibleMembers(cycleID, excludeUserID uint, required decimal.Decimal) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n int64
	for _, e := range t.roster {
		if e.CycleID != cycleID || e.UserID == excludeUserID {
			continue
		}
		sum := decimal.Zero
		for _, c := range t.contributions {
			if c.CycleID != nil && *c.CycleID == cycleID && c.UserID == e.UserID {
				sum = sum.Add(c.Amount)
			}
		}
		if sum.GreaterThanOrEqual(required) {
			n++
		}
	}
	return n, nil
}

func (t fakeTx) MarkEntryPaid(entryID uint, paidAt time.Time, proof *string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.roster[entryID]
	if !ok || e.Status != string(domain.RosterPending) {
		return repositories.ErrStaleWrite
	}
	e.Status = string(domain.RosterPaid)
	e.PayoutDate = &paidAt
	e.PaymentProof = proof
	return nil
}

// SwapPositions mirrors the three-step sentinel update and enforces (cycle, position) uniqueness
func (t fakeTx) SwapPositions(a, b *models.RosterEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := func(id uint, position int) error {
		e, ok := t.roster[id]
		if !ok || e.Status != string(domain.RosterPending) {
			return repositories.ErrStaleWrite
		}
		for _, other := range t.roster {
			if other.ID != id && other.CycleID == e.CycleID && other.Position == position {
				return repositories.ErrDuplicateKey
			}
		}
		e.Position = position
		return nil
	}
	if err := set(a.ID, -a.Position); err != nil {
		return err
	}
	if err := set(b.ID, a.Position); err != nil {
		return err
	}
	if err := set(a.ID, b.Position); err != nil {
		return err
	}
	a.Position, b.Position = b.Position, a.Position
	return nil
}

func (t fakeTx) CountContributions(cycleID uint) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n int64
	for _, c := range t.contributions {
		if c.CycleID != nil && *c.CycleID == cycleID {
			n++
		}
	}
	return n, nil
}

func (t fakeTx) CreateContribution(contribution *models.Contribution) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	contribution.ID = t.id()
	contribution.RecordedAt = t.clock()
	cp := *contribution
	t.contributions = append(t.contributions, &cp)
	return nil
}

func (t fakeTx) CreateTransaction(txn *models.Transaction) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if txn.ExternalReference != nil {
		for _, existing := range t.transactions {
			if existing.ExternalReference != nil && *existing.ExternalReference == *txn.ExternalReference {
				return repositories.ErrDuplicateKey
			}
		}
	}
	txn.ID = t.id()
	txn.CreatedAt = t.clock()
	cp := *txn
	t.transactions = append(t.transactions, &cp)
	return nil
}

func (t fakeTx) CreateSwapRequest(req *models.SwapRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if req.PendingKey != nil {
		for _, existing := range t.swaps {
			if existing.PendingKey != nil && *existing.PendingKey == *req.PendingKey {
				return repositories.ErrDuplicateKey
			}
		}
	}
	req.ID = t.id()
	req.CreatedAt = t.clock()
	cp := *req
	t.swaps[req.ID] = &cp
	return nil
}

func (t fakeTx) LockSwapRequest(id uint) (*models.SwapRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.swaps[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (t fakeTx) ResolveSwapRequest(id uint, status string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.swaps[id]
	if !ok || req.Status != string(domain.SwapPending) {
		return repositories.ErrStaleWrite
	}
	req.Status = status
	req.RespondedAt = &at
	req.PendingKey = nil
	return nil
}

// ============================================================
// Collaborators
// ============================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) ofType(eventType string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type recordingNotifier struct {
	mu          sync.Mutex
	emailTokens map[uint]string
	otps        map[uint]string
	resets      map[uint]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		emailTokens: map[uint]string{},
		otps:        map[uint]string{},
		resets:      map[uint]string{},
	}
}

func (n *recordingNotifier) SendEmailVerification(user *models.User, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emailTokens[user.ID] = token
}

func (n *recordingNotifier) SendPhoneOTP(user *models.User, code string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.otps[user.ID] = code
}

func (n *recordingNotifier) SendPasswordReset(user *models.User, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets[user.ID] = token
}

func (n *recordingNotifier) emailToken(userID uint) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.emailTokens[userID]
}

func (n *recordingNotifier) otp(userID uint) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.otps[userID]
}

func (n *recordingNotifier) reset(userID uint) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	token, ok := n.resets[userID]
	return token, ok
}
