package services

import (
	"context"
	"os"
	"testing"

	"chamahub/internal/adapters/cache"
	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/config"
	"chamahub/internal/core/domain"
	"chamahub/internal/pkg/jwt"
	"chamahub/internal/pkg/password"
	"chamahub/internal/pkg/ratelimit"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	password.Cost = bcrypt.MinCost
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	require.NoError(t, env.Parse(cfg))
	require.NoError(t, cfg.Validate())
	return cfg
}

var (
	deviceA = ClientInfo{UserAgent: "chamahub-android/2.1", IP: "10.0.0.1"}
	deviceB = ClientInfo{UserAgent: "Mozilla/5.0 (X11; Linux x86_64)", IP: "10.0.0.2"}
)

// ============================================================
// Auth fixture
// ============================================================

type authFixture struct {
	store    *fakeStore
	notifier *recordingNotifier
	cfg      *config.Config
	svc      *AuthService
}

func newAuthFixture(t *testing.T, configure ...func(cfg *config.Config)) *authFixture {
	t.Helper()
	cfg := testConfig(t)
	for _, fn := range configure {
		fn(cfg)
	}

	keys, err := jwt.NewKeyRing(cfg.JWT.Issuer, cfg.JWT.ActiveKID, cfg.JWT.Keys, nil)
	require.NoError(t, err)

	limiter := ratelimit.NewMemoryLimiter()
	t.Cleanup(limiter.Stop)

	store := newFakeStore()
	notifier := newRecordingNotifier()
	return &authFixture{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		svc:      NewAuthService(fakeUsers{store}, fakeTokens{store}, keys, limiter, notifier, cfg),
	}
}

const testPassword = "Harambee2026"

func (f *authFixture) register(t *testing.T, email, phone string) *AuthResponse {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), &RegisterInput{
		Email:       email,
		Password:    testPassword,
		FirstName:   "Wanjiku",
		LastName:    "Kamau",
		PhoneNumber: phone,
	})
	require.NoError(t, err)
	return resp
}

func (f *authFixture) login(t *testing.T, email string, client ClientInfo) *AuthResponse {
	t.Helper()
	resp, err := f.svc.Login(context.Background(), &LoginInput{Email: email, Password: testPassword}, client)
	require.NoError(t, err)
	return resp
}

// ============================================================
// ROSCA fixture
// ============================================================

// roscaFixture is a chama whose first member is the chairperson, second the
// treasurer and the rest plain members
type roscaFixture struct {
	store  *fakeStore
	events *recordingPublisher
	cache  *cache.Memory
	cfg    *config.Config
	svc    *RoscaService
	chama  *models.Chama
	users  []*models.User
}

func newRoscaFixture(t *testing.T, members int) *roscaFixture {
	t.Helper()
	store := newFakeStore()
	chama := store.addChama("Umoja Women Group", decimal.Zero)

	users := make([]*models.User, members)
	for i := range users {
		users[i] = store.addUser("member"+padID(uint(i))+"@chama.test", domain.DefaultTrust)
		role := domain.RoleMember
		switch i {
		case 0:
			role = domain.RoleChairperson
		case 1:
			role = domain.RoleTreasurer
		}
		store.addMember(chama.ID, users[i].ID, role)
	}

	cfg := testConfig(t)
	events := &recordingPublisher{}
	mem := cache.NewMemory()
	authz := NewAuthzService(fakeMembers{store})
	return &roscaFixture{
		store:  store,
		events: events,
		cache:  mem,
		cfg:    cfg,
		svc:    NewRoscaService(fakeRosca{store}, authz, mem, events, cfg),
		chama:  chama,
		users:  users,
	}
}

func (f *roscaFixture) chair() uint     { return f.users[0].ID }
func (f *roscaFixture) treasurer() uint { return f.users[1].ID }

func (f *roscaFixture) ids() []uint {
	out := make([]uint, len(f.users))
	for i, u := range f.users {
		out[i] = u.ID
	}
	return out
}

func (f *roscaFixture) cycleInput(method domain.RosterMethod, manual []uint) *CreateCycleInput {
	return &CreateCycleInput{
		ChamaID:            f.chama.ID,
		CycleName:          "2026 Merry-go-round",
		ContributionAmount: decimal.NewFromInt(100),
		Frequency:          string(domain.FrequencyMonthly),
		StartDate:          "2026-11-01",
		RosterMethod:       string(method),
		ManualRoster:       manual,
	}
}

// manualCycle creates a cycle whose positions follow the order of f.users
func (f *roscaFixture) manualCycle(t *testing.T) *models.RoscaCycle {
	t.Helper()
	res, err := f.svc.CreateCycle(context.Background(), f.chair(), f.cycleInput(domain.RosterManual, f.ids()))
	require.NoError(t, err)
	return res.Cycle
}

// contribute records amount for each user, by themselves
func (f *roscaFixture) contribute(t *testing.T, cycleID uint, amount int64, users ...uint) {
	t.Helper()
	for _, userID := range users {
		_, err := f.svc.RecordContribution(context.Background(), userID, cycleID, &ContributionInput{
			Amount: decimal.NewFromInt(amount),
		})
		require.NoError(t, err)
	}
}

func (f *roscaFixture) payout(cycleID uint, position int) (*PayoutResult, error) {
	return f.svc.ProcessPayout(context.Background(), f.treasurer(), cycleID, &PayoutInput{Position: position})
}

func (f *roscaFixture) rosterOf(t *testing.T, cycleID uint) []*models.RosterEntry {
	t.Helper()
	entries, err := fakeRosca{f.store}.ListRoster(context.Background(), cycleID)
	require.NoError(t, err)
	return entries
}

func (f *roscaFixture) cycleStatus(t *testing.T, cycleID uint) string {
	t.Helper()
	cycle, err := fakeRosca{f.store}.GetCycle(context.Background(), cycleID)
	require.NoError(t, err)
	return cycle.Status
}
