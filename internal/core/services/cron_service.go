package services

import (
	"context"
	"log"
	"time"

	"chamahub/internal/adapters/persistence/repositories"
	"chamahub/internal/observability/metrics"

	"github.com/robfig/cron/v3"
)

// ============================================================
// Background maintenance jobs
// ============================================================

const (
	// expireSwapsSpec runs the swap expiry job every 15 minutes
	expireSwapsSpec = "@every 15m"
	// purgeTokensSpec runs the refresh token purge daily at 03:15
	purgeTokensSpec = "15 3 * * *"

	// tokenRetention keeps expired refresh tokens around for audit
	tokenRetention = 7 * 24 * time.Hour
	jobTimeout     = 2 * time.Minute
)

// CronService runs scheduled maintenance jobs
type CronService struct {
	rosca       *RoscaService
	refreshRepo repositories.RefreshTokenRepository
	cron        *cron.Cron
	now         func() time.Time
}

// NewCronService creates a new cron service
func NewCronService(rosca *RoscaService, refreshRepo repositories.RefreshTokenRepository) *CronService {
	return &CronService{
		rosca:       rosca,
		refreshRepo: refreshRepo,
		cron:        cron.New(cron.WithLocation(time.UTC)),
		now:         time.Now,
	}
}

// Start registers the jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(expireSwapsSpec, s.job("expire_swaps", s.RunExpireSwaps)); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(purgeTokensSpec, s.job("purge_tokens", s.RunPurgeTokens)); err != nil {
		return err
	}
	s.cron.Start()
	log.Println("🚀 CronService started")
	return nil
}

// Stop waits for running jobs to finish
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	log.Println("🛑 CronService stopped")
}

// RunExpireSwaps expires stale PENDING swap requests
func (s *CronService) RunExpireSwaps(ctx context.Context) error {
	_, err := s.rosca.ExpireStaleSwapRequests(ctx)
	return err
}

// RunPurgeTokens deletes refresh tokens expired for longer than the retention window
func (s *CronService) RunPurgeTokens(ctx context.Context) error {
	n, err := s.refreshRepo.DeleteExpired(ctx, s.now().UTC().Add(-tokenRetention))
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("🧹 Purged %d expired refresh tokens", n)
	}
	return nil
}

// job wraps fn with a timeout, logging and metrics
func (s *CronService) job(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			metrics.ObserveCron(name, "error")
			log.Printf("❌ Cron job %s failed: %v", name, err)
			return
		}
		metrics.ObserveCron(name, "success")
	}
}
