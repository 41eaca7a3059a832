package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/matchgiving/matchfund-backend/internal/domain"
)

// Sweeper reclaims reservations whose window has lapsed. Satisfied by the
// expiry service.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Redistributor moves matches onto better-ranked fundings and fills
// donations that missed out earlier. Satisfied by the redistribution service.
type Redistributor interface {
	Run(ctx context.Context) (int, error)
	RetrospectiveMatch(ctx context.Context) (decimal.Decimal, error)
}

const maintenanceLease = "campaign-maintenance"

// Scheduler manages the engine's cron tasks.
type Scheduler struct {
	Cron          *cron.Cron
	Sweeper       Sweeper
	Redistributor Redistributor
	Locks         domain.TaskLockRepository
	LeaseTTL      time.Duration
	Ctx           context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, sweeper Sweeper, redistributor Redistributor, locks domain.TaskLockRepository, leaseTTL time.Duration) *Scheduler {
	return &Scheduler{
		Cron:          cron.New(),
		Sweeper:       sweeper,
		Redistributor: redistributor,
		Locks:         locks,
		LeaseTTL:      leaseTTL,
		Ctx:           ctx,
	}
}

// RegisterAll registers the expiry sweep and the maintenance task.
func (s *Scheduler) RegisterAll(expiryCron, maintenanceCron string) error {
	if _, err := s.Cron.AddFunc(expiryCron, s.expiryTask); err != nil {
		return fmt.Errorf("register expiry sweep: %w", err)
	}
	if _, err := s.Cron.AddFunc(maintenanceCron, s.maintenanceTask); err != nil {
		return fmt.Errorf("register maintenance task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunMaintenanceNow executes the maintenance task immediately (for manual
// trigger on startup).
func (s *Scheduler) RunMaintenanceNow() {
	s.maintenanceTask()
}

func (s *Scheduler) expiryTask() {
	log.Println("[INFO] running expiry sweep")
	released, err := s.Sweeper.Sweep(s.Ctx)
	if err != nil {
		log.Printf("[ERROR] expiry sweep: %v", err)
		return
	}
	if released > 0 {
		log.Printf("[INFO] expiry sweep released %d reservations", released)
	}
}

// maintenanceTask runs redistribution and then retrospective matching under
// one lease. The two passes touch the same fundings and withdrawals, so
// running them concurrently across instances could swap a withdrawal while
// its donation is being re-matched. The lease serializes the whole pass.
func (s *Scheduler) maintenanceTask() {
	acquired, err := s.Locks.Acquire(s.Ctx, maintenanceLease, s.LeaseTTL)
	if err != nil {
		log.Printf("[ERROR] acquire maintenance lease: %v", err)
		return
	}
	if !acquired {
		log.Println("[INFO] maintenance lease held elsewhere, skipping run")
		return
	}
	defer func() {
		if err := s.Locks.Release(s.Ctx, maintenanceLease); err != nil {
			log.Printf("[ERROR] release maintenance lease: %v", err)
		}
	}()

	log.Println("[INFO] running redistribution pass")
	moved, err := s.Redistributor.Run(s.Ctx)
	if err != nil {
		log.Printf("[ERROR] redistribution pass: %v", err)
	} else if moved > 0 {
		log.Printf("[INFO] redistribution moved matches for %d donations", moved)
	}

	log.Println("[INFO] running retrospective match pass")
	matched, err := s.Redistributor.RetrospectiveMatch(s.Ctx)
	if err != nil {
		log.Printf("[ERROR] retrospective match pass: %v", err)
		return
	}
	if matched.IsPositive() {
		log.Printf("[INFO] retrospective pass matched %s", matched.String())
	}
}
