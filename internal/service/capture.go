package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"commhub/internal/biz/repo"
	"commhub/internal/capture"
)

// TabSteerer navigates drifted tabs back to their scrape-able surfaces.
type TabSteerer interface {
	Steer(ctx context.Context)
}

// CaptureScheduler drives periodic capture passes over every hosted tab plus
// a slower tab-steering maintenance job. Overlap protection lives in the
// orchestrator's per-tab single-flight guard.
type CaptureScheduler struct {
	orchestrator *capture.Orchestrator
	host         repo.TabHost
	steerer      TabSteerer
	log          zerolog.Logger

	captureEvery time.Duration
	steerEvery   time.Duration
	cron         *cron.Cron
}

// NewCaptureScheduler creates the scheduler. steerer may be nil.
func NewCaptureScheduler(
	orchestrator *capture.Orchestrator,
	host repo.TabHost,
	steerer TabSteerer,
	captureEvery, steerEvery time.Duration,
	log zerolog.Logger,
) *CaptureScheduler {
	return &CaptureScheduler{
		orchestrator: orchestrator,
		host:         host,
		steerer:      steerer,
		log:          log.With().Str("component", "capture-scheduler").Logger(),
		captureEvery: captureEvery,
		steerEvery:   steerEvery,
	}
}

// Start registers the cron entries and begins the schedule.
func (s *CaptureScheduler) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.captureEvery), s.captureAll); err != nil {
		return fmt.Errorf("register capture job: %w", err)
	}
	if s.steerer != nil {
		if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.steerEvery), s.steerTabs); err != nil {
			return fmt.Errorf("register steer job: %w", err)
		}
	}
	s.cron.Start()
	s.log.Info().
		Dur("capture_every", s.captureEvery).
		Dur("steer_every", s.steerEvery).
		Msg("capture schedule started")
	return nil
}

// Stop halts the schedule and waits for running jobs to finish.
func (s *CaptureScheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info().Msg("capture schedule stopped")
}

func (s *CaptureScheduler) captureAll() {
	ctx := context.Background()
	for _, tab := range s.host.Tabs() {
		report := s.orchestrator.CaptureVisibleMessages(ctx, tab.ID())
		if !report.OK {
			s.log.Debug().Str("tab", tab.ID()).Strs("errors", report.Errors).Msg("capture pass skipped")
			continue
		}
		if report.InsertedCount > 0 {
			s.log.Info().
				Str("tab", tab.ID()).
				Int("inserted", report.InsertedCount).
				Int("duplicates", report.DuplicateCount).
				Msg("captured new messages")
		}
	}
}

func (s *CaptureScheduler) steerTabs() {
	s.steerer.Steer(context.Background())
}
