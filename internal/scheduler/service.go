package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/solosuccess/competitor-intel/internal/briefing"
	"github.com/solosuccess/competitor-intel/internal/config"
	"github.com/solosuccess/competitor-intel/internal/models"
)

// Tracker runs the scheduled tracking pass
type Tracker interface {
	TrackAllActive(ctx context.Context) (*models.TrackingSummary, error)
}

// BriefingDeliverer sends briefings of a given kind to all eligible users
type BriefingDeliverer interface {
	Deliver(ctx context.Context, kind string) (*models.DeliveryResult, error)
}

// jobTimeout bounds a single scheduled run
const jobTimeout = 2 * time.Hour

// Service handles scheduling of tracking and briefing jobs
type Service struct {
	config    *config.Config
	tracker   Tracker
	briefings BriefingDeliverer
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, trackerService Tracker, briefingService BriefingDeliverer) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config:    cfg,
		tracker:   trackerService,
		briefings: briefingService,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(cfg.Location()),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registers the jobs and begins running them
func (s *Service) Start() error {
	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"competitor tracking", s.config.TrackSchedule, s.runTracking},
		{"daily briefing", s.config.DailyBriefingSchedule, func() { s.runBriefings(briefing.KindDaily) }},
		{"weekly briefing", s.config.WeeklyBriefingSchedule, func() { s.runBriefings(briefing.KindWeekly) }},
	}

	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.schedule, job.run); err != nil {
			return fmt.Errorf("invalid %s schedule %q: %w", job.name, job.schedule, err)
		}
	}

	s.cron.Start()
	logrus.Infof("Scheduler started (tracking %q, daily briefing %q, weekly briefing %q, %s)",
		s.config.TrackSchedule, s.config.DailyBriefingSchedule, s.config.WeeklyBriefingSchedule, s.config.Location())
	return nil
}

func (s *Service) runTracking() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	logrus.Info("Starting scheduled competitor tracking")
	summary, err := s.tracker.TrackAllActive(ctx)
	if err != nil {
		logrus.Errorf("Scheduled competitor tracking failed: %v", err)
		return
	}
	logrus.Infof("Scheduled tracking finished: %d competitors, %d activities, %d errors",
		summary.TotalTracked, summary.TotalActivities, summary.Errors)
}

func (s *Service) runBriefings(kind string) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	result, err := s.briefings.Deliver(ctx, kind)
	if err != nil {
		logrus.Errorf("Scheduled %s briefing delivery failed: %v", kind, err)
		return
	}
	logrus.Infof("Scheduled %s briefings sent: %d, errors: %d", kind, result.SentCount, result.ErrorCount)
}

// Stop cancels running jobs and waits for them to return
func (s *Service) Stop() {
	if s.cron != nil {
		s.cancel()
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
