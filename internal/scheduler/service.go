package scheduler

import (
	"context"
	"time"

	"github.com/conversationai/harassment-manager/internal/config"
	"github.com/conversationai/harassment-manager/internal/items"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service periodically warms the item cache so the trailing window of
// mentions is already fetched and scored when a user opens the review view.
type Service struct {
	config       *config.Config
	itemsService *items.Service
	cron         *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, itemsService *items.Service) *Service {
	return &Service{
		config:       cfg,
		itemsService: itemsService,
		cron:         cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled cache warm-up
func (s *Service) Start() error {
	if !s.config.EnableScheduledRefresh {
		logrus.Info("Scheduled refresh disabled")
		return nil
	}

	// Refresh at the top of every hour
	_, err := s.cron.AddFunc("0 0 * * * *", func() {
		s.refresh()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started, warming a %dh window hourly", s.config.RefreshWindowHours)
	return nil
}

func (s *Service) refresh() {
	window := time.Duration(s.config.RefreshWindowHours) * time.Hour
	end := time.Now()
	start := end.Add(-window)

	pending, err := s.itemsService.FetchItems(start.UnixMilli(), end.UnixMilli())
	if err != nil {
		// Not signed in is the normal idle state; nothing to warm.
		logrus.Debugf("Skipping scheduled refresh: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	scored, err := pending.Wait(ctx)
	if err != nil {
		logrus.Errorf("Scheduled refresh failed: %v", err)
		return
	}
	logrus.Infof("Scheduled refresh fetched and scored %d mentions", len(scored))
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
