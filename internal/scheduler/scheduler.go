package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"erpai/internal/metrics"
)

type Schedule struct {
	ScheduleID string    `json:"schedule_id"`
	CreatedAt  time.Time `json:"created_at"`
	TemplateID string    `json:"template_id"`
	Cron       string    `json:"cron"`
	Narrate    bool      `json:"narrate"`
	Enabled    bool      `json:"enabled"`
	LastRunAt  time.Time `json:"last_run_at"`
}

type Store interface {
	ListReportSchedules(ctx context.Context) ([]byte, error)
	UpdateScheduleLastRun(ctx context.Context, scheduleID string, at time.Time) error
}

type ReportRunner interface {
	Generate(ctx context.Context, templateID string, overrides map[string]map[string]any, narrate bool) error
}

// Scheduler polls report schedules and runs each template whose cron slot has
// passed since its last run. One bad schedule logs and skips; a store failure
// stops the loop.
type Scheduler struct {
	Store        Store
	Reports      ReportRunner
	PollInterval time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
	Parser       *cron.Parser
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Scheduler) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Store == nil || s.Reports == nil {
		return errors.New("store and reports required")
	}
	if s.PollInterval <= 0 {
		s.PollInterval = 30 * time.Second
	}
	if _, err := s.RunOnce(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// RunOnce evaluates all schedules once and returns how many reports ran.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	if s.Store == nil || s.Reports == nil {
		return 0, errors.New("store and reports required")
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Parser == nil {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		s.Parser = &parser
	}
	payload, err := s.Store.ListReportSchedules(ctx)
	if err != nil {
		return 0, err
	}
	schedules, err := parseSchedules(payload)
	if err != nil {
		return 0, err
	}
	now := s.Now().UTC()
	count := 0
	for _, schedule := range schedules {
		if !schedule.Enabled {
			continue
		}
		spec, err := s.Parser.Parse(strings.TrimSpace(schedule.Cron))
		if err != nil {
			s.logger().Warn("bad schedule cron", "schedule_id", schedule.ScheduleID, "cron", schedule.Cron, "error", err)
			continue
		}
		last := schedule.LastRunAt
		if last.IsZero() {
			last = schedule.CreatedAt
		}
		if spec.Next(last).After(now) {
			continue
		}
		if err := s.Reports.Generate(ctx, schedule.TemplateID, nil, schedule.Narrate); err != nil {
			metrics.ScheduledReportsTotal.WithLabelValues("error").Inc()
			s.logger().Warn("scheduled report failed", "schedule_id", schedule.ScheduleID, "template_id", schedule.TemplateID, "error", err)
		} else {
			metrics.ScheduledReportsTotal.WithLabelValues("ok").Inc()
			count++
		}
		if err := s.Store.UpdateScheduleLastRun(ctx, schedule.ScheduleID, now); err != nil {
			return count, err
		}
	}
	return count, nil
}

func parseSchedules(data []byte) ([]Schedule, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var schedules []Schedule
	if err := json.Unmarshal(data, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}
