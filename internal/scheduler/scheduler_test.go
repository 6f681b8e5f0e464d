package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	schedules []Schedule
	lastRuns  map[string]time.Time
	listErr   error
}

func (f *fakeStore) ListReportSchedules(ctx context.Context) ([]byte, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return json.Marshal(f.schedules)
}

func (f *fakeStore) UpdateScheduleLastRun(ctx context.Context, scheduleID string, at time.Time) error {
	if f.lastRuns == nil {
		f.lastRuns = map[string]time.Time{}
	}
	f.lastRuns[scheduleID] = at
	return nil
}

type fakeRunner struct {
	runs []string
	errs map[string]error
}

func (f *fakeRunner) Generate(ctx context.Context, templateID string, overrides map[string]map[string]any, narrate bool) error {
	if err := f.errs[templateID]; err != nil {
		return err
	}
	f.runs = append(f.runs, templateID)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
}

func TestRunOnceDueSchedule(t *testing.T) {
	store := &fakeStore{schedules: []Schedule{{
		ScheduleID: "sched_1",
		TemplateID: "tmpl_1",
		Cron:       "0 8 * * *",
		Enabled:    true,
		CreatedAt:  fixedNow().Add(-24 * time.Hour),
	}}}
	runner := &fakeRunner{}
	s := &Scheduler{Store: store, Reports: runner, Now: fixedNow}

	count, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if count != 1 || len(runner.runs) != 1 || runner.runs[0] != "tmpl_1" {
		t.Fatalf("count=%d runs=%v", count, runner.runs)
	}
	if store.lastRuns["sched_1"].IsZero() {
		t.Fatalf("last run not updated")
	}
}

func TestRunOnceNotDue(t *testing.T) {
	store := &fakeStore{schedules: []Schedule{{
		ScheduleID: "sched_1",
		TemplateID: "tmpl_1",
		Cron:       "0 8 * * *",
		Enabled:    true,
		LastRunAt:  fixedNow().Add(-30 * time.Minute),
	}}}
	runner := &fakeRunner{}
	s := &Scheduler{Store: store, Reports: runner, Now: fixedNow}

	count, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if count != 0 || len(runner.runs) != 0 {
		t.Fatalf("count=%d runs=%v", count, runner.runs)
	}
}

func TestRunOnceSkipsDisabled(t *testing.T) {
	store := &fakeStore{schedules: []Schedule{{
		ScheduleID: "sched_1",
		TemplateID: "tmpl_1",
		Cron:       "0 8 * * *",
		Enabled:    false,
		CreatedAt:  fixedNow().Add(-24 * time.Hour),
	}}}
	runner := &fakeRunner{}
	s := &Scheduler{Store: store, Reports: runner, Now: fixedNow}

	if count, err := s.RunOnce(context.Background()); err != nil || count != 0 {
		t.Fatalf("count=%d err=%v", count, err)
	}
}

func TestRunOnceBadCronSkipped(t *testing.T) {
	store := &fakeStore{schedules: []Schedule{
		{ScheduleID: "sched_1", TemplateID: "tmpl_1", Cron: "not a cron", Enabled: true},
		{ScheduleID: "sched_2", TemplateID: "tmpl_2", Cron: "0 8 * * *", Enabled: true, CreatedAt: fixedNow().Add(-24 * time.Hour)},
	}}
	runner := &fakeRunner{}
	s := &Scheduler{Store: store, Reports: runner, Now: fixedNow}

	count, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if count != 1 || len(runner.runs) != 1 || runner.runs[0] != "tmpl_2" {
		t.Fatalf("count=%d runs=%v", count, runner.runs)
	}
}

func TestRunOnceReportErrorStillAdvances(t *testing.T) {
	store := &fakeStore{schedules: []Schedule{{
		ScheduleID: "sched_1",
		TemplateID: "tmpl_1",
		Cron:       "0 8 * * *",
		Enabled:    true,
		CreatedAt:  fixedNow().Add(-24 * time.Hour),
	}}}
	runner := &fakeRunner{errs: map[string]error{"tmpl_1": errors.New("template gone")}}
	s := &Scheduler{Store: store, Reports: runner, Now: fixedNow}

	count, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if count != 0 {
		t.Fatalf("count: %d", count)
	}
	if store.lastRuns["sched_1"].IsZero() {
		t.Fatalf("last run should advance to avoid tight retry loops")
	}
}

func TestRunOnceListError(t *testing.T) {
	s := &Scheduler{Store: &fakeStore{listErr: errors.New("db down")}, Reports: &fakeRunner{}, Now: fixedNow}
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Scheduler{Store: &fakeStore{}, Reports: &fakeRunner{}}
	if err := s.Run(ctx); err == nil {
		t.Fatalf("expected error")
	}
}
