package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/psr_backend/config"
	"github.com/mmdatafocus/psr_backend/models"
	"github.com/mmdatafocus/psr_backend/models/psr"
	"github.com/mmdatafocus/psr_backend/utils"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	schedulerActor   = "scheduler"
	snapshotLockType = "psr_snapshot"
	snapshotLockTTL  = 10 * time.Minute
)

// SnapshotScheduler generates a snapshot for every project on a cron schedule.
type SnapshotScheduler struct {
	cron      *cron.Cron
	loc       *time.Location
	frequency models.SnapshotFrequency

	listProjects func(ctx context.Context) ([]*models.Project, error)
	generate     func(ctx context.Context, projectId int, date time.Time, frequency models.SnapshotFrequency, actor string) error
	lock         func(ctx context.Context, key string) (func(), error)
}

func NewSnapshotScheduler(spec, timeZone, frequency string) (*SnapshotScheduler, error) {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone for snapshot scheduler: %v", err)
	}
	freq, err := models.ParseSnapshotFrequency(frequency)
	if err != nil {
		return nil, err
	}
	s := &SnapshotScheduler{
		cron:         cron.New(cron.WithLocation(loc)),
		loc:          loc,
		frequency:    freq,
		listProjects: models.ListProjects,
		generate: func(ctx context.Context, projectId int, date time.Time, frequency models.SnapshotFrequency, actor string) error {
			_, err := models.GenerateSnapshot(ctx, projectId, date, frequency, actor)
			return err
		},
		lock: func(ctx context.Context, key string) (func(), error) {
			return utils.ObtainResourceLock(ctx, snapshotLockType, key, snapshotLockTTL, "SnapshotScheduler", "RunOnce")
		},
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background(), time.Now()) }); err != nil {
		return nil, fmt.Errorf("invalid snapshot schedule %q: %w", spec, err)
	}
	return s, nil
}

// NewSnapshotSchedulerFromEnv builds the scheduler from the PSR_* settings.
func NewSnapshotSchedulerFromEnv() (*SnapshotScheduler, error) {
	return NewSnapshotScheduler(config.SnapshotSchedule(), config.SnapshotTimeZone(), config.SnapshotFrequency())
}

func (s *SnapshotScheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running tick to finish or ctx to expire.
func (s *SnapshotScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

type SchedulerRun struct {
	Date      time.Time
	Generated int
	Skipped   int
	Failed    int
}

// RunOnce generates today's snapshot (in the scheduler's timezone) for every project.
// A project locked by another instance is skipped. When the lock service itself is
// unavailable the project is generated anyway; generation is serialized in the database.
func (s *SnapshotScheduler) RunOnce(ctx context.Context, now time.Time) SchedulerRun {
	logger := config.GetLogger()
	run := SchedulerRun{Date: psr.DateOnly(now.In(s.loc))}

	projects, err := s.listProjects(ctx)
	if err != nil {
		config.LogError(logger, "SnapshotScheduler", "RunOnce", "list projects", nil, err)
		return run
	}
	for _, p := range projects {
		release, err := s.lock(ctx, p.CoNo)
		if errors.Is(err, utils.ErrLockNotObtained) {
			run.Skipped++
			continue
		}
		if err != nil {
			release = nil
		}
		err = s.generate(ctx, p.ID, run.Date, s.frequency, schedulerActor)
		if release != nil {
			release()
		}
		if err != nil {
			run.Failed++
			config.LogError(logger, "SnapshotScheduler", "RunOnce", "generate", p.CoNo, err)
			continue
		}
		run.Generated++
	}

	logger.WithFields(logrus.Fields{
		"module":        "SnapshotScheduler",
		"snapshot_date": run.Date.Format("2006-01-02"),
		"frequency":     s.frequency,
		"generated":     run.Generated,
		"skipped":       run.Skipped,
		"failed":        run.Failed,
	}).Info("scheduled snapshots finished")
	return run
}
