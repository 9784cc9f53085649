package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"schoolhub/attendance/internal/calendar"
	"schoolhub/attendance/internal/config"
	"schoolhub/attendance/internal/db"
)

type UnmarkedSource interface {
	ListUnmarkedClassSessions(ctx context.Context, d calendar.Date) ([]db.ClassSession, error)
}

// UnmarkedReminder logs every class session that has no marks for a school
// day.
type UnmarkedReminder struct {
	source  UnmarkedSource
	logger  *zap.Logger
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
}

func NewUnmarkedReminder(cfg config.Config, source UnmarkedSource, logger *zap.Logger) *UnmarkedReminder {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.ReminderJobTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &UnmarkedReminder{
		source:  source,
		logger:  logger.Named("unmarked_reminder"),
		loc:     cfg.Location(),
		timeout: timeout,
		now:     time.Now,
	}
}

// Run checks today's date in the school time zone.
func (j *UnmarkedReminder) Run(ctx context.Context) ([]db.ClassSession, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	today := calendar.DateOf(j.now().In(j.loc))
	pending, err := j.source.ListUnmarkedClassSessions(ctx, today)
	if err != nil {
		j.logger.Error("list unmarked class sessions failed", zap.Stringer("date", today), zap.Error(err))
		return nil, err
	}
	for _, cs := range pending {
		j.logger.Warn("attendance not marked",
			zap.Stringer("date", today),
			zap.String("class_id", cs.ID),
			zap.String("class_name", cs.Name),
			zap.String("session_id", cs.AcademicSessionID),
		)
	}
	if len(pending) == 0 {
		j.logger.Info("all class sessions marked", zap.Stringer("date", today))
	}
	return pending, nil
}

// StartUnmarkedReminderJob schedules the reminder and stops it when ctx ends.
// It returns nil when the job is disabled.
func StartUnmarkedReminderJob(ctx context.Context, cfg config.Config, source UnmarkedSource, logger *zap.Logger) (*cron.Cron, error) {
	if !cfg.ReminderJobEnabled {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	reminder := NewUnmarkedReminder(cfg, source, logger)
	cronLog := cronLogger{logger: logger.Named("cron").Sugar()}
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(cfg.ReminderJobSchedule, func() {
		_, _ = reminder.Run(ctx)
	}); err != nil {
		return nil, err
	}
	c.Start()
	logger.Info("unmarked reminder job started", zap.String("schedule", cfg.ReminderJobSchedule))

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
