package jobs

import (
	"context"
	"fmt"
	"time"

	"buildinghub_backend/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ReminderSender sends the reminders of calendar events starting soon.
type ReminderSender interface {
	SendDueReminders(ctx context.Context, leadTime time.Duration) (int, error)
}

// CalendarReminderJob periodically notifies tenants of upcoming calendar events.
type CalendarReminderJob struct {
	sender        ReminderSender
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

func NewCalendarReminderJob(sender ReminderSender, logger *zap.Logger, cfg *config.Config) *CalendarReminderJob {
	// Overlapping runs would only race for the same claims.
	scheduler := cron.New(
		cron.WithLogger(NewCronLogger(logger.Named("cron"))),
		cron.WithChain(cron.SkipIfStillRunning(NewCronLogger(logger.Named("cron")))),
	)

	return &CalendarReminderJob{
		sender:        sender,
		logger:        logger.Named("CalendarReminderJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
	}
}

// SetupAndStart schedules and starts the cron job.
func (j *CalendarReminderJob) SetupAndStart() error {
	jobSpec := j.cfg.ReminderJobSchedule
	if jobSpec == "" {
		j.logger.Warn("Calendar reminder job schedule not defined (REMINDER_JOB_SCHEDULE). Job will not run.")
		return nil
	}
	if j.cfg.ReminderLeadTime <= 0 {
		j.logger.Warn("Calendar reminder lead time not positive (REMINDER_LEAD_TIME_MINUTES). Job will not run.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, j.runJob)
	if err != nil {
		j.logger.Error("Failed to schedule calendar reminder job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Calendar reminder job scheduled",
		zap.String("spec", jobSpec),
		zap.Duration("leadTime", j.cfg.ReminderLeadTime),
		zap.Any("jobID", jobID))
	j.cronScheduler.Start()
	return nil
}

func (j *CalendarReminderJob) runJob() {
	j.logger.Info("Starting calendar reminder job run...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	sent, err := j.sender.SendDueReminders(ctx, j.cfg.ReminderLeadTime)
	if err != nil {
		j.logger.Error("Calendar reminder job run failed", zap.Error(err))
	} else {
		j.logger.Info("Calendar reminder job run completed", zap.Int("reminders_sent", sent))
	}
}

// Stop gracefully stops the cron scheduler.
func (j *CalendarReminderJob) Stop() {
	if j.cronScheduler != nil {
		j.logger.Info("Stopping calendar reminder job scheduler...")
		stopCtx := j.cronScheduler.Stop()
		select {
		case <-stopCtx.Done():
			j.logger.Info("Calendar reminder job scheduler stopped gracefully.")
		case <-time.After(10 * time.Second):
			j.logger.Warn("Calendar reminder job scheduler stop timed out.")
		}
	}
}

// cronLogger adapts zap.Logger to the cron.Logger interface.
type cronLogger struct {
	zl *zap.Logger
}

func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	cl.zl.Debug(msg, cl.fields(keysAndValues...)...)
}

func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	cl.zl.Error(msg, append(cl.fields(keysAndValues...), zap.Error(err))...)
}

func (cl *cronLogger) fields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(key, "MISSING_VALUE"))
		}
	}
	return fields
}
