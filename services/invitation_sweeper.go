package services

import (
	"context"
	"fmt"
	"time"

	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/robfig/cron/v3"
)

// ExpiredInvitationDeleter removes expired, unaccepted invitations
type ExpiredInvitationDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// InvitationSweeper periodically deletes expired invitations on a cron schedule
type InvitationSweeper struct {
	deleter ExpiredInvitationDeleter
	spec    string
	cron    *cron.Cron
	timeout time.Duration
	logger  *utils.LoggerWithContext
}

// NewInvitationSweeper creates a sweeper for the given standard cron spec
// (five fields or a descriptor such as @hourly)
func NewInvitationSweeper(deleter ExpiredInvitationDeleter, spec string) (*InvitationSweeper, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	logger := utils.GetLogger().WithSource("invitation_sweeper")
	cl := cronLogger{logger}

	s := &InvitationSweeper{
		deleter: deleter,
		spec:    spec,
		timeout: time.Minute,
		logger:  logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.run))
	return s, nil
}

func (s *InvitationSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}

// RunOnce deletes expired invitations immediately
func (s *InvitationSweeper) RunOnce(ctx context.Context) (int64, error) {
	deleted, err := s.deleter.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("Invitation sweep failed", err)
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("Expired invitations deleted", map[string]interface{}{
			"deleted": deleted,
		})
	}
	return deleted, nil
}

// Start runs the schedule in the background
func (s *InvitationSweeper) Start() {
	s.logger.Info("Invitation sweeper started", map[string]interface{}{
		"schedule": s.spec,
	})
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep until ctx is done
func (s *InvitationSweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextRun returns the next scheduled sweep, zero when not started
func (s *InvitationSweeper) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger routes cron's own logging into the structured logger
type cronLogger struct {
	logger *utils.LoggerWithContext
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keyValues(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, err, keyValues(keysAndValues))
}

func keyValues(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
