package core

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/metrics"
	"github.com/TTStick/Prompt-SSH-AIFakeSSHServer/util"
)

// Schedules for the periodic jobs, in robfig/cron descriptor syntax.
const (
	RotateSchedule  = "@midnight"
	SummarySchedule = "@hourly"
)

// Housekeeping runs the periodic jobs of a long-lived honeypot: daily
// log rotation with retention, and an hourly counters summary.
type Housekeeping struct {
	cron      *cron.Cron
	logFile   *util.DailyFile
	retention int
	metrics   *metrics.Collector
	logger    *util.Logger
}

// NewHousekeeping schedules the jobs without starting them.  logFile
// may be nil, in which case only the summary runs.
func NewHousekeeping(logFile *util.DailyFile, retention int, m *metrics.Collector, logger *util.Logger) (*Housekeeping, error) {
	h := &Housekeeping{
		logFile:   logFile,
		retention: retention,
		metrics:   m,
		logger:    logger,
	}
	cl := cronLogger{logger}
	h.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl)))

	if logFile != nil {
		if _, err := h.cron.AddFunc(RotateSchedule, h.RotateLogs); err != nil {
			return nil, fmt.Errorf("schedule log rotation: %w", err)
		}
	}
	if _, err := h.cron.AddFunc(SummarySchedule, h.LogSummary); err != nil {
		return nil, fmt.Errorf("schedule summary: %w", err)
	}
	return h, nil
}

// Start runs the scheduler in the background.
func (h *Housekeeping) Start() { h.cron.Start() }

// Stop halts the scheduler and waits for a running job to finish.
func (h *Housekeeping) Stop() {
	<-h.cron.Stop().Done()
}

// RotateLogs moves yesterday's log aside and prunes backups beyond the
// retention count.
func (h *Housekeeping) RotateLogs() {
	if h.logFile == nil {
		return
	}
	if err := h.logFile.Rotate(); err != nil {
		h.logger.Error("log rotation: %v", err)
		return
	}
	if h.retention > 0 {
		if err := h.logFile.Prune(h.retention); err != nil {
			h.logger.Warn("log retention: %v", err)
		}
	}
}

// LogSummary writes the current counters as one log line.
func (h *Housekeeping) LogSummary() {
	h.logger.Info("%s", h.metrics.Summary())
}

// cronLogger adapts util.Logger to cron.Logger.
type cronLogger struct{ l *util.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: %s %v", msg, keysAndValues)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: %s: %v %v", msg, err, keysAndValues)
}
