package system

import (
	"context"
	"sync"
	"time"

	"github.com/nanaya/osu-server-spectator/internal/db/redis/managers"
	"github.com/nanaya/osu-server-spectator/internal/utils"
)

// MaintenanceTask represents a maintenance task to be executed.
type MaintenanceTask struct {
	Name     string
	Interval time.Duration
	LastRun  time.Time
	Fn       func(context.Context) error
}

// MaintenanceConfig contains configuration for the maintenance service.
type MaintenanceConfig struct {
	// Whether to enable periodic maintenance tasks
	Enabled bool
	// Interval for checking which tasks are due
	MaintenanceInterval time.Duration
	// Timeout for individual maintenance tasks
	TaskTimeout time.Duration
	// Interval between session accounting reports
	SessionReportInterval time.Duration
}

// DefaultMaintenanceConfig returns the default maintenance configuration.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Enabled:               true,
		MaintenanceInterval:   5 * time.Minute,
		TaskTimeout:           1 * time.Minute,
		SessionReportInterval: 15 * time.Minute,
	}
}

// MaintenanceService manages recurring cleanup of server-side state. All live
// state lives in process memory, so everything mirrored into Redis by a
// previous incarnation of this server is garbage by definition.
type MaintenanceService struct {
	config      MaintenanceConfig
	sessionMgr  *managers.SessionManager
	presenceMgr *managers.PresenceManager
	logger      *utils.Logger

	tasks  []*MaintenanceTask
	cancel context.CancelFunc
	mutex  sync.Mutex
}

// NewMaintenanceService creates a new maintenance service.
func NewMaintenanceService(
	config MaintenanceConfig,
	sessionMgr *managers.SessionManager,
	presenceMgr *managers.PresenceManager,
	logger *utils.Logger,
) *MaintenanceService {
	s := &MaintenanceService{
		config:      config,
		sessionMgr:  sessionMgr,
		presenceMgr: presenceMgr,
		logger:      logger.Named("maintenance_service"),
	}

	s.tasks = []*MaintenanceTask{
		{
			Name:     "report_session_accounting",
			Interval: config.SessionReportInterval,
			Fn:       s.reportSessionAccounting,
		},
	}

	return s
}

// RunStartupCleanup discards all state left behind by a previous server
// process. Must run before any connection is accepted, or it would wipe
// snapshots of live sessions.
func (s *MaintenanceService) RunStartupCleanup(ctx context.Context) error {
	pruned, err := s.sessionMgr.PruneAll(ctx)
	if err != nil {
		return err
	}
	if err := s.presenceMgr.Clear(ctx); err != nil {
		return err
	}

	s.logger.Info("Startup cleanup complete", "prunedSessions", pruned)
	return nil
}

// Start begins the periodic maintenance loop.
func (s *MaintenanceService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info("Maintenance service disabled")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mutex.Lock()
	s.cancel = cancel
	s.mutex.Unlock()

	s.logger.Info("Starting maintenance service", "interval", s.config.MaintenanceInterval.String())

	go func() {
		ticker := time.NewTicker(s.config.MaintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Stopping maintenance service")
				return
			case <-ticker.C:
				s.runDueTasks(ctx)
			}
		}
	}()
}

// Stop terminates the maintenance loop.
func (s *MaintenanceService) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// runDueTasks executes every task whose interval has elapsed.
func (s *MaintenanceService) runDueTasks(ctx context.Context) {
	now := time.Now()

	for _, task := range s.tasks {
		if now.Sub(task.LastRun) < task.Interval {
			continue
		}

		taskCtx, cancel := context.WithTimeout(ctx, s.config.TaskTimeout)
		start := time.Now()
		err := task.Fn(taskCtx)
		cancel()

		task.LastRun = now
		if err != nil {
			s.logger.Error("Maintenance task failed", err, "task", task.Name)
			continue
		}

		s.logger.Debug("Maintenance task complete",
			"task", task.Name,
			"duration", time.Since(start).String(),
		)
	}
}

// reportSessionAccounting logs snapshot and presence counts. The two are
// written on the same events, so drift between them points at a Redis write
// that was lost or skipped.
func (s *MaintenanceService) reportSessionAccounting(ctx context.Context) error {
	snapshots, err := s.sessionMgr.Count(ctx)
	if err != nil {
		return err
	}
	online, err := s.presenceMgr.OnlineCount(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("Session accounting", "snapshots", snapshots, "online", online)
	if int64(snapshots) > online {
		s.logger.Warn("Session snapshots exceed online users", "snapshots", snapshots, "online", online)
	}
	return nil
}
