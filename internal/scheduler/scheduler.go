package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgie/internal/backup"
	"budgie/internal/config"
	"budgie/internal/service"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 5 * time.Minute

// Scheduler 运行定时维护任务
type Scheduler struct {
	cron     *cron.Cron
	sessions *service.SessionService
	backups  *backup.Manager
	keep     int
	log      *slog.Logger
}

// New 注册会话清理任务；设置了 cfg.Backup.Schedule 时再注册备份任务。
// 不启用备份时 backups 可以为 nil
func New(cfg *config.Config, sessions *service.SessionService, backups *backup.Manager, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		sessions: sessions,
		backups:  backups,
		keep:     cfg.Backup.Keep,
		log:      log,
	}

	if spec := cfg.Session.CleanupSchedule; spec != "" {
		if _, err := s.cron.AddFunc(spec, s.PruneSessions); err != nil {
			return nil, fmt.Errorf("register session cleanup %q: %w", spec, err)
		}
	}
	if spec := cfg.Backup.Schedule; spec != "" && backups != nil {
		if _, err := s.cron.AddFunc(spec, s.Backup); err != nil {
			return nil, fmt.Errorf("register backup %q: %w", spec, err)
		}
	}
	return s, nil
}

// PruneSessions 删除过期和已撤销的会话
func (s *Scheduler) PruneSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.sessions.Prune(ctx)
	if err != nil {
		s.log.Error("session cleanup failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("session cleanup", "removed", n)
	}
}

// Backup 生成快照并清理旧快照
func (s *Scheduler) Backup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	info, err := s.backups.Create(ctx)
	if err != nil {
		s.log.Error("scheduled backup failed", "error", err)
		return
	}
	removed, err := s.backups.Prune(s.keep)
	if err != nil {
		s.log.Error("backup prune failed", "error", err)
		return
	}
	s.log.Info("scheduled backup", "filename", info.Filename, "pruned", removed)
}

// Entries 已注册的任务数
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start 启动定时任务
func (s *Scheduler) Start() {
	s.log.Info("starting scheduler", "jobs", s.Entries())
	s.cron.Start()
}

// Stop 等待正在执行的任务结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}
