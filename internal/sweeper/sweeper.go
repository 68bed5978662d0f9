// Package sweeper 定期清理过期的打卡台账和 roster 记录，两类记录各有独立的保留期限。
package sweeper

import (
	"log/slog"
	"time"

	"github.com/sgsec-dev/titus-simulator/internal/config"
	"github.com/sgsec-dev/titus-simulator/internal/domain"
)

// Store 聚合清理需要的持久化操作
type Store interface {
	PurgeEventsBefore(cutoff time.Time) (int, error)
	PurgeRosterFilesBefore(cutoff time.Time) (int, error)
	PurgeRosterLogsBefore(cutoff time.Time) (int, error)
}

type Sweeper struct {
	cfg   *config.Config
	store Store
}

func NewSweeper(cfg *config.Config, store Store) *Sweeper {
	return &Sweeper{
		cfg:   cfg,
		store: store,
	}
}

// Sweep 执行一轮清理。打卡台账行只有两类打卡都早于保留期限时才会被删除，
// 删除之后对应的事件就可以重新发送，所以事件的保留天数决定了去重的有效期。
func (s *Sweeper) Sweep(now time.Time) (*domain.SweepReport, error) {
	eventCutoff := now.AddDate(0, 0, -s.cfg.Retention.EventDays)
	events, err := s.store.PurgeEventsBefore(eventCutoff)
	if err != nil {
		return nil, err
	}

	rosterCutoff := now.AddDate(0, 0, -s.cfg.Retention.RosterDays)
	rosterFiles, err := s.store.PurgeRosterFilesBefore(rosterCutoff)
	if err != nil {
		return nil, err
	}

	rosterLogs, err := s.store.PurgeRosterLogsBefore(rosterCutoff)
	if err != nil {
		return nil, err
	}

	report := &domain.SweepReport{
		EventsDeleted:      events,
		RosterFilesDeleted: rosterFiles,
		RosterLogsDeleted:  rosterLogs,
	}

	slog.Info("清理完成",
		"eventsDeleted", report.EventsDeleted,
		"rosterFilesDeleted", report.RosterFilesDeleted,
		"rosterLogsDeleted", report.RosterLogsDeleted,
	)

	return report, nil
}
