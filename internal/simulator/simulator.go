// Package simulator 是模拟的核心引擎：把排班规划成打卡事件、
// 根据运行模式过滤、在发送台账里认领后逐条发出，并汇总运行报告。
package simulator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sgsec-dev/titus-simulator/internal/config"
	"github.com/sgsec-dev/titus-simulator/internal/domain"
	"github.com/sgsec-dev/titus-simulator/internal/planner"
)

type Mode string

const (
	// ModeImmediate 立即发送所有事件，结束后清掉本批排班的台账，方便反复演示
	ModeImmediate Mode = "immediate"
	// ModeRealtime 只发送打卡时间临近的事件，台账保留，靠定期清理过期
	ModeRealtime Mode = "realtime"
)

var (
	ErrInvalidMode    = errors.New("无效的模拟模式")
	ErrRosterNotFound = errors.New("roster 文件不存在")
	ErrNoRosterSource = errors.New("没有配置 NGRS 排班接口地址")
)

func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeImmediate:
		return ModeImmediate, nil
	case ModeRealtime:
		return ModeRealtime, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, value)
	}
}

// EventClaim 是对一次打卡事件的独占发送权
type EventClaim interface {
	Commit(sentAt time.Time) error
	Release()
}

// Store 聚合引擎需要的全部持久化操作
type Store interface {
	GetRosterFileByID(rosterFileID string) (*domain.RosterFile, error)
	UpdateRosterFileStatus(rosterFileID string, status domain.RosterStatus) error
	EventSent(deploymentItemID string, personnelID string, kind domain.ClockKind) (bool, error)
	ClaimEvent(deploymentItemID string, personnelID string, kind domain.ClockKind) (EventClaim, error)
	CleanupPostedEvents(keys []domain.EmissionKey) (int, error)
}

// EventSink 是接收打卡事件的下游系统
type EventSink interface {
	Send(ctx context.Context, event *domain.ClockEvent) error
}

// RosterSource 是可以按日期拉取排班的上游系统
type RosterSource interface {
	FetchRoster(ctx context.Context, from time.Time, to time.Time) ([]*domain.Assignment, int, error)
}

type Simulator struct {
	cfg    *config.Config
	store  Store
	sink   EventSink
	roster RosterSource // 可以为 nil，表示没有配置定时拉取
	loc    *time.Location
}

func NewSimulator(cfg *config.Config, store Store, sink EventSink, roster RosterSource, loc *time.Location) *Simulator {
	return &Simulator{
		cfg:    cfg,
		store:  store,
		sink:   sink,
		roster: roster,
		loc:    loc,
	}
}

// RunRosterFile 对一份已上传的 roster 文件运行一次模拟。
// 存储出错会让整个运行失败并把 roster 标记为 failed；
// 单条记录解析失败或者发送失败只影响对应的条目，运行会继续。
func (s *Simulator) RunRosterFile(ctx context.Context, rosterFileID string, mode Mode, now time.Time) (*domain.SimulationReport, error) {
	rosterFile, err := s.store.GetRosterFileByID(rosterFileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRosterNotFound
		}
		return nil, err
	}

	if err := s.store.UpdateRosterFileStatus(rosterFileID, domain.RosterStatusProcessing); err != nil {
		return nil, err
	}

	envelope := &domain.RawRosterEnvelope{}
	if err := json.Unmarshal(rosterFile.RosterData, envelope); err != nil {
		_ = s.store.UpdateRosterFileStatus(rosterFileID, domain.RosterStatusFailed)
		return nil, fmt.Errorf("无法解析 roster 数据: %w", err)
	}

	results := envelope.Results()
	assignments := make([]*domain.Assignment, 0, len(results))
	for _, metadata := range results {
		assignment, err := domain.AssignmentFromRaw(&metadata, s.loc)
		if err != nil {
			slog.Warn("跳过无法解析的排班记录", "rosterFileID", rosterFileID, "error", err)
			continue
		}
		assignments = append(assignments, assignment)
	}

	report, err := s.runAssignments(ctx, assignments, mode, now)
	if err != nil {
		_ = s.store.UpdateRosterFileStatus(rosterFileID, domain.RosterStatusFailed)
		return nil, err
	}

	report.RosterFileID = rosterFileID
	report.AssignmentsFound = len(results)

	if err := s.store.UpdateRosterFileStatus(rosterFileID, domain.RosterStatusCompleted); err != nil {
		return nil, err
	}

	return report, nil
}

// RunForDate 从 NGRS 拉取某一天的排班并以实时模式运行一次模拟，定时拉取和 run-once 都走这里
func (s *Simulator) RunForDate(ctx context.Context, date time.Time, now time.Time) (*domain.SimulationReport, error) {
	if s.roster == nil {
		return nil, ErrNoRosterSource
	}

	assignments, skipped, err := s.roster.FetchRoster(ctx, date, date)
	if err != nil {
		return nil, err
	}

	report, err := s.runAssignments(ctx, assignments, ModeRealtime, now)
	if err != nil {
		return nil, err
	}

	report.AssignmentsFound = len(assignments) + skipped
	report.Date = date.Format("2006-01-02")

	return report, nil
}

// runAssignments 对一批解析好的排班执行规划、过滤、认领、发送
func (s *Simulator) runAssignments(ctx context.Context, assignments []*domain.Assignment, mode Mode, now time.Time) (*domain.SimulationReport, error) {
	report := &domain.SimulationReport{
		Mode:              string(mode),
		AssignmentsParsed: len(assignments),
	}

	cleanupKeys := make([]domain.EmissionKey, 0, len(assignments)*2)

	for _, assignment := range assignments {
		for _, event := range planner.Plan(assignment) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			// 立即模式结束后要把本批排班的台账整个清掉，包括之前运行留下的行
			if mode == ModeImmediate {
				cleanupKeys = append(cleanupKeys, assignment.Key())
			}

			if mode == ModeRealtime && !s.dueNow(event.ScheduledAt, now) {
				continue
			}

			sent, err := s.store.EventSent(assignment.DeploymentItemID, assignment.PersonnelID, event.Kind)
			if err != nil {
				return nil, err
			}
			if sent {
				continue
			}

			report.EventsGenerated++

			claim, err := s.store.ClaimEvent(assignment.DeploymentItemID, assignment.PersonnelID, event.Kind)
			if err != nil {
				return nil, err
			}
			if claim == nil {
				// 并发的另一次运行抢先发送了这个事件
				continue
			}

			clockEvent := domain.NewClockEvent(assignment, event.Kind, event.ScheduledAt, s.cfg.NGRS.DeviceID, s.cfg.NGRS.SendFrom)
			if err := s.sink.Send(ctx, clockEvent); err != nil {
				claim.Release()
				report.EventsFailed++
				slog.Error("打卡事件发送失败",
					"deploymentItemID", assignment.DeploymentItemID,
					"personnelID", assignment.PersonnelID,
					"kind", event.Kind,
					"error", err,
				)
				continue
			}

			if err := claim.Commit(time.Now()); err != nil {
				return nil, err
			}

			report.EventsPosted++
			slog.Info("打卡事件已发送",
				"deploymentItemID", assignment.DeploymentItemID,
				"personnelID", assignment.PersonnelID,
				"kind", event.Kind,
				"scheduledAt", event.ScheduledAt,
			)
		}
	}

	if mode == ModeImmediate {
		cleaned, err := s.store.CleanupPostedEvents(cleanupKeys)
		if err != nil {
			return nil, err
		}
		report.RecordsCleaned = cleaned
	}

	return report, nil
}

// dueNow 判断实时模式下一个事件现在是否应该发送：
// 还没进入窗口的先不发，已经过期的在回溯上限内补发，超过上限的放弃
func (s *Simulator) dueNow(scheduledAt time.Time, now time.Time) bool {
	window := time.Duration(s.cfg.Simulation.RealtimeWindow) * time.Minute
	lookback := time.Duration(s.cfg.Simulation.OverdueLookback) * time.Minute

	if scheduledAt.After(now.Add(window)) {
		return false
	}
	if scheduledAt.Before(now.Add(-lookback)) {
		return false
	}

	return true
}
