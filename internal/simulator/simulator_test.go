package simulator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sgsec-dev/titus-simulator/internal/config"
	"github.com/sgsec-dev/titus-simulator/internal/domain"
	"github.com/sgsec-dev/titus-simulator/internal/planner"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu          sync.Mutex
	rosterFiles map[string]*domain.RosterFile
	statuses    map[string]domain.RosterStatus
	inSent      map[domain.EmissionKey]time.Time
	outSent     map[domain.EmissionKey]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rosterFiles: make(map[string]*domain.RosterFile),
		statuses:    make(map[string]domain.RosterStatus),
		inSent:      make(map[domain.EmissionKey]time.Time),
		outSent:     make(map[domain.EmissionKey]time.Time),
	}
}

func (s *fakeStore) GetRosterFileByID(rosterFileID string) (*domain.RosterFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rosterFile, ok := s.rosterFiles[rosterFileID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rosterFile, nil
}

func (s *fakeStore) UpdateRosterFileStatus(rosterFileID string, status domain.RosterStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[rosterFileID] = status
	return nil
}

func (s *fakeStore) EventSent(deploymentItemID string, personnelID string, kind domain.ClockKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sentLocked(deploymentItemID, personnelID, kind), nil
}

func (s *fakeStore) sentLocked(deploymentItemID string, personnelID string, kind domain.ClockKind) bool {
	key := domain.EmissionKey{DeploymentItemID: deploymentItemID, PersonnelID: personnelID}
	if kind == domain.ClockIn {
		_, ok := s.inSent[key]
		return ok
	}
	_, ok := s.outSent[key]
	return ok
}

type fakeClaim struct {
	store *fakeStore
	key   domain.EmissionKey
	kind  domain.ClockKind
}

func (c *fakeClaim) Commit(sentAt time.Time) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if c.kind == domain.ClockIn {
		c.store.inSent[c.key] = sentAt
	} else {
		c.store.outSent[c.key] = sentAt
	}
	return nil
}

func (c *fakeClaim) Release() {}

func (s *fakeStore) ClaimEvent(deploymentItemID string, personnelID string, kind domain.ClockKind) (EventClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sentLocked(deploymentItemID, personnelID, kind) {
		return nil, nil
	}

	return &fakeClaim{
		store: s,
		key:   domain.EmissionKey{DeploymentItemID: deploymentItemID, PersonnelID: personnelID},
		kind:  kind,
	}, nil
}

func (s *fakeStore) CleanupPostedEvents(keys []domain.EmissionKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for _, key := range keys {
		delete(s.inSent, key)
		delete(s.outSent, key)
		cleaned++
	}
	return cleaned, nil
}

func (s *fakeStore) ledgerSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.inSent) + len(s.outSent)
}

type fakeSink struct {
	mu     sync.Mutex
	events []*domain.ClockEvent
	fail   bool
}

func (s *fakeSink) Send(ctx context.Context, event *domain.ClockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return errors.New("下游不可用")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *fakeSink) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.events)
}

type fakeRosterSource struct {
	assignments []*domain.Assignment
	skipped     int
	err         error
}

func (s *fakeRosterSource) FetchRoster(ctx context.Context, from time.Time, to time.Time) ([]*domain.Assignment, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.assignments, s.skipped, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.NGRS.DeviceID = "SIM-10.0.0.5"
	cfg.NGRS.SendFrom = "titusSimulator"
	cfg.Simulation.RealtimeWindow = 15
	cfg.Simulation.OverdueLookback = 1440
	return cfg
}

func testMetadata(deploymentItm string, personnelID string) domain.RawRosterMetadata {
	return domain.RawRosterMetadata{
		PersonnelID:      personnelID,
		DeploymentItm:    deploymentItm,
		DeploymentDate:   "/Date(1767225600000)/", // 2026-01-01
		PlannedStartTime: "PT10H15M0S",
		PlannedEndTime:   "PT19H15M0S",
		Plant:            "5000",
	}
}

func storeRoster(t *testing.T, store *fakeStore, metadata ...domain.RawRosterMetadata) string {
	t.Helper()

	envelope := &domain.RawRosterEnvelope{FunctionName: "RosterData"}
	for _, m := range metadata {
		envelope.ListItem.Data.D.Results = append(envelope.ListItem.Data.D.Results, domain.RawRosterResult{Metadata: m})
	}

	data, err := json.Marshal(envelope)
	require.NoError(t, err)

	rosterFileID := "2f0b4a2e-8f33-4a57-9f31-0db7c79f6f41"
	store.rosterFiles[rosterFileID] = &domain.RosterFile{
		RosterFileID:     rosterFileID,
		AssignmentsCount: len(metadata),
		RosterData:       data,
		Status:           domain.RosterStatusPending,
	}
	return rosterFileID
}

// plannedEvents 返回一条排班解析后的两个打卡事件，用来在测试里对齐时间窗口
func plannedEvents(t *testing.T, metadata domain.RawRosterMetadata) []domain.PlannedEvent {
	t.Helper()

	assignment, err := domain.AssignmentFromRaw(&metadata, time.UTC)
	require.NoError(t, err)

	events := planner.Plan(assignment)
	require.Len(t, events, 2)
	return events
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("immediate")
	require.NoError(t, err)
	require.Equal(t, ModeImmediate, mode)

	mode, err = ParseMode("realtime")
	require.NoError(t, err)
	require.Equal(t, ModeRealtime, mode)

	_, err = ParseMode("batch")
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestRunRosterFileNotFound(t *testing.T) {
	sim := NewSimulator(testConfig(), newFakeStore(), &fakeSink{}, nil, time.UTC)

	_, err := sim.RunRosterFile(context.Background(), "missing", ModeImmediate, time.Now())
	require.ErrorIs(t, err, ErrRosterNotFound)
}

func TestRunRosterFileInvalidData(t *testing.T) {
	store := newFakeStore()
	store.rosterFiles["bad"] = &domain.RosterFile{
		RosterFileID: "bad",
		RosterData:   []byte("not json"),
	}
	sim := NewSimulator(testConfig(), store, &fakeSink{}, nil, time.UTC)

	_, err := sim.RunRosterFile(context.Background(), "bad", ModeImmediate, time.Now())
	require.Error(t, err)
	require.Equal(t, domain.RosterStatusFailed, store.statuses["bad"])
}

func TestRunRosterFileImmediate(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	sim := NewSimulator(testConfig(), store, sink, nil, time.UTC)

	rosterFileID := storeRoster(t, store,
		testMetadata("0000335830", "00037056"),
		testMetadata("0000335831", domain.UnfilledPersonnelID),
	)

	report, err := sim.RunRosterFile(context.Background(), rosterFileID, ModeImmediate, time.Now())
	require.NoError(t, err)

	require.Equal(t, 2, report.AssignmentsFound)
	require.Equal(t, 2, report.AssignmentsParsed)
	require.Equal(t, 2, report.EventsGenerated)
	require.Equal(t, 2, report.EventsPosted)
	require.Equal(t, 0, report.EventsFailed)
	require.Equal(t, 2, report.RecordsCleaned)
	require.Equal(t, rosterFileID, report.RosterFileID)

	require.Equal(t, 2, sink.sentCount())
	require.Equal(t, "IN", sink.events[0].ClockedStatus)
	require.Equal(t, "OUT", sink.events[1].ClockedStatus)
	require.Equal(t, "00037056", sink.events[0].PersonnelID)

	// 两个事件都发生在部署日期当天
	require.Equal(t, "20260101", sink.events[0].ClockedDateTime[:8])
	require.Equal(t, "20260101", sink.events[1].ClockedDateTime[:8])

	// 立即模式结束后台账被清空，可以再次完整重放
	require.Equal(t, 0, store.ledgerSize())
	require.Equal(t, domain.RosterStatusCompleted, store.statuses[rosterFileID])

	report, err = sim.RunRosterFile(context.Background(), rosterFileID, ModeImmediate, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, report.EventsPosted)
	require.Equal(t, 2, report.RecordsCleaned)
	require.Equal(t, 4, sink.sentCount())
}

func TestRunRosterFileImmediateCleansLeftoverRecords(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	sim := NewSimulator(testConfig(), store, sink, nil, time.UTC)

	metadata := testMetadata("0000335830", "00037056")
	rosterFileID := storeRoster(t, store, metadata)

	// 模拟上一次运行发完事件后、清理之前崩溃留下的台账
	key := domain.EmissionKey{DeploymentItemID: "0000335830", PersonnelID: "00037056"}
	store.inSent[key] = time.Now()
	store.outSent[key] = time.Now()

	report, err := sim.RunRosterFile(context.Background(), rosterFileID, ModeImmediate, time.Now())
	require.NoError(t, err)

	require.Equal(t, 0, report.EventsGenerated)
	require.Equal(t, 0, report.EventsPosted)
	require.Equal(t, 2, report.RecordsCleaned)
	require.Equal(t, 0, sink.sentCount())
	require.Equal(t, 0, store.ledgerSize())
}

func TestRunRosterFileRealtimeIdempotent(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	sim := NewSimulator(testConfig(), store, sink, nil, time.UTC)

	metadata := testMetadata("0000335830", "00037056")
	rosterFileID := storeRoster(t, store, metadata)

	// 第二天上午运行，两个事件都已经过期但还在补发上限内
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	report, err := sim.RunRosterFile(context.Background(), rosterFileID, ModeRealtime, now)
	require.NoError(t, err)
	require.Equal(t, 2, report.EventsGenerated)
	require.Equal(t, 2, report.EventsPosted)
	require.Equal(t, 0, report.RecordsCleaned)
	require.Equal(t, 2, sink.sentCount())

	// 实时模式不清台账，重复运行不会再发送任何事件
	require.Equal(t, 2, store.ledgerSize())

	report, err = sim.RunRosterFile(context.Background(), rosterFileID, ModeRealtime, now)
	require.NoError(t, err)
	require.Equal(t, 0, report.EventsGenerated)
	require.Equal(t, 0, report.EventsPosted)
	require.Equal(t, 2, sink.sentCount())
}

func TestRunRosterFileRealtimeWindow(t *testing.T) {
	metadata := testMetadata("0000335830", "00037056")
	events := plannedEvents(t, metadata)
	clockInAt := events[0].ScheduledAt
	clockOutAt := events[1].ScheduledAt

	tests := []struct {
		name       string
		now        time.Time
		wantPosted int
	}{
		{"还没进入窗口", clockInAt.Add(-16 * time.Minute), 0},
		{"刚好在窗口边缘", clockInAt.Add(-15 * time.Minute), 1},
		{"到达打卡时间", clockInAt, 1},
		{"下班时间之后两个都补发", clockOutAt.Add(time.Minute), 2},
		{"超过补发上限", clockOutAt.Add(1441 * time.Minute), 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := newFakeStore()
			sink := &fakeSink{}
			sim := NewSimulator(testConfig(), store, sink, nil, time.UTC)
			rosterFileID := storeRoster(t, store, metadata)

			report, err := sim.RunRosterFile(context.Background(), rosterFileID, ModeRealtime, test.now)
			require.NoError(t, err)
			require.Equal(t, test.wantPosted, report.EventsPosted)
			require.Equal(t, test.wantPosted, sink.sentCount())
		})
	}
}

func TestRunRosterFilePartialParse(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	sim := NewSimulator(testConfig(), store, sink, nil, time.UTC)

	bad := testMetadata("0000335832", "00037058")
	bad.DeploymentDate = "31.12.2025"

	rosterFileID := storeRoster(t, store,
		testMetadata("0000335830", "00037056"),
		testMetadata("0000335831", domain.UnfilledPersonnelID),
		bad,
	)

	report, err := sim.RunRosterFile(context.Background(), rosterFileID, ModeImmediate, time.Now())
	require.NoError(t, err)

	require.Equal(t, 3, report.AssignmentsFound)
	require.Equal(t, 2, report.AssignmentsParsed)
	require.Equal(t, 2, report.EventsPosted)
	require.Equal(t, domain.RosterStatusCompleted, store.statuses[rosterFileID])
}

func TestRunRosterFileSinkFailureAllowsRetry(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{fail: true}
	sim := NewSimulator(testConfig(), store, sink, nil, time.UTC)

	metadata := testMetadata("0000335830", "00037056")
	rosterFileID := storeRoster(t, store, metadata)
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	report, err := sim.RunRosterFile(context.Background(), rosterFileID, ModeRealtime, now)
	require.NoError(t, err)
	require.Equal(t, 2, report.EventsGenerated)
	require.Equal(t, 0, report.EventsPosted)
	require.Equal(t, 2, report.EventsFailed)

	// 发送失败的事件不会被记成已发送，下游恢复后重新运行会补发
	require.Equal(t, 0, store.ledgerSize())

	sink.fail = false
	report, err = sim.RunRosterFile(context.Background(), rosterFileID, ModeRealtime, now)
	require.NoError(t, err)
	require.Equal(t, 2, report.EventsPosted)
	require.Equal(t, 0, report.EventsFailed)
	require.Equal(t, 2, sink.sentCount())
}

func TestRunForDate(t *testing.T) {
	metadata := testMetadata("0000335830", "00037056")
	assignment, err := domain.AssignmentFromRaw(&metadata, time.UTC)
	require.NoError(t, err)

	store := newFakeStore()
	sink := &fakeSink{}
	source := &fakeRosterSource{assignments: []*domain.Assignment{assignment}, skipped: 1}
	sim := NewSimulator(testConfig(), store, sink, source, time.UTC)

	date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	report, err := sim.RunForDate(context.Background(), date, now)
	require.NoError(t, err)

	require.Equal(t, string(ModeRealtime), report.Mode)
	require.Equal(t, "2026-01-01", report.Date)
	require.Equal(t, 2, report.AssignmentsFound)
	require.Equal(t, 1, report.AssignmentsParsed)
	require.Equal(t, 2, report.EventsPosted)
}

func TestRunForDateWithoutSource(t *testing.T) {
	sim := NewSimulator(testConfig(), newFakeStore(), &fakeSink{}, nil, time.UTC)

	_, err := sim.RunForDate(context.Background(), time.Now(), time.Now())
	require.ErrorIs(t, err, ErrNoRosterSource)
}

func TestRunForDateFetchError(t *testing.T) {
	source := &fakeRosterSource{err: errors.New("上游超时")}
	sim := NewSimulator(testConfig(), newFakeStore(), &fakeSink{}, source, time.UTC)

	_, err := sim.RunForDate(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
}
