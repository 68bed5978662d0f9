// Package planner 根据排班记录规划打卡事件。
// 抖动完全由排班标识决定，同一条排班不管重算多少次、在哪个实例上算，
// 得到的打卡时间都一样，这是跨重启去重的前提。
package planner

import (
	"math/rand"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sgsec-dev/titus-simulator/internal/domain"
)

// 打卡时间相对排班时间的抖动范围（分钟）
const (
	clockInOffsetMin  = -5
	clockInOffsetMax  = 10
	clockOutOffsetMin = -10
	clockOutOffsetMax = 15
)

// Seed 返回一条排班的确定性随机种子
func Seed(deploymentItemID string, personnelID string) uint64 {
	return xxhash.Sum64String(deploymentItemID + "-" + personnelID)
}

// Plan 为一条排班生成 IN、OUT 两个打卡事件，空缺班次不生成任何事件。
// 上班打卡在计划开始时间的 -5 到 +10 分钟之间，下班打卡在计划结束时间的 -10 到 +15 分钟之间。
func Plan(assignment *domain.Assignment) []domain.PlannedEvent {
	if assignment.Unfilled() {
		return nil
	}

	seed := Seed(assignment.DeploymentItemID, assignment.PersonnelID)
	rng := rand.New(rand.NewSource(int64(seed)))

	inOffset := randomOffset(rng, clockInOffsetMin, clockInOffsetMax)
	outOffset := randomOffset(rng, clockOutOffsetMin, clockOutOffsetMax)

	clockInAt := assignment.PlannedStart.Add(inOffset)
	clockOutAt := assignment.PlannedEnd.Add(outOffset)
	// 极短的班次加上抖动之后 OUT 可能跑到 IN 前面，这种情况收缩 OUT 而不是交换两个事件
	if clockOutAt.Before(clockInAt) {
		clockOutAt = clockInAt
	}

	return []domain.PlannedEvent{
		{Kind: domain.ClockIn, ScheduledAt: clockInAt},
		{Kind: domain.ClockOut, ScheduledAt: clockOutAt},
	}
}

func randomOffset(rng *rand.Rand, min int, max int) time.Duration {
	return time.Duration(rng.Intn(max-min+1)+min) * time.Minute
}
