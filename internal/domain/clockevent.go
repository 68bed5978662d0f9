package domain

import (
	"time"

	"github.com/google/uuid"
)

type ClockKind string

const (
	ClockIn  ClockKind = "IN"
	ClockOut ClockKind = "OUT"
)

// NGRS 打卡接口对各字段的长度限制
const (
	maxPlantLength    = 4
	maxDeviceIDLength = 15
	maxStatusLength   = 3
	maxPersonnelIDLen = 8
	maxSendFromLength = 15
)

// ClockEvent 是发送给 NGRS 打卡接口的事件，json 标签和接口字段保持一致
type ClockEvent struct {
	BuWerks         string `json:"BuWerks"`
	ClockedDateTime string `json:"ClockedDateTime"` // YYYYMMDDHHMMSS
	ClockedDeviceID string `json:"ClockedDeviceId"`
	ClockedStatus   string `json:"ClockedStatus"`
	ClockingID      string `json:"ClockingId"`
	PersonnelID     string `json:"PersonnelId"`
	RequestID       string `json:"RequestId"`
	SendFrom        string `json:"SendFrom"`
}

// PlannedEvent 是规划出来的一次打卡，ScheduledAt 为加过抖动之后的打卡时刻
type PlannedEvent struct {
	Kind        ClockKind `json:"kind"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

// EmissionKey 唯一标识一条排班的发送记录
type EmissionKey struct {
	DeploymentItemID string
	PersonnelID      string
}

// Key 返回该排班在发送台账中的键
func (a *Assignment) Key() EmissionKey {
	return EmissionKey{
		DeploymentItemID: a.DeploymentItemID,
		PersonnelID:      a.PersonnelID,
	}
}

// FormatClockTime 把时刻格式化成 NGRS 要求的 14 位数字
func FormatClockTime(t time.Time) string {
	return t.Format("20060102150405")
}

func truncate(value string, max int) string {
	if len(value) > max {
		return value[:max]
	}

	return value
}

// NewClockEvent 为一条排班构造一个打卡事件。
// ClockingId 和 RequestId 每次调用都重新生成，重试发送的事件在 NGRS 看来是一次新的请求。
func NewClockEvent(assignment *Assignment, kind ClockKind, clockedAt time.Time, deviceID string, sendFrom string) *ClockEvent {
	return &ClockEvent{
		BuWerks:         truncate(assignment.Plant, maxPlantLength),
		ClockedDateTime: FormatClockTime(clockedAt),
		ClockedDeviceID: truncate(deviceID, maxDeviceIDLength),
		ClockedStatus:   truncate(string(kind), maxStatusLength),
		ClockingID:      uuid.NewString(),
		PersonnelID:     truncate(assignment.PersonnelID, maxPersonnelIDLen),
		RequestID:       uuid.NewString(),
		SendFrom:        truncate(sendFrom, maxSendFromLength),
	}
}
