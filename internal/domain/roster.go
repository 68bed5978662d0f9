package domain

import (
	"time"
)

type RosterStatus string

const (
	RosterStatusPending    RosterStatus = "pending"
	RosterStatusProcessing RosterStatus = "processing"
	RosterStatusCompleted  RosterStatus = "completed"
	RosterStatusFailed     RosterStatus = "failed"
)

// RosterFile 是一份上传后保存下来的 roster，RosterData 保存原始 JSON
type RosterFile struct {
	RosterFileID     string       `json:"rosterFileID"`
	UploadedAt       time.Time    `json:"uploadedAt"`
	AssignmentsCount int          `json:"assignmentsCount"`
	RosterData       []byte       `json:"-"`
	Status           RosterStatus `json:"status"`
}

// RosterLog 记录每一次 roster 的接收情况，用于查询历史
type RosterLog struct {
	ID               int64     `json:"id"`
	UploadedAt       time.Time `json:"uploadedAt"`
	AssignmentsCount int       `json:"assignmentsCount"`
	Source           string    `json:"source"`
}

// LedgerStats 是发送台账的汇总统计
type LedgerStats struct {
	TotalAssignments int `json:"totalAssignments"`
	InEventsSent     int `json:"inEventsSent"`
	OutEventsSent    int `json:"outEventsSent"`
}
