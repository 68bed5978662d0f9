package domain

// SimulationReport 汇总一次模拟运行的结果。
// EventsGenerated 只统计本次运行真正需要发送的事件，已经发送过或不在时间窗口内的不算。
type SimulationReport struct {
	Mode              string `json:"mode"`
	RosterFileID      string `json:"rosterFileID,omitempty"`
	Date              string `json:"date,omitempty"`
	AssignmentsFound  int    `json:"assignmentsFound"`
	AssignmentsParsed int    `json:"assignmentsParsed"`
	EventsGenerated   int    `json:"eventsGenerated"`
	EventsPosted      int    `json:"eventsPosted"`
	EventsFailed      int    `json:"eventsFailed"`
	RecordsCleaned    int    `json:"recordsCleaned"`
}

// SweepReport 汇总一轮清理删除的记录数
type SweepReport struct {
	EventsDeleted      int `json:"eventsDeleted"`
	RosterFilesDeleted int `json:"rosterFilesDeleted"`
	RosterLogsDeleted  int `json:"rosterLogsDeleted"`
}
