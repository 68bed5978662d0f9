package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// UnfilledPersonnelID 表示该班次还没有安排人员，模拟时直接跳过
const UnfilledPersonnelID = "00000000"

// NGRS 排班接口返回的原始结构，json 标签和接口字段保持一致
type RawRosterMetadata struct {
	PersonnelID              string `json:"PersonnelId"`
	PersonnelFirstName       string `json:"personnel_first_name"`
	PersonnelLastName        string `json:"personnel_last_name"`
	PersonnelType            string `json:"PersonnelType"`
	PersonnelTypeDescription string `json:"PersonnelTypeDescription"`
	SecSeqNum                string `json:"SecSeqNum"`
	PrimarySeqNum            string `json:"PrimarySeqNum"`
	DemandItemID             string `json:"demand_item_id"`
	CustomerID               string `json:"customer_id"`
	CustomerName             string `json:"customer_name"`
	DeploymentLocation       string `json:"deployment_location"`
	DeploymentDate           string `json:"deployment_date"` // 形如 /Date(1767225600000)/
	DeploymentItm            string `json:"deploymentItm"`
	PlannerGroupID           string `json:"planner_group_id"`
	Plant                    string `json:"plant"`
	PlannedStartTime         string `json:"planned_start_time"` // 形如 PT10H15M00S
	PlannedEndTime           string `json:"planned_end_time"`
	DemandType               string `json:"demand_type"`
}

type RawRosterResult struct {
	Metadata RawRosterMetadata `json:"__metadata"`
}

type RawRosterData struct {
	Results []RawRosterResult `json:"results"`
}

type RawRosterListItem struct {
	Data struct {
		D RawRosterData `json:"d"`
	} `json:"data"`
}

type RawRosterEnvelope struct {
	FunctionName string            `json:"FunctionName"`
	ListItem     RawRosterListItem `json:"list_item"`
}

// Results 展开 NGRS 返回结构里的多层嵌套
func (e *RawRosterEnvelope) Results() []RawRosterMetadata {
	results := e.ListItem.Data.D.Results
	metadata := make([]RawRosterMetadata, 0, len(results))
	for _, result := range results {
		metadata = append(metadata, result.Metadata)
	}

	return metadata
}

// Assignment 是一条解析好的排班记录，时间字段都已经换算成配置时区下的时刻
type Assignment struct {
	DeploymentItemID   string    `json:"deploymentItemID"`
	PersonnelID        string    `json:"personnelID"`
	FirstName          string    `json:"firstName"`
	LastName           string    `json:"lastName"`
	DemandItemID       string    `json:"demandItemID"`
	CustomerID         string    `json:"customerID"`
	CustomerName       string    `json:"customerName"`
	DeploymentLocation string    `json:"deploymentLocation"`
	PlannerGroupID     string    `json:"plannerGroupID"`
	Plant              string    `json:"plant"`
	DeploymentDate     time.Time `json:"deploymentDate"`
	PlannedStart       time.Time `json:"plannedStart"`
	PlannedEnd         time.Time `json:"plannedEnd"`
}

// Unfilled 表示这是一个没有安排人员的空缺班次
func (a *Assignment) Unfilled() bool {
	return a.PersonnelID == UnfilledPersonnelID
}

var (
	msDateRegexp   = regexp.MustCompile(`/Date\((\d+)\)/`)
	durationRegexp = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?$`)
)

// parseMSDate 解析 /Date(毫秒时间戳)/ 格式的日期
func parseMSDate(value string) (time.Time, error) {
	matches := msDateRegexp.FindStringSubmatch(value)
	if matches == nil {
		return time.Time{}, fmt.Errorf("无法解析日期 %q", value)
	}

	ms, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析日期 %q: %w", value, err)
	}

	return time.UnixMilli(ms).UTC(), nil
}

// parseDayDuration 解析 PTnHnMnS 格式的时长，表示从当天零点开始经过的时间
func parseDayDuration(value string) (time.Duration, error) {
	matches := durationRegexp.FindStringSubmatch(value)
	if matches == nil {
		return 0, fmt.Errorf("无法解析时长 %q", value)
	}

	duration := time.Duration(0)
	if matches[1] != "" {
		hours, _ := strconv.Atoi(matches[1])
		duration += time.Duration(hours) * time.Hour
	}
	if matches[2] != "" {
		minutes, _ := strconv.Atoi(matches[2])
		duration += time.Duration(minutes) * time.Minute
	}
	if matches[3] != "" {
		seconds, err := strconv.ParseFloat(matches[3], 64)
		if err != nil {
			return 0, fmt.Errorf("无法解析时长 %q: %w", value, err)
		}
		duration += time.Duration(seconds * float64(time.Second))
	}

	return duration, nil
}

// AssignmentFromRaw 把一条原始排班记录解析成 Assignment。
// 班次时间 = 部署日期在 loc 时区的零点 + 计划时长；
// 结束时长不大于开始时长时视为跨天班次，结束时间顺延到第二天。
func AssignmentFromRaw(raw *RawRosterMetadata, loc *time.Location) (*Assignment, error) {
	if raw.DeploymentItm == "" {
		return nil, fmt.Errorf("排班记录缺少 deploymentItm")
	}
	if raw.PersonnelID == "" {
		return nil, fmt.Errorf("排班记录 %s 缺少 PersonnelId", raw.DeploymentItm)
	}

	deploymentDate, err := parseMSDate(raw.DeploymentDate)
	if err != nil {
		return nil, fmt.Errorf("排班记录 %s 的部署日期无效: %w", raw.DeploymentItm, err)
	}

	startDuration, err := parseDayDuration(raw.PlannedStartTime)
	if err != nil {
		return nil, fmt.Errorf("排班记录 %s 的开始时间无效: %w", raw.DeploymentItm, err)
	}

	endDuration, err := parseDayDuration(raw.PlannedEndTime)
	if err != nil {
		return nil, fmt.Errorf("排班记录 %s 的结束时间无效: %w", raw.DeploymentItm, err)
	}

	year, month, day := deploymentDate.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, loc)

	plannedStart := midnight.Add(startDuration)
	plannedEnd := midnight.Add(endDuration)
	if !plannedEnd.After(plannedStart) {
		plannedEnd = plannedEnd.AddDate(0, 0, 1)
	}

	return &Assignment{
		DeploymentItemID:   raw.DeploymentItm,
		PersonnelID:        raw.PersonnelID,
		FirstName:          raw.PersonnelFirstName,
		LastName:           raw.PersonnelLastName,
		DemandItemID:       raw.DemandItemID,
		CustomerID:         raw.CustomerID,
		CustomerName:       raw.CustomerName,
		DeploymentLocation: raw.DeploymentLocation,
		PlannerGroupID:     raw.PlannerGroupID,
		Plant:              raw.Plant,
		DeploymentDate:     midnight,
		PlannedStart:       plannedStart,
		PlannedEnd:         plannedEnd,
	}, nil
}
