package seed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sgsec-dev/titus-simulator/internal/domain"
	"github.com/sgsec-dev/titus-simulator/internal/repository"
	"github.com/sgsec-dev/titus-simulator/internal/utils"
)

// 演示班次的开始和结束时长，从当天零点起算
var demoShiftPatterns = []struct {
	Start string
	End   string
}{
	{"PT8H0M0S", "PT17H0M0S"},
	{"PT10H15M0S", "PT19H15M0S"},
	{"PT14H0M0S", "PT23H0M0S"},
	{"PT22H0M0S", "PT6H0M0S"}, // 跨天夜班
}

// FormatMSDate 把日期格式化成 NGRS 的 /Date(毫秒时间戳)/ 形式
func FormatMSDate(date time.Time) string {
	year, month, day := date.Date()
	midnightUTC := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return fmt.Sprintf("/Date(%d)/", midnightUTC.UnixMilli())
}

// BuildDemoRoster 生成一份演示 roster：count 条有人的班次，加一条用来验证不会产生打卡事件的空缺班次
func BuildDemoRoster(count int, date time.Time) *domain.RawRosterEnvelope {
	results := make([]domain.RawRosterResult, 0, count+1)

	for i := 0; i < count; i++ {
		pattern := demoShiftPatterns[i%len(demoShiftPatterns)]
		firstName, lastName := utils.TransliterateName(utils.GenerateRandomChineseName())

		metadata := domain.RawRosterMetadata{
			PersonnelID:              utils.GenerateRandomPersonnelID(),
			PersonnelFirstName:       firstName,
			PersonnelLastName:        lastName,
			PersonnelType:            "2",
			PersonnelTypeDescription: "Security Officer",
			DemandItemID:             utils.GenerateRandomDemandItemID(),
			CustomerID:               utils.GenerateRandomCustomerID(),
			CustomerName:             fmt.Sprintf("DEMO CUSTOMER %02d", i%5+1),
			DeploymentLocation:       fmt.Sprintf("GATE %d", i%3+1),
			DeploymentDate:           FormatMSDate(date),
			DeploymentItm:            utils.GenerateRandomDeploymentItemID(),
			PlannerGroupID:           "SG1",
			Plant:                    "5000",
			PlannedStartTime:         pattern.Start,
			PlannedEndTime:           pattern.End,
			DemandType:               "NORMAL",
		}

		results = append(results, domain.RawRosterResult{Metadata: metadata})
	}

	vacant := domain.RawRosterMetadata{
		PersonnelID:        domain.UnfilledPersonnelID,
		DemandItemID:       utils.GenerateRandomDemandItemID(),
		CustomerID:         utils.GenerateRandomCustomerID(),
		CustomerName:       "DEMO CUSTOMER 01",
		DeploymentLocation: "GATE 1",
		DeploymentDate:     FormatMSDate(date),
		DeploymentItm:      utils.GenerateRandomDeploymentItemID(),
		PlannerGroupID:     "SG1",
		Plant:              "5000",
		PlannedStartTime:   demoShiftPatterns[0].Start,
		PlannedEndTime:     demoShiftPatterns[0].End,
		DemandType:         "NORMAL",
	}
	results = append(results, domain.RawRosterResult{Metadata: vacant})

	envelope := &domain.RawRosterEnvelope{FunctionName: "RosterData"}
	envelope.ListItem.Data.D.Results = results

	return envelope
}

// SeedDemoRoster 生成并保存一份演示 roster，返回 rosterFileID
func SeedDemoRoster(r *repository.Repository, count int, date time.Time) (string, error) {
	envelope := BuildDemoRoster(count, date)

	data, err := json.Marshal(envelope)
	if err != nil {
		return "", err
	}

	resultsCount := len(envelope.Results())
	rosterFile := &domain.RosterFile{
		RosterFileID:     uuid.NewString(),
		AssignmentsCount: resultsCount,
		RosterData:       data,
	}

	if err := r.CreateRosterFile(rosterFile); err != nil {
		return "", err
	}

	rosterLog := &domain.RosterLog{
		AssignmentsCount: resultsCount,
		Source:           "seed",
	}
	if err := r.InsertRosterLog(rosterLog); err != nil {
		return "", err
	}

	slog.Info("演示 roster 已生成", "rosterFileID", rosterFile.RosterFileID, "assignments", resultsCount)
	return rosterFile.RosterFileID, nil
}
