package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/sgsec-dev/titus-simulator/internal/domain"
)

const recentRosterLogsLimit = 50

func (h *Handler) UploadRoster(w http.ResponseWriter, r *http.Request) {
	// 原始 JSON 要原样存下来，所以不能直接用 readJSON
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	envelope := &domain.RawRosterEnvelope{}
	if err := json.Unmarshal(body, envelope); err != nil {
		h.errorResponse(w, r, "无法解析 roster 数据")
		return
	}

	results := envelope.Results()
	if len(results) == 0 {
		h.errorResponse(w, r, "roster 数据中没有任何排班记录")
		return
	}

	rosterFile := &domain.RosterFile{
		RosterFileID:     uuid.NewString(),
		AssignmentsCount: len(results),
		RosterData:       body,
	}

	if err := h.repository.CreateRosterFile(rosterFile); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	rosterLog := &domain.RosterLog{
		AssignmentsCount: len(results),
		Source:           "upload",
	}
	if err := h.repository.InsertRosterLog(rosterLog); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 给每条排班记录一个接收回执号，和 NGRS 原始接口的响应保持一致
	type receipt struct {
		PersonnelID string `json:"PersonnelId"`
		RequestID   string `json:"RequestId"`
	}

	receipts := make([]receipt, 0, len(results))
	for _, metadata := range results {
		receipts = append(receipts, receipt{
			PersonnelID: metadata.PersonnelID,
			RequestID:   uuid.NewString(),
		})
	}

	h.successResponse(w, r, "roster 上传成功", map[string]any{
		"rosterFile": rosterFile,
		"results":    receipts,
	})
}

func (h *Handler) GetRosterFile(w http.ResponseWriter, r *http.Request) {
	rosterFile := r.Context().Value(RosterFileCtx).(*domain.RosterFile)

	envelope := &domain.RawRosterEnvelope{}
	if err := json.Unmarshal(rosterFile.RosterData, envelope); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取 roster 成功", map[string]any{
		"rosterFile": rosterFile,
		"results":    envelope.Results(),
	})
}

func (h *Handler) GetRosterLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.repository.GetRecentRosterLogs(recentRosterLogsLimit)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取接收记录成功", logs)
}
