package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sgsec-dev/titus-simulator/internal/domain"
	"github.com/sgsec-dev/titus-simulator/internal/simulator"
)

func (h *Handler) SimulateRosterFile(w http.ResponseWriter, r *http.Request) {
	rosterFile := r.Context().Value(RosterFileCtx).(*domain.RosterFile)

	var req struct {
		Mode string `json:"mode" validate:"required,oneof=immediate realtime"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	mode, err := simulator.ParseMode(req.Mode)
	if err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	// 用 redis 挡住对同一份 roster 的并发模拟，真正的去重由发送台账保证
	guardKey := fmt.Sprintf("titus_simulator_run_%s", rosterFile.RosterFileID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()

	ok, err := h.redisClient.SetNX(ctx, guardKey, time.Now().Unix(), time.Duration(h.config.Redis.RunGuardExpiration)*time.Second).Result()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if !ok {
		h.errorResponse(w, r, "该 roster 正在模拟中，请稍后再试")
		return
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
		defer cancel()
		if err := h.redisClient.Del(ctx, guardKey).Err(); err != nil {
			slog.Warn("释放模拟运行锁失败", "rosterFileID", rosterFile.RosterFileID, "error", err)
		}
	}()

	report, err := h.simulator.RunRosterFile(r.Context(), rosterFile.RosterFileID, mode, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, simulator.ErrRosterNotFound):
			h.errorResponse(w, r, "roster 文件不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "模拟运行完成", report)
}

func (h *Handler) RunOnce(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.loc)

	report, err := h.simulator.RunForDate(r.Context(), now, now)
	if err != nil {
		switch {
		case errors.Is(err, simulator.ErrNoRosterSource):
			h.errorResponse(w, r, "没有配置 NGRS 排班接口地址，无法拉取排班")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "拉取并模拟完成", report)
}
