package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sgsec-dev/titus-simulator/internal/config"
	"github.com/sgsec-dev/titus-simulator/internal/domain"
	"github.com/sgsec-dev/titus-simulator/internal/handler"
	"github.com/sgsec-dev/titus-simulator/internal/ngrs"
	"github.com/sgsec-dev/titus-simulator/internal/repository"
	"github.com/sgsec-dev/titus-simulator/internal/simulator"
	"github.com/sgsec-dev/titus-simulator/internal/sweeper"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// repository 的事件认领返回的是具体类型，这里包一层来满足引擎的接口
type engineStore struct {
	*repository.Repository
}

func (s engineStore) ClaimEvent(deploymentItemID string, personnelID string, kind domain.ClockKind) (simulator.EventClaim, error) {
	claim, err := s.Repository.ClaimEvent(deploymentItemID, personnelID, kind)
	if err != nil || claim == nil {
		return nil, err
	}
	return claim, nil
}

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	loc, err := time.LoadLocation(cfg.Simulation.Timezone)
	if err != nil {
		logger.Error("无法加载时区", "timezone", cfg.Simulation.Timezone, "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	/**********************************************
	 * 创建 repository 并初始化表结构
	 **********************************************/
	repo := repository.NewRepository(cfg, dbpool)
	if err := repo.EnsureSchema(); err != nil {
		logger.Error("无法初始化表结构", "error", err)
		return
	}

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	/**********************************************
	 * 创建 NGRS 客户端和模拟引擎
	 **********************************************/
	clockingClient := ngrs.NewClockingClient(cfg)

	var rosterSource simulator.RosterSource
	if cfg.NGRS.RosterURL != "" {
		rosterSource = ngrs.NewRosterClient(cfg, loc)
	}

	sim := simulator.NewSimulator(cfg, engineStore{repo}, clockingClient, rosterSource, loc)

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(cfg, repo, sim, rdb, loc)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动后台任务：定期清理，以及可选的 NGRS 定时拉取
	 **********************************************/
	sw := sweeper.NewSweeper(cfg, repo)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Duration(cfg.Retention.SweepInterval) * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if _, err := sw.Sweep(time.Now()); err != nil {
					slog.Error("清理任务失败", "error", err)
				}
			}
		}
	}()

	if rosterSource != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(time.Duration(cfg.Simulation.PollInterval) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-workerCtx.Done():
					return
				case <-ticker.C:
					now := time.Now().In(loc)
					report, err := sim.RunForDate(workerCtx, now, now)
					if err != nil {
						slog.Error("定时拉取模拟失败", "error", err)
						continue
					}
					if report.EventsGenerated > 0 {
						slog.Info("定时拉取模拟完成",
							"date", report.Date,
							"assignmentsFound", report.AssignmentsFound,
							"eventsPosted", report.EventsPosted,
							"eventsFailed", report.EventsFailed,
						)
					}
				}
			}
		}()
	}

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}

	stopWorkers()
	wg.Wait()
	logger.Info("服务器已成功关闭")
}
