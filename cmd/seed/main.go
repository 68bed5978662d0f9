package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sgsec-dev/titus-simulator/internal/config"
	"github.com/sgsec-dev/titus-simulator/internal/repository"
	"github.com/sgsec-dev/titus-simulator/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var date string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 生成演示 roster, 2: 初始化表结构, 3: 查看台账统计)")
	flag.IntVar(&n, "n", 5, "演示 roster 中有人班次的数量")
	flag.StringVar(&date, "date", "", "演示 roster 的日期 (YYYY-MM-DD)，默认为今天")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Simulation.Timezone)
	if err != nil {
		logger.Error("无法加载时区", "timezone", cfg.Simulation.Timezone, "error", err)
		return
	}

	// 创建数据库连接池
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

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的班次数量")
			return
		}

		rosterDate := time.Now().In(loc)
		if date != "" {
			rosterDate, err = time.ParseInLocation("2006-01-02", date, loc)
			if err != nil {
				slog.Error("日期格式无效", slog.String("date", date))
				return
			}
		}

		if err := repo.EnsureSchema(); err != nil {
			slog.Error("无法初始化表结构", slog.String("error", err.Error()))
			return
		}

		rosterFileID, err := seed.SeedDemoRoster(repo, n, rosterDate)
		if err != nil {
			slog.Error("无法生成演示 roster", slog.String("error", err.Error()))
			return
		}

		slog.Info("生成演示 roster 成功", slog.String("rosterFileID", rosterFileID))
	case 2:
		if err := repo.EnsureSchema(); err != nil {
			slog.Error("无法初始化表结构", slog.String("error", err.Error()))
			return
		}

		slog.Info("初始化表结构成功")
	case 3:
		stats, err := repo.GetLedgerStats()
		if err != nil {
			slog.Error("无法获取台账统计", slog.String("error", err.Error()))
			return
		}

		slog.Info("台账统计",
			slog.Int("totalAssignments", stats.TotalAssignments),
			slog.Int("inEventsSent", stats.InEventsSent),
			slog.Int("outEventsSent", stats.OutEventsSent),
		)
	default:
		slog.Error("指定的操作非法")
	}
}
