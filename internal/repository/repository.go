package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sgsec-dev/titus-simulator/internal/config"
)

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

// EnsureSchema 在启动时创建缺失的表，让服务在空数据库上也能直接跑起来
func (r *Repository) EnsureSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	statements := []string{
		`
			CREATE TABLE IF NOT EXISTS simulated_events (
				deployment_item_id TEXT NOT NULL,
				personnel_id TEXT NOT NULL,
				in_sent_at TIMESTAMPTZ,
				out_sent_at TIMESTAMPTZ,
				PRIMARY KEY (deployment_item_id, personnel_id)
			)
		`,
		`
			CREATE TABLE IF NOT EXISTS roster_files (
				roster_file_id TEXT PRIMARY KEY,
				uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				assignments_count INTEGER NOT NULL,
				roster_data TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending'
			)
		`,
		`
			CREATE TABLE IF NOT EXISTS roster_logs (
				id BIGSERIAL PRIMARY KEY,
				uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				assignments_count INTEGER NOT NULL,
				source TEXT NOT NULL
			)
		`,
	}

	for _, statement := range statements {
		if _, err := r.dbpool.ExecContext(ctx, statement); err != nil {
			return err
		}
	}

	return nil
}
