package repository

import (
	"context"
	"time"

	"github.com/sgsec-dev/titus-simulator/internal/domain"
)

func (r *Repository) InsertRosterLog(rosterLog *domain.RosterLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO roster_logs (assignments_count, source)
		VALUES ($1, $2)
		RETURNING id, uploaded_at
	`

	if err := r.dbpool.QueryRowContext(ctx, query, rosterLog.AssignmentsCount, rosterLog.Source).Scan(&rosterLog.ID, &rosterLog.UploadedAt); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetRecentRosterLogs(limit int) ([]*domain.RosterLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT id, uploaded_at, assignments_count, source
		FROM roster_logs
		ORDER BY uploaded_at DESC
		LIMIT $1
	`

	rows, err := r.dbpool.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*domain.RosterLog, 0)
	for rows.Next() {
		rosterLog := &domain.RosterLog{}

		dst := []any{
			&rosterLog.ID,
			&rosterLog.UploadedAt,
			&rosterLog.AssignmentsCount,
			&rosterLog.Source,
		}

		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		logs = append(logs, rosterLog)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *Repository) PurgeRosterLogsBefore(cutoff time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `DELETE FROM roster_logs WHERE uploaded_at < $1`

	result, err := r.dbpool.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(deleted), nil
}
