package repository

import (
	"context"
	"time"

	"github.com/sgsec-dev/titus-simulator/internal/domain"
)

func (r *Repository) CreateRosterFile(rosterFile *domain.RosterFile) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO roster_files (roster_file_id, assignments_count, roster_data, status)
		VALUES ($1, $2, $3, $4)
		RETURNING uploaded_at
	`

	args := []any{
		rosterFile.RosterFileID,
		rosterFile.AssignmentsCount,
		string(rosterFile.RosterData),
		domain.RosterStatusPending,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&rosterFile.UploadedAt); err != nil {
		return err
	}

	rosterFile.Status = domain.RosterStatusPending
	return nil
}

func (r *Repository) GetRosterFileByID(rosterFileID string) (*domain.RosterFile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT roster_file_id, uploaded_at, assignments_count, roster_data, status
		FROM roster_files
		WHERE roster_file_id = $1
	`

	rosterFile := &domain.RosterFile{}
	var rosterData string

	dst := []any{
		&rosterFile.RosterFileID,
		&rosterFile.UploadedAt,
		&rosterFile.AssignmentsCount,
		&rosterData,
		&rosterFile.Status,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, rosterFileID).Scan(dst...); err != nil {
		return nil, err
	}

	rosterFile.RosterData = []byte(rosterData)
	return rosterFile, nil
}

func (r *Repository) UpdateRosterFileStatus(rosterFileID string, status domain.RosterStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `UPDATE roster_files SET status = $1 WHERE roster_file_id = $2`

	if _, err := r.dbpool.ExecContext(ctx, query, status, rosterFileID); err != nil {
		return err
	}

	return nil
}

func (r *Repository) PurgeRosterFilesBefore(cutoff time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `DELETE FROM roster_files WHERE uploaded_at < $1`

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
