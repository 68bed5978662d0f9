package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sgsec-dev/titus-simulator/internal/domain"
)

// EventSent 查询某条排班的某类打卡事件是否已经发送过，没有记录视为未发送
func (r *Repository) EventSent(deploymentItemID string, personnelID string, kind domain.ClockKind) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT in_sent_at, out_sent_at
		FROM simulated_events
		WHERE deployment_item_id = $1 AND personnel_id = $2
	`

	var inSentAt, outSentAt sql.NullTime
	dst := []any{
		&inSentAt,
		&outSentAt,
	}

	if err := r.dbpool.QueryRowContext(ctx, query, deploymentItemID, personnelID).Scan(dst...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	if kind == domain.ClockIn {
		return inSentAt.Valid, nil
	}

	return outSentAt.Valid, nil
}

// EventClaim 是对某条打卡事件的独占发送权。
// 在 Commit 或 Release 之前，底层的台账行一直被锁定，其他认领同一事件的调用都会等待。
type EventClaim struct {
	tx               *sql.Tx
	ctx              context.Context
	cancel           context.CancelFunc
	kind             domain.ClockKind
	deploymentItemID string
	personnelID      string
}

// ClaimEvent 以独占方式认领一次打卡事件的发送权。
// 返回 nil 表示该事件已经发送过，调用方应该跳过；
// 拿到认领的调用方发送成功后必须调用 Commit 写入发送时间，失败则调用 Release 放弃，
// 放弃后台账不留任何痕迹，下一次运行仍然会尝试发送这个事件。
func (r *Repository) ClaimEvent(deploymentItemID string, personnelID string, kind domain.ClockKind) (*EventClaim, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		cancel()
		return nil, err
	}

	// 先保证行存在，再锁行检查发送时间，两个并发认领会在这里排队
	query := `
		INSERT INTO simulated_events (deployment_item_id, personnel_id)
		VALUES ($1, $2)
		ON CONFLICT (deployment_item_id, personnel_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, query, deploymentItemID, personnelID); err != nil {
		_ = tx.Rollback()
		cancel()
		return nil, err
	}

	query = `
		SELECT in_sent_at, out_sent_at
		FROM simulated_events
		WHERE deployment_item_id = $1 AND personnel_id = $2
		FOR UPDATE
	`

	var inSentAt, outSentAt sql.NullTime
	if err := tx.QueryRowContext(ctx, query, deploymentItemID, personnelID).Scan(&inSentAt, &outSentAt); err != nil {
		_ = tx.Rollback()
		cancel()
		return nil, err
	}

	alreadySent := (kind == domain.ClockIn && inSentAt.Valid) || (kind == domain.ClockOut && outSentAt.Valid)
	if alreadySent {
		_ = tx.Rollback()
		cancel()
		return nil, nil
	}

	return &EventClaim{
		tx:               tx,
		ctx:              ctx,
		cancel:           cancel,
		kind:             kind,
		deploymentItemID: deploymentItemID,
		personnelID:      personnelID,
	}, nil
}

// Commit 写入发送时间并提交认领事务
func (c *EventClaim) Commit(sentAt time.Time) error {
	defer c.cancel()

	var query string
	if c.kind == domain.ClockIn {
		query = `UPDATE simulated_events SET in_sent_at = $1 WHERE deployment_item_id = $2 AND personnel_id = $3`
	} else {
		query = `UPDATE simulated_events SET out_sent_at = $1 WHERE deployment_item_id = $2 AND personnel_id = $3`
	}

	if _, err := c.tx.ExecContext(c.ctx, query, sentAt, c.deploymentItemID, c.personnelID); err != nil {
		_ = c.tx.Rollback()
		return err
	}

	return c.tx.Commit()
}

// Release 放弃认领，发送失败时调用
func (c *EventClaim) Release() {
	defer c.cancel()
	_ = c.tx.Rollback()
}

// CleanupPostedEvents 删除一批打卡事件对应的台账行，立即模式发送完成后调用。
// 返回处理的键数量而不是实际删除的行数，同一条排班的 IN、OUT 两个键会被算两次。
func (r *Repository) CleanupPostedEvents(keys []domain.EmissionKey) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `DELETE FROM simulated_events WHERE deployment_item_id = $1 AND personnel_id = $2`

	cleaned := 0
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, query, key.DeploymentItemID, key.PersonnelID); err != nil {
			return 0, err
		}
		cleaned++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return cleaned, nil
}

// PurgeEventsBefore 删除发送时间早于 cutoff 的台账行，实时模式的记录靠这里过期。
// 只要还有一类打卡是在 cutoff 之后发送的，这一行就会被保留。
func (r *Repository) PurgeEventsBefore(cutoff time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		DELETE FROM simulated_events
		WHERE (in_sent_at < $1 OR in_sent_at IS NULL)
			AND (out_sent_at < $1 OR out_sent_at IS NULL)
	`

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

// GetLedgerStats 统计台账中的排班数和两类打卡事件的发送数
func (r *Repository) GetLedgerStats() (*domain.LedgerStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT COUNT(*), COUNT(in_sent_at), COUNT(out_sent_at)
		FROM simulated_events
	`

	stats := &domain.LedgerStats{}
	dst := []any{
		&stats.TotalAssignments,
		&stats.InEventsSent,
		&stats.OutEventsSent,
	}

	if err := r.dbpool.QueryRowContext(ctx, query).Scan(dst...); err != nil {
		return nil, err
	}

	return stats, nil
}
