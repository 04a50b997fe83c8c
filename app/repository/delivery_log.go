package repository

import (
	"context"
	"database/sql"

	"github.com/relayq/relayq/app/entity"
)

// DeliveryLog is an optional MySQL-backed audit trail of terminal delivery
// outcomes. It carries no delivery-state guarantees; the cache record is
// authoritative.
type DeliveryLog struct {
	db *sql.DB
}

// NewDeliveryLog constructs the audit log over an open connection pool.
func NewDeliveryLog(db *sql.DB) *DeliveryLog {
	return &DeliveryLog{db: db}
}

// Record inserts one row per terminal outcome.
func (r *DeliveryLog) Record(ctx context.Context, jobID string, email *entity.Email, status, message string) error {
	const query = `
		INSERT INTO delivery_log (job_id, sender_email, recipient, subject, status, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, jobID, email.SenderEmail, email.RecipientEmail, email.Subject, status, message)
	return err
}

// RecentByRecipient returns the latest outcomes for a recipient.
func (r *DeliveryLog) RecentByRecipient(ctx context.Context, recipient string, limit int) ([]entity.DeliveryRecord, error) {
	const query = `
		SELECT job_id, sender_email, recipient, subject, status, message
		FROM delivery_log
		WHERE recipient = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, recipient, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []entity.DeliveryRecord
	for rows.Next() {
		var rec entity.DeliveryRecord
		if err := rows.Scan(&rec.JobID, &rec.SenderEmail, &rec.Recipient, &rec.Subject, &rec.Status, &rec.Message); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
