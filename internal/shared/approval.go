package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/da-luiz/Clear-Chain/internal/platform/db"
)

// ApprovalAction enumerates approval log actions.
type ApprovalAction string

const (
	// ApprovalSubmit marks a submit action.
	ApprovalSubmit ApprovalAction = "SUBMIT"
	// ApprovalApprove marks an approve action.
	ApprovalApprove ApprovalAction = "APPROVE"
	// ApprovalReject marks a reject action.
	ApprovalReject ApprovalAction = "REJECT"
	// ApprovalRequestInfo marks a reviewer asking for more information.
	ApprovalRequestInfo ApprovalAction = "REQUEST_INFO"
	// ApprovalCancel marks a cancellation by the requester.
	ApprovalCancel ApprovalAction = "CANCEL"
)

// ApprovalLog represents a single approval record.
type ApprovalLog struct {
	ID        int64          `json:"id"`
	Module    string         `json:"module"`
	RefID     uuid.UUID      `json:"refId"`
	Stage     string         `json:"stage,omitempty"`
	ActorID   int64          `json:"actorId"`
	ActorName string         `json:"actorName,omitempty"`
	Action    ApprovalAction `json:"action"`
	Note      string         `json:"note,omitempty"`
	At        time.Time      `json:"at"`
}

// ApprovalRefID derives the stable approval reference of a numeric record.
func ApprovalRefID(module string, id int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d", module, id)))
}

// ApprovalRecorder persists approval history.
type ApprovalRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewApprovalRecorder constructs ApprovalRecorder.
func NewApprovalRecorder(pool *pgxpool.Pool, logger *slog.Logger) *ApprovalRecorder {
	return &ApprovalRecorder{pool: pool, logger: logger}
}

// Record writes approval entry to database.
func (r *ApprovalRecorder) Record(ctx context.Context, log ApprovalLog) error {
	if r == nil {
		return errors.New("approval recorder not initialised")
	}
	if err := InsertApproval(ctx, r.pool, log); err != nil {
		r.logger.Error("record approval", slog.Any("error", err), slog.String("module", log.Module), slog.String("action", string(log.Action)))
		return err
	}
	return nil
}

// InsertApproval writes an approval entry through q, which may be a pool or
// an open transaction.
func InsertApproval(ctx context.Context, q db.DBTX, log ApprovalLog) error {
	if err := validateApproval(log); err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err := q.Exec(ctx, `INSERT INTO approvals (module, ref_id, stage, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`, log.Module, log.RefID, log.Stage, log.ActorID, string(log.Action), log.Note, at)
	return err
}

// List returns approvals for module/ref in chronological order.
func (r *ApprovalRecorder) List(ctx context.Context, module string, ref uuid.UUID) ([]ApprovalLog, error) {
	if r == nil {
		return nil, errors.New("approval recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.module, a.ref_id, a.stage, a.actor_id, COALESCE(u.username, ''), a.action, a.note, a.at
FROM approvals a LEFT JOIN users u ON u.id = a.actor_id
WHERE a.module=$1 AND a.ref_id=$2 ORDER BY a.at ASC, a.id ASC`, module, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []ApprovalLog
	for rows.Next() {
		var l ApprovalLog
		var action string
		if err := rows.Scan(&l.ID, &l.Module, &l.RefID, &l.Stage, &l.ActorID, &l.ActorName, &action, &l.Note, &l.At); err != nil {
			return nil, err
		}
		l.Action = ApprovalAction(action)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func validateApproval(log ApprovalLog) error {
	switch {
	case log.Module == "":
		return errors.New("approval module required")
	case log.ActorID == 0:
		return errors.New("approval actor required")
	case log.RefID == uuid.Nil:
		return errors.New("approval ref id required")
	case log.Action == "":
		return errors.New("approval action required")
	}
	return nil
}
