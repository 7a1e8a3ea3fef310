package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chat-food/server/internal/agent/model"
	errx "github.com/chat-food/server/internal/core/error"
	logx "github.com/chat-food/server/pkg/logger"
)

// OrderStore implements model.OrderService.
type OrderStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db, now: time.Now}
}

// Cancel cancels an active order matching id and phone. The lookup and the
// update run in one transaction.
func (s *OrderStore) Cancel(ctx context.Context, orderID, phone string) (outcome model.CancelOutcome, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errx.WrapDB(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = ? AND phone = ?`, orderID, phone,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		_ = tx.Rollback()
		return model.CancelNotExist, nil
	}
	if err != nil {
		return "", errx.WrapDB(err)
	}

	switch model.OrderStatus(status) {
	case model.OrderDelivered:
		outcome = model.CancelAlreadyDelivered
	case model.OrderCanceled:
		outcome = model.CancelAlreadyCanceled
	default:
		if _, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
			string(model.OrderCanceled), s.now().Unix(), orderID,
		); err != nil {
			return "", errx.WrapDB(err)
		}
		outcome = model.CancelCanceledNow
	}

	if err = tx.Commit(); err != nil {
		return "", errx.WrapDB(err)
	}
	logx.Info().Str("order_id", orderID).Str("outcome", string(outcome)).Msg("order cancel processed")
	return outcome, nil
}

// AddComment stores a comment on an existing order and returns its id.
func (s *OrderStore) AddComment(ctx context.Context, orderID, personName, comment string) (string, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, orderID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errx.ErrOrderNotFound
	}
	if err != nil {
		return "", errx.WrapDB(err)
	}

	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO order_comments (id, order_id, person_name, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, orderID, personName, comment, s.now().Unix(),
	); err != nil {
		return "", errx.WrapDB(err)
	}
	return id, nil
}

// Status returns the status of an order, errx.ErrOrderNotFound when it is unknown.
func (s *OrderStore) Status(ctx context.Context, orderID string) (model.OrderStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OrderNotExist, errx.ErrOrderNotFound
	}
	if err != nil {
		return "", errx.WrapDB(err)
	}
	return model.OrderStatus(status), nil
}

// Create inserts an order; an empty id or status gets a default.
func (s *OrderStore) Create(ctx context.Context, o model.Order) (model.Order, error) {
	if o.Phone == "" {
		return model.Order{}, fmt.Errorf("order phone is required")
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = model.OrderActive
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, phone, person_name, items, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Phone, o.PersonName, o.Items, string(o.Status), o.CreatedAt.Unix(), o.CreatedAt.Unix(),
	); err != nil {
		return model.Order{}, errx.WrapDB(err)
	}
	return o, nil
}

// Comments lists the comments of an order, oldest first.
func (s *OrderStore) Comments(ctx context.Context, orderID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT comment FROM order_comments WHERE order_id = ? ORDER BY created_at, rowid`, orderID)
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, errx.WrapDB(err)
		}
		out = append(out, c)
	}
	return out, errx.WrapDB(rows.Err())
}
