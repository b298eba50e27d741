package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skytrip/flight-bookings/internal/domain"
)

type OrderRepository interface {
	Insert(ctx context.Context, rec *domain.OrderRecord) (*domain.OrderRecord, error)
	GetByID(ctx context.Context, orderID string) (*domain.OrderRecord, error)
	GetByIDForUser(ctx context.Context, orderID, userID string) (*domain.OrderRecord, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.OrderRecord, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (bool, error)
}

type orderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

const orderCols = `order_id, user_id, status, booking_references,
contact_email, grand_total, currency, payload, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.OrderRecord, error) {
	var out domain.OrderRecord
	var userID *string
	err := row.Scan(
		&out.OrderID, &userID, &out.Status, &out.BookingReferences,
		&out.ContactEmail, &out.GrandTotal, &out.Currency, &out.Payload,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		out.UserID = *userID
	}
	return &out, nil
}

func (r *orderRepository) Insert(ctx context.Context, rec *domain.OrderRecord) (*domain.OrderRecord, error) {
	const q = `INSERT INTO flight_orders (
		order_id, user_id, status, booking_references,
		contact_email, grand_total, currency, payload
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (order_id) DO NOTHING
	RETURNING ` + orderCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	out, err := scanOrder(r.pool.QueryRow(ctx, q,
		rec.OrderID, nullable(rec.UserID), rec.Status, rec.BookingReferences,
		rec.ContactEmail, rec.GrandTotal, rec.Currency, rec.Payload,
	))
	if err == pgx.ErrNoRows {
		// Already persisted; the provider order id is the natural key.
		return r.GetByID(ctx, rec.OrderID)
	}
	return out, err
}

func (r *orderRepository) GetByID(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	const q = `SELECT ` + orderCols + ` FROM flight_orders WHERE order_id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	out, err := scanOrder(r.pool.QueryRow(ctx, q, orderID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return out, err
}

func (r *orderRepository) GetByIDForUser(ctx context.Context, orderID, userID string) (*domain.OrderRecord, error) {
	const q = `SELECT ` + orderCols + ` FROM flight_orders WHERE order_id=$1 AND user_id=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	out, err := scanOrder(r.pool.QueryRow(ctx, q, orderID, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return out, err
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.OrderRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	const q = `SELECT ` + orderCols + ` FROM flight_orders
		WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.OrderRecord
	for rows.Next() {
		out, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *out)
	}
	return orders, rows.Err()
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (bool, error) {
	const q = `UPDATE flight_orders SET status=$2 WHERE order_id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, orderID, status)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// nullable maps "" to NULL for optional user ids.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
