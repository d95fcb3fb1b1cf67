package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres-backed order store.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const orderColumns = `id, external_id, user_id, payment_method, total_cents, status,
	ship_address, ship_city, ship_postal_code, ship_country,
	confirmed_at, shipped_at, delivered_at, cancelled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ExternalID, &o.UserID, &o.PaymentMethod, &o.TotalCents, &o.Status,
		&o.Shipping.Address, &o.Shipping.City, &o.Shipping.PostalCode, &o.Shipping.Country,
		&o.ConfirmedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.DB.Query(ctx, `
		SELECT item_id, name, brand, image_url, size, quantity, price_cents
		FROM order_items WHERE order_id=$1 ORDER BY position`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ItemID, &li.Name, &li.Brand, &li.ImageURL, &li.Size, &li.Quantity, &li.PriceCents); err != nil {
			return err
		}
		o.Items = append(o.Items, li)
	}
	return rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) GetByExternalID(ctx context.Context, externalID string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_id=$1`, externalID))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders(id, external_id, user_id, payment_method, total_cents, status,
			ship_address, ship_city, ship_postal_code, ship_country, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
		o.ID, o.ExternalID, o.UserID, o.PaymentMethod, o.TotalCents, o.Status,
		o.Shipping.Address, o.Shipping.City, o.Shipping.PostalCode, o.Shipping.Country, o.CreatedAt); err != nil {
		return err
	}
	for i, li := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, item_id, name, brand, image_url, size, quantity, price_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			o.ID, i, li.ItemID, li.Name, li.Brand, li.ImageURL, li.Size, li.Quantity, li.PriceCents); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadItems(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repo) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (r *Repo) ListAll(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

// timestampColumn maps a target status to the column stamped when the order
// first enters it. Timestamping is an explicit part of the status write, not
// a storage-side trigger.
func timestampColumn(s Status) (string, bool) {
	switch s {
	case StatusConfirmed:
		return "confirmed_at", true
	case StatusShipped:
		return "shipped_at", true
	case StatusDelivered:
		return "delivered_at", true
	case StatusCancelled:
		return "cancelled_at", true
	}
	return "", false
}

func (r *Repo) CompareAndSwapStatus(ctx context.Context, id string, expected, next Status, at time.Time) error {
	col, ok := timestampColumn(next)
	if !ok {
		return fmt.Errorf("no timestamp column for status %s", next)
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$3, `+col+`=$4, updated_at=$4 WHERE id=$1 AND status=$2`,
		id, expected, next, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var n int
	err = r.DB.QueryRow(ctx, `SELECT 1 FROM orders WHERE id=$1`, id).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}
