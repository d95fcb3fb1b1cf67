package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres-backed catalog store. Stock CAS maps onto a
// conditional UPDATE against item_sizes.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

func (r *Repo) Get(ctx context.Context, id string) (*Item, error) {
	var it Item
	err := r.DB.QueryRow(ctx, `
		SELECT id, brand, name, description, price_cents, image_url, category, created_at, updated_at
		FROM items WHERE id=$1`, id).
		Scan(&it.ID, &it.Brand, &it.Name, &it.Description, &it.PriceCents, &it.ImageURL, &it.Category, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, `SELECT size, quantity FROM item_sizes WHERE item_id=$1 ORDER BY size`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b SizeBucket
		if err := rows.Scan(&b.Size, &b.Quantity); err != nil {
			return nil, err
		}
		it.Sizes = append(it.Sizes, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *Repo) Create(ctx context.Context, it *Item) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO items(id, brand, name, description, price_cents, image_url, category)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		it.ID, it.Brand, it.Name, it.Description, it.PriceCents, it.ImageURL, it.Category); err != nil {
		return err
	}
	for _, b := range it.Sizes {
		if _, err := tx.Exec(ctx, `INSERT INTO item_sizes(item_id, size, quantity) VALUES ($1,$2,$3)`,
			it.ID, b.Size, b.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Update replaces the item metadata and its size set. Quantities carried in
// it.Sizes overwrite the stored ones, so catalog management should restock via
// Restock rather than Update while orders are flowing.
func (r *Repo) Update(ctx context.Context, it *Item) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE items SET brand=$2, name=$3, description=$4, price_cents=$5, image_url=$6, category=$7, updated_at=now()
		WHERE id=$1`,
		it.ID, it.Brand, it.Name, it.Description, it.PriceCents, it.ImageURL, it.Category)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM item_sizes WHERE item_id=$1`, it.ID); err != nil {
		return err
	}
	for _, b := range it.Sizes {
		if _, err := tx.Exec(ctx, `INSERT INTO item_sizes(item_id, size, quantity) VALUES ($1,$2,$3)`,
			it.ID, b.Size, b.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM item_sizes WHERE item_id=$1`, id); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `DELETE FROM items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *Repo) List(ctx context.Context) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, brand, name, description, price_cents, image_url, category, created_at, updated_at
		FROM items ORDER BY brand, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	idx := map[string]int{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Brand, &it.Name, &it.Description, &it.PriceCents, &it.ImageURL, &it.Category, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		idx[it.ID] = len(out)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srows, err := r.DB.Query(ctx, `SELECT item_id, size, quantity FROM item_sizes ORDER BY item_id, size`)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var itemID string
		var b SizeBucket
		if err := srows.Scan(&itemID, &b.Size, &b.Quantity); err != nil {
			return nil, err
		}
		if i, ok := idx[itemID]; ok {
			out[i].Sizes = append(out[i].Sizes, b)
		}
	}
	return out, srows.Err()
}

func (r *Repo) Restock(ctx context.Context, id string, size, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE item_sizes SET quantity = quantity + $3 WHERE item_id=$1 AND size=$2`, id, size, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) CompareAndSwapSizeQuantity(ctx context.Context, id string, size, expected, next int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE item_sizes SET quantity=$4 WHERE item_id=$1 AND size=$2 AND quantity=$3`,
		id, size, expected, next)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	// Distinguish a lost race from a missing bucket.
	var n int
	err = r.DB.QueryRow(ctx, `SELECT 1 FROM item_sizes WHERE item_id=$1 AND size=$2`, id, size).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}
