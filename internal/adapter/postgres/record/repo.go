// Package record implements the record store repository on PostgreSQL.
// Each restaurant is one row holding its full JSON document; the store
// header lives in the single-row store_meta table.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/postgres"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// saveRetries bounds reruns of a Save that lost a serialization conflict
// against a concurrent writer.
const saveRetries = 3

// Repo provides record store persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
	txm  *postgres.TxManager
}

// New creates a new record store repository.
func New(pool *pgxpool.Pool, txm *postgres.TxManager) *Repo {
	return &Repo{pool: pool, txm: txm}
}

// Load assembles the store from the header row and all restaurant rows in
// stored order. An empty database loads as an empty store.
func (r *Repo) Load(ctx context.Context) (*domain.Store, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	header := map[string]json.RawMessage{}
	var raw []byte
	err := q.QueryRow(ctx, `SELECT header FROM store_meta WHERE id = 1`).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, postgres.MapError(err, "record.Load: header")
	default:
		if err := json.Unmarshal(raw, &header); err != nil {
			return nil, fmt.Errorf("record.Load: header: %w: %v", domain.ErrMalformedStore, err)
		}
	}

	rows, err := q.Query(ctx, `SELECT doc FROM restaurants ORDER BY position, id`)
	if err != nil {
		return nil, postgres.MapError(err, "record.Load: query restaurants")
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, postgres.MapError(err, "record.Load: scan restaurants")
	}

	list := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		list[i] = d
	}
	encodedList, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("record.Load: %w", err)
	}
	header["restaurants"] = encodedList

	doc, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("record.Load: %w", err)
	}

	store, err := domain.DecodeStore(doc)
	if err != nil {
		return nil, fmt.Errorf("record.Load: %w", err)
	}
	return store, nil
}

// Save replaces the stored contents with s in a single serializable
// transaction, so readers never observe a partially written store.
func (r *Repo) Save(ctx context.Context, s *domain.Store) error {
	header, err := encodeHeader(s)
	if err != nil {
		return fmt.Errorf("record.Save: %w", err)
	}

	return r.txm.WithIsolation(pgx.Serializable).WithRetries(saveRetries).RunInTx(ctx, func(ctx context.Context) error {
		q := postgres.QuerierFromCtx(ctx, r.pool)

		if _, err := q.Exec(ctx,
			`INSERT INTO store_meta (id, header, updated_at) VALUES (1, $1, now())
			 ON CONFLICT (id) DO UPDATE SET header = EXCLUDED.header, updated_at = now()`,
			header,
		); err != nil {
			return postgres.MapError(err, "record.Save: header")
		}

		if _, err := q.Exec(ctx, `DELETE FROM restaurants`); err != nil {
			return postgres.MapError(err, "record.Save: clear restaurants")
		}

		if len(s.Restaurants) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for i := range s.Restaurants {
			rec := &s.Restaurants[i]
			doc, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("record.Save: encode %s: %w", rec.ID, err)
			}
			var placeID *string
			if rec.GooglePlaceID != "" {
				placeID = &rec.GooglePlaceID
			}
			batch.Queue(
				`INSERT INTO restaurants (id, position, name, status, google_place_id, doc)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				rec.ID, i, rec.Name, string(rec.Status), placeID, doc,
			)
		}

		if _, err := postgres.SendBatchExec(ctx, q, batch); err != nil {
			return postgres.MapError(err, "record.Save: insert restaurants")
		}
		return nil
	})
}

// Count returns the number of stored records without loading them.
func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	err := postgres.QuerierFromCtx(ctx, r.pool).
		QueryRow(ctx, `SELECT count(*) FROM restaurants`).Scan(&n)
	if err != nil {
		return 0, postgres.MapError(err, "record.Count")
	}
	return n, nil
}

// encodeHeader renders every store key except restaurants.
func encodeHeader(s *domain.Store) ([]byte, error) {
	headerOnly := *s
	headerOnly.Restaurants = nil

	data, err := json.Marshal(headerOnly)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	delete(obj, "restaurants")
	return json.Marshal(obj)
}
