package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/postgres"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/adapter/postgres/testhelper"
)

func restaurantExists(t *testing.T, pool *pgxpool.Pool, id string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(context.Background(),
		`SELECT EXISTS(SELECT 1 FROM restaurants WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("restaurantExists query: %v", err)
	}
	return exists
}

func insertRestaurant(ctx context.Context, q postgres.Querier, id string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO restaurants (id, position, name, doc) VALUES ($1, 0, 'test', $2)`,
		id, []byte(`{"id":"`+id+`"}`),
	)
	return err
}

func TestRunInTx_Commit(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool)
	id := uuid.NewString()

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		return insertRestaurant(ctx, postgres.QuerierFromCtx(ctx, pool), id)
	})
	if err != nil {
		t.Fatalf("RunInTx returned error: %v", err)
	}
	if !restaurantExists(t, pool, id) {
		t.Fatal("expected row to exist after committed transaction")
	}
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool)
	id := uuid.NewString()
	sentinel := errors.New("stage failed")

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		if err := insertRestaurant(ctx, postgres.QuerierFromCtx(ctx, pool), id); err != nil {
			t.Fatalf("insert inside tx failed: %v", err)
		}
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got: %v", err)
	}
	if restaurantExists(t, pool, id) {
		t.Fatal("expected row NOT to exist after rolled-back transaction")
	}
}

func TestRunInTx_RollbackOnPanic(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool)
	id := uuid.NewString()

	defer func() {
		if r := recover(); r != "test panic" {
			t.Fatalf("expected panic value %q, got %v", "test panic", r)
		}
		if restaurantExists(t, pool, id) {
			t.Fatal("expected row NOT to exist after panic-rolled-back transaction")
		}
	}()

	_ = tm.RunInTx(context.Background(), func(ctx context.Context) error {
		if err := insertRestaurant(ctx, postgres.QuerierFromCtx(ctx, pool), id); err != nil {
			t.Fatalf("insert inside tx failed: %v", err)
		}
		panic("test panic")
	})
}

func TestRunInTx_SerializableIsolation(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool).WithIsolation(pgx.Serializable)

	var level string
	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		return postgres.QuerierFromCtx(ctx, pool).
			QueryRow(ctx, `SHOW transaction_isolation`).Scan(&level)
	})
	if err != nil {
		t.Fatalf("RunInTx returned error: %v", err)
	}
	if level != "serializable" {
		t.Fatalf("transaction_isolation = %q, want serializable", level)
	}
}

func TestRunInTx_RetriesSerializationFailure(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool).WithRetries(2)

	attempts := 0
	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		attempts++
		switch attempts {
		case 1:
			return &pgconn.PgError{Code: "40001"}
		case 2:
			return postgres.MapError(&pgconn.PgError{Code: "40P01"}, "test")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx returned error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRunInTx_NoRetryOnOtherErrors(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool).WithRetries(5)
	sentinel := errors.New("bad record")

	attempts := 0
	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) || attempts != 1 {
		t.Fatalf("err = %v after %d attempts, want sentinel after 1", err, attempts)
	}
}

func TestSendBatchExec_CountsRows(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	ctx := context.Background()

	batch := &pgx.Batch{}
	for range 3 {
		id := uuid.NewString()
		batch.Queue(`INSERT INTO restaurants (id, position, doc) VALUES ($1, 0, $2)`, id, []byte(`{}`))
	}

	n, err := postgres.SendBatchExec(ctx, pool, batch)
	if err != nil {
		t.Fatalf("SendBatchExec: %v", err)
	}
	if n != 3 {
		t.Fatalf("affected = %d, want 3", n)
	}
}
