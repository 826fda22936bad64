package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emdx-dev/emdx/internal/storage"
)

// queryer is the common surface of *sql.DB and a pinned *sql.Conn; every
// repository method in this package is written against it so the same SQL
// runs whether or not it's inside an explicit transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStorage) q() queryer { return s.db }

// sqlTx adapts a pinned connection to storage.Transaction. Every method on
// it is implemented in the entity-specific files (documents.go, tasks.go,
// ...) by sharing the exact same bodies as SQLiteStorage, parameterized
// over q().
type sqlTx struct {
	conn queryer
}

var _ storage.Transaction = (*sqlTx)(nil)

func (t *sqlTx) q() queryer { return t.conn }

// RunInTransaction opens a BEGIN IMMEDIATE transaction (acquiring the write
// lock up front, which avoids SQLite's classic read-then-upgrade deadlock
// under contention) and commits on success or rolls back on any returned
// error or panic. Grounded on storage.Storage.RunInTransaction's documented
// contract in the teacher.
func (s *SQLiteStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return classify("begin-tx:conn", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return classify("begin-tx:begin-immediate", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	adapter := &sqlTx{conn: conn}

	if err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in transaction: %v", r)
			}
		}()
		return fn(adapter)
	}(); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return classify("begin-tx:commit", err)
	}
	committed = true
	return nil
}
