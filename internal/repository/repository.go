package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"counter-service/internal/entity"
	"counter-service/internal/sharding"
)

// ErrKeyNotFound is returned when a key doesn't exist in an actor's storage
var ErrKeyNotFound = errors.New("key not found")

// UpdateFunc computes the next value from the current one.
// found is false when the key has never been written.
// Returning an error aborts the update without writing.
type UpdateFunc func(current string, found bool) (string, error)

// Dialect holds the statements that differ between storage drivers.
type Dialect struct {
	Driver string

	selectValue     string
	selectForUpdate string
	selectNamespace string
	upsert          string
	insertIgnore    string
}

var MySQL = Dialect{
	Driver:          "mysql",
	selectValue:     `SELECT value FROM actor_storage WHERE namespace = ? AND storage_key = ?`,
	selectForUpdate: `SELECT value FROM actor_storage WHERE namespace = ? AND storage_key = ? FOR UPDATE`,
	selectNamespace: `SELECT storage_key, value FROM actor_storage WHERE namespace = ?`,
	upsert:          `INSERT INTO actor_storage (namespace, storage_key, value) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)`,
	insertIgnore:    `INSERT IGNORE INTO actor_storage (namespace, storage_key, value) VALUES (?, ?, ?)`,
}

// SQLite relies on _txlock=immediate for write locking, so it has no FOR UPDATE.
var SQLite = Dialect{
	Driver:          "sqlite3",
	selectValue:     `SELECT value FROM actor_storage WHERE namespace = ? AND storage_key = ?`,
	selectForUpdate: `SELECT value FROM actor_storage WHERE namespace = ? AND storage_key = ?`,
	selectNamespace: `SELECT storage_key, value FROM actor_storage WHERE namespace = ?`,
	upsert:          `INSERT INTO actor_storage (namespace, storage_key, value) VALUES (?, ?, ?) ON CONFLICT(namespace, storage_key) DO UPDATE SET value = excluded.value`,
	insertIgnore:    `INSERT OR IGNORE INTO actor_storage (namespace, storage_key, value) VALUES (?, ?, ?)`,
}

// DialectFor returns the dialect registered for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case MySQL.Driver:
		return MySQL, nil
	case SQLite.Driver, "sqlite":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported storage driver %q", driver)
}

// StateRepository persists actor storage namespaces across one or more databases.
// A namespace always lives on the same database.
type StateRepository struct {
	dbShards []*sql.DB
	dialect  Dialect
}

func NewStateRepository(dbShards []*sql.DB, dialect Dialect) *StateRepository {
	return &StateRepository{dbShards, dialect}
}

func (r *StateRepository) shardFor(namespace string) *sql.DB {
	return r.dbShards[sharding.StorageShard(namespace, len(r.dbShards))]
}

// Get returns the stored value or ErrKeyNotFound.
func (r *StateRepository) Get(ctx context.Context, namespace, key string) (string, error) {
	db := r.shardFor(namespace)

	var value string
	err := db.QueryRowContext(ctx, r.dialect.selectValue, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", storageError("get", err)
	}
	return value, nil
}

// mysqlDeadlock is ER_LOCK_DEADLOCK. MySQL rolls the victim back in full.
const mysqlDeadlock = 1213

const maxUpdateAttempts = 3

// Update runs a read-modify-write of one key inside a transaction.
// The new value is returned only once the transaction has committed.
//
// Two first writes of the same absent key on MySQL both take gap locks and
// one of them is chosen as a deadlock victim. The victim was rolled back,
// so it is retried with fn called again on the fresh state.
func (r *StateRepository) Update(ctx context.Context, namespace, key string, fn UpdateFunc) (string, error) {
	for attempt := 1; ; attempt++ {
		next, err := r.update(ctx, namespace, key, fn)
		if attempt == maxUpdateAttempts || !isDeadlock(err) || ctx.Err() != nil {
			return next, err
		}
		logger.Warn().Err(err).Msgf("Deadlock updating %s/%s, retrying (%d/%d)", namespace, key, attempt, maxUpdateAttempts)
	}
}

// isDeadlock reports whether err is a storage failure caused by a MySQL deadlock.
func isDeadlock(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.Is(err, entity.ErrStorageFailure) && errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDeadlock
}

func (r *StateRepository) update(ctx context.Context, namespace, key string, fn UpdateFunc) (string, error) {
	db := r.shardFor(namespace)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", storageError("begin", err)
	}

	found := true
	var current string
	err = tx.QueryRowContext(ctx, r.dialect.selectForUpdate, namespace, key).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		tx.Rollback()
		return "", storageError("select", err)
	}

	next, err := fn(current, found)
	if err != nil {
		tx.Rollback()
		return "", err
	}

	_, err = tx.ExecContext(ctx, r.dialect.upsert, namespace, key, next)
	if err != nil {
		tx.Rollback()
		return "", storageError("write", err)
	}

	err = tx.Commit()
	if err != nil {
		return "", storageError("commit", err)
	}

	return next, nil
}

// PutIfAbsent writes value only if the key has no value yet and returns
// whatever is stored afterwards. inserted is true when this call won.
func (r *StateRepository) PutIfAbsent(ctx context.Context, namespace, key, value string) (stored string, inserted bool, err error) {
	db := r.shardFor(namespace)

	res, err := db.ExecContext(ctx, r.dialect.insertIgnore, namespace, key, value)
	if err != nil {
		return "", false, storageError("insert", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, storageError("insert", err)
	}
	if affected == 1 {
		return value, true, nil
	}

	stored, err = r.Get(ctx, namespace, key)
	if err != nil {
		return "", false, err
	}
	return stored, false, nil
}

// List returns every key/value pair of a namespace.
func (r *StateRepository) List(ctx context.Context, namespace string) (map[string]string, error) {
	db := r.shardFor(namespace)

	rows, err := db.QueryContext(ctx, r.dialect.selectNamespace, namespace)
	if err != nil {
		return nil, storageError("list", err)
	}
	defer rows.Close()

	entries := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, storageError("list", err)
		}
		entries[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list", err)
	}

	return entries, nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", entity.ErrStorageFailure, op, err)
}
