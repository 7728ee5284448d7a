package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// Repository errors
var (
	// ErrNotFound aliases gorm's record-not-found so callers can match either
	ErrNotFound = gorm.ErrRecordNotFound

	// ErrDuplicateKey is returned when an insert or update hits a unique index
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrStaleWrite is returned when a conditional update matched no row
	ErrStaleWrite = errors.New("row changed or no longer matches")
)

// DefaultTimeout bounds every repository call that has no deadline of its own
const DefaultTimeout = 5 * time.Second

// MySQL server error numbers
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// store is embedded by every repository and applies the call timeout
type store struct {
	db      *gorm.DB
	timeout time.Duration
}

func newStore(db *gorm.DB) store {
	return store{db: db, timeout: DefaultTimeout}
}

// run executes fn against a session bound to a bounded context
func (s *store) run(ctx context.Context, fn func(db *gorm.DB) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return translate(fn(s.db.WithContext(ctx)))
}

// translate maps driver errors onto repository errors
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return ErrDuplicateKey
	}
	return err
}

// isRetryable reports whether a transaction failed on a lock conflict and may be replayed
func isRetryable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}
	return false
}

// affected turns a zero-row conditional update into ErrStaleWrite
func affected(result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleWrite
	}
	return nil
}
