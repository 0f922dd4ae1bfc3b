package orm

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"

	"github.com/startdusk/sqlcrud/orm/internal/errs"
)

var (
	_ Session = &Tx{}
)

// txBackend 真正持有事务的对象, database/sql 和 pgx 各有一个实现
type txBackend interface {
	Executor
	commit() error
	rollback() error
}

// txState 同一个事务的所有句柄共享
type txState struct {
	backend txBackend
	done    atomic.Bool
}

func (s *txState) commit() error {
	if !s.done.CompareAndSwap(false, true) {
		return errs.ErrTxDone
	}
	return s.backend.commit()
}

func (s *txState) rollback() error {
	if !s.done.CompareAndSwap(false, true) {
		return errs.ErrTxDone
	}
	return s.backend.rollback()
}

// Tx 事务句柄, 只能使用一次
// 每一次 TxXxx 调用都会拿走句柄的所有权并且返回一个新的句柄, 之后必须使用新的句柄
// 使用已经转移的句柄返回 ErrTxMoved, 提交或者回滚之后返回 ErrTxDone
type Tx struct {
	core
	state *txState
	moved atomic.Bool
}

func newTx(c core, backend txBackend) *Tx {
	return &Tx{core: c, state: &txState{backend: backend}}
}

func (t *Tx) getCore() core {
	return t.core
}

func (t *Tx) usable() error {
	if t.state.done.Load() {
		return errs.ErrTxDone
	}
	if t.moved.Load() {
		return errs.ErrTxMoved
	}
	return nil
}

// take 转移所有权, 并发调用的时候只有一个能成功
func (t *Tx) take() (*Tx, error) {
	if t.state.done.Load() {
		return nil, errs.ErrTxDone
	}
	if !t.moved.CompareAndSwap(false, true) {
		return nil, errs.ErrTxMoved
	}
	return &Tx{core: t.core, state: t.state}, nil
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	return t.state.backend.Exec(ctx, query, args...)
}

func (t *Tx) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	return t.state.backend.Query(ctx, query, args...)
}

func (t *Tx) Commit() error {
	if err := t.usable(); err != nil {
		return err
	}
	if !t.moved.CompareAndSwap(false, true) {
		return errs.ErrTxMoved
	}
	return t.state.commit()
}

func (t *Tx) Rollback() error {
	if err := t.usable(); err != nil {
		return err
	}
	if !t.moved.CompareAndSwap(false, true) {
		return errs.ErrTxMoved
	}
	return t.state.rollback()
}

// RollbackIfNotCommit 尝试回滚, 如果此时事务已经提交了, 或者被回滚掉了, 那么
// 就会得到 ErrTxDone 错误, 这时候忽略这个错误就好
// 任何一个句柄, 包括已经转移的句柄都可以调用, 适合放在 defer 里面
func (t *Tx) RollbackIfNotCommit() error {
	err := t.state.rollback()
	if errors.Is(err, errs.ErrTxDone) {
		return nil
	}
	return err
}

func (t *Tx) FetchOne(ctx context.Context, record any) (*Tx, error) {
	next, err := t.take()
	if err != nil {
		return nil, err
	}
	return next, fetchOne(ctx, next, record)
}

func (t *Tx) FetchAll(ctx context.Context, record any, dest any) (*Tx, error) {
	next, err := t.take()
	if err != nil {
		return nil, err
	}
	return next, fetchAll(ctx, next, record, dest)
}

func (t *Tx) Insert(ctx context.Context, record any) (*Tx, InsertOutcome, error) {
	next, err := t.take()
	if err != nil {
		return nil, InsertOutcome{}, err
	}
	out, err := insert(ctx, next, record)
	return next, out, err
}

func (t *Tx) Update(ctx context.Context, record any) (*Tx, int64, error) {
	next, err := t.take()
	if err != nil {
		return nil, 0, err
	}
	n, err := affect(ctx, next, record, OpUpdate)
	return next, n, err
}

func (t *Tx) Delete(ctx context.Context, record any) (*Tx, int64, error) {
	next, err := t.take()
	if err != nil {
		return nil, 0, err
	}
	n, err := affect(ctx, next, record, OpDelete)
	return next, n, err
}

func (t *Tx) SelectWith(ctx context.Context, record any, fn func(row Row) error) (*Tx, error) {
	next, err := t.take()
	if err != nil {
		return nil, err
	}
	return next, selectWith(ctx, next, record, fn)
}

func (t *Tx) SelectAllWith(ctx context.Context, record any, fn func(row Row) error) (*Tx, error) {
	next, err := t.take()
	if err != nil {
		return nil, err
	}
	return next, selectAllWith(ctx, next, record, fn)
}

// TxFetchOne 出错的时候同样返回新的句柄, 调用者可以用它回滚
// 只有句柄本身不可用的时候返回 nil
func TxFetchOne[T any](ctx context.Context, tx *Tx, record *T) (*Tx, *T, error) {
	next, err := tx.take()
	if err != nil {
		return nil, nil, err
	}
	res, err := FetchOne[T](ctx, next, record)
	return next, res, err
}

func TxFetchAll[T any](ctx context.Context, tx *Tx, record *T) (*Tx, []*T, error) {
	next, err := tx.take()
	if err != nil {
		return nil, nil, err
	}
	res, err := FetchAll[T](ctx, next, record)
	return next, res, err
}

func TxInsert[T any](ctx context.Context, tx *Tx, record *T) (*Tx, InsertOutcome, error) {
	next, err := tx.take()
	if err != nil {
		return nil, InsertOutcome{}, err
	}
	out, err := Insert[T](ctx, next, record)
	return next, out, err
}

func TxUpdate[T any](ctx context.Context, tx *Tx, record *T) (*Tx, int64, error) {
	next, err := tx.take()
	if err != nil {
		return nil, 0, err
	}
	n, err := Update[T](ctx, next, record)
	return next, n, err
}

func TxDelete[T any](ctx context.Context, tx *Tx, record *T) (*Tx, int64, error) {
	next, err := tx.take()
	if err != nil {
		return nil, 0, err
	}
	n, err := Delete[T](ctx, next, record)
	return next, n, err
}

func TxSelectWith[T any, R any](ctx context.Context, tx *Tx, record *T, fn RowMapper[R]) (*Tx, R, error) {
	var zero R
	next, err := tx.take()
	if err != nil {
		return nil, zero, err
	}
	res, err := SelectWith[T, R](ctx, next, record, fn)
	return next, res, err
}

func TxSelectAllWith[T any, R any](ctx context.Context, tx *Tx, record *T, fn RowMapper[R]) (*Tx, []R, error) {
	next, err := tx.take()
	if err != nil {
		return nil, nil, err
	}
	res, err := SelectAllWith[T, R](ctx, next, record, fn)
	return next, res, err
}

// TxFunc 在事务里面执行的业务, 返回最后一次调用得到的句柄
// 返回 nil 表示没有使用句柄, 直接提交
type TxFunc func(ctx context.Context, tx *Tx) (*Tx, error)

// doTx fn 返回错误或者 panic 的时候回滚, 否则提交 fn 返回的句柄
// panic 不会被吞掉, 回滚之后继续往上抛
func doTx(ctx context.Context, begin func(ctx context.Context) (*Tx, error), fn TxFunc) (err error) {
	tx, err := begin(ctx)
	if err != nil {
		return err
	}

	var final *Tx
	panicked := true
	defer func() {
		if panicked || err != nil {
			rbErr := tx.state.rollback()
			if errors.Is(rbErr, errs.ErrTxDone) {
				rbErr = nil
			}
			err = errs.NewErrFailedToRollbackTx(err, rbErr, panicked)
			return
		}
		if final == nil {
			err = tx.state.commit()
			return
		}
		err = final.Commit()
		if errors.Is(err, errs.ErrTxMoved) {
			// 返回的不是最新的句柄, 不能确定业务做完了
			_ = tx.state.rollback()
		}
	}()
	final, err = fn(ctx, tx)
	// 执行过程中没有发生panic, 则标志位置为false
	panicked = false
	return err
}

type sqlTx struct {
	tx *sql.Tx
}

func (s sqlTx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

func (s sqlTx) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s sqlTx) commit() error {
	return s.tx.Commit()
}

func (s sqlTx) rollback() error {
	return s.tx.Rollback()
}
