package orm_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/silenceper/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/startdusk/sqlcrud/orm"
	"github.com/startdusk/sqlcrud/orm/mocks"

	_ "github.com/mattn/go-sqlite3"
)

type Account struct {
	_     struct{} `table:"accounts" where:"id = ?"`
	ID    int64
	Name  string
	Email string
}

type NewAccount struct {
	_     struct{} `table:"accounts" returning:"id"`
	ID    int64    `orm:"readonly=true"`
	Name  string
	Email string
}

// MySQL 只能通过 LastInsertId 拿到一个整数列
type StampedAccount struct {
	_         struct{} `table:"accounts" returning:"id, created_at"`
	ID        int64    `orm:"readonly=true"`
	Name      string
	CreatedAt string `orm:"readonly=true"`
}

func TestClient(t *testing.T) {
	dbErr := &mysql.MySQLError{Number: 1146, Message: "Table 'test.accounts' doesn't exist"}
	testCases := []struct {
		name    string
		mock    func(ctrl *gomock.Controller) orm.Executor
		call    func(ctx context.Context, c *orm.Client) error
		wantErr error
	}{
		{
			name: "query error",
			mock: func(ctrl *gomock.Controller) orm.Executor {
				exec := mocks.NewMockExecutor(ctrl)
				exec.EXPECT().Query(gomock.Any(), "SELECT id, name, email FROM accounts WHERE id = ?", int64(1)).
					Return(nil, dbErr)
				return exec
			},
			call: func(ctx context.Context, c *orm.Client) error {
				_, err := orm.FetchOne[Account](ctx, c, &Account{ID: 1})
				return err
			},
			wantErr: dbErr,
		},
		{
			name: "no rows",
			mock: func(ctrl *gomock.Controller) orm.Executor {
				rows := mocks.NewMockRows(ctrl)
				rows.EXPECT().Next().Return(false)
				rows.EXPECT().Err().Return(nil).AnyTimes()
				rows.EXPECT().Close().Return(nil)
				exec := mocks.NewMockExecutor(ctrl)
				exec.EXPECT().Query(gomock.Any(), "SELECT id, name, email FROM accounts WHERE id = ?", int64(1)).
					Return(rows, nil)
				return exec
			},
			call: func(ctx context.Context, c *orm.Client) error {
				_, err := orm.FetchOne[Account](ctx, c, &Account{ID: 1})
				return err
			},
			wantErr: orm.ErrNotFound,
		},
		{
			name: "rows error",
			mock: func(ctrl *gomock.Controller) orm.Executor {
				rows := mocks.NewMockRows(ctrl)
				rows.EXPECT().Columns().Return([]string{"id", "name", "email"}, nil).AnyTimes()
				rows.EXPECT().Next().Return(false)
				rows.EXPECT().Err().Return(sql.ErrConnDone).AnyTimes()
				rows.EXPECT().Close().Return(nil)
				exec := mocks.NewMockExecutor(ctrl)
				exec.EXPECT().Query(gomock.Any(), "SELECT id, name, email FROM accounts WHERE id = ?", int64(1)).
					Return(rows, nil)
				return exec
			},
			call: func(ctx context.Context, c *orm.Client) error {
				_, err := orm.FetchAll[Account](ctx, c, &Account{ID: 1})
				return err
			},
			wantErr: sql.ErrConnDone,
		},
		{
			name: "exec error",
			mock: func(ctrl *gomock.Controller) orm.Executor {
				exec := mocks.NewMockExecutor(ctrl)
				exec.EXPECT().Exec(gomock.Any(), "DELETE FROM accounts WHERE id = ?", int64(1)).
					Return(nil, dbErr)
				return exec
			},
			call: func(ctx context.Context, c *orm.Client) error {
				_, err := orm.Delete[Account](ctx, c, &Account{ID: 1})
				return err
			},
			wantErr: dbErr,
		},
		{
			name: "build error never reaches executor",
			mock: func(ctrl *gomock.Controller) orm.Executor {
				return mocks.NewMockExecutor(ctrl)
			},
			call: func(ctx context.Context, c *orm.Client) error {
				_, err := orm.Insert[StampedAccount](ctx, c, &StampedAccount{Name: "Tom"})
				return err
			},
			wantErr: orm.ErrReturningUnsupported,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			c, err := orm.NewClient(tc.mock(ctrl))
			require.NoError(t, err)
			err = tc.call(context.Background(), c)
			assert.ErrorIs(t, err, tc.wantErr)

			var mysqlErr *mysql.MySQLError
			if errors.As(tc.wantErr, &mysqlErr) {
				// 驱动的错误原样返回
				var got *mysql.MySQLError
				require.True(t, errors.As(err, &got))
				assert.Equal(t, uint16(1146), got.Number)
			}
		})
	}
}

func TestClient_LastInsertID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	exec := mocks.NewMockExecutor(ctrl)
	exec.EXPECT().Exec(gomock.Any(), "INSERT INTO accounts (name, email) VALUES (?, ?)", "Tom", "tom@example.com").
		Return(driverResult{id: 42, affected: 1}, nil)

	c, err := orm.NewClient(exec)
	require.NoError(t, err)
	a := &NewAccount{Name: "Tom", Email: "tom@example.com"}
	out, err := orm.Insert[NewAccount](context.Background(), c, a)
	require.NoError(t, err)
	assert.Equal(t, int64(42), a.ID)
	assert.Equal(t, int64(42), out.LastInsertID)
	assert.Equal(t, []any{int64(42)}, out.Returning)
}

type driverResult struct {
	id       int64
	affected int64
}

func (r driverResult) LastInsertId() (int64, error) {
	return r.id, nil
}

func (r driverResult) RowsAffected() (int64, error) {
	return r.affected, nil
}

const accountsDDL = `CREATE TABLE accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL
)`

func TestConnPool(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:test_conn_pool.db?cache=shared&mode=memory")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()
	db.SetMaxIdleConns(1)
	_, err = db.Exec(accountsDDL)
	require.NoError(t, err)

	cfg := orm.ConnPoolConfig(db)
	cfg.MaxCap = 2
	cfg.MaxIdle = 2
	p, err := pool.NewChannelPool(cfg)
	require.NoError(t, err)

	cp, err := orm.NewConnPool(p, orm.WithDialect(orm.DialectSQLite))
	require.NoError(t, err)

	ctx := context.Background()
	for _, name := range []string{"Tom", "Jerry", "Tim"} {
		_, err = orm.Insert[NewAccount](ctx, cp, &NewAccount{Name: name, Email: name + "@example.com"})
		require.NoError(t, err)
	}

	// 查询结束之后连接回到连接池, 可以一直用下去
	for i := 0; i < 5; i++ {
		got, err := orm.FetchOne[Account](ctx, cp, &Account{ID: 2})
		require.NoError(t, err)
		assert.Equal(t, "Jerry", got.Name)
	}
	assert.LessOrEqual(t, cp.Len(), 2)

	n, err := orm.Delete[Account](ctx, cp, &Account{ID: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	a := &Account{ID: 1}
	require.NoError(t, cp.FetchOne(ctx, a))
	assert.Equal(t, "Tom", a.Name)

	cp.Release()
	_, err = orm.FetchOne[Account](ctx, cp, &Account{ID: 1})
	assert.ErrorIs(t, err, pool.ErrClosed)
}
