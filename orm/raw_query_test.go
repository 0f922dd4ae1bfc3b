package orm

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawQuerier_Build(t *testing.T) {
	cases := []struct {
		name    string
		dialect Dialect
		query   string
		args    []any

		wantSQL string
		wantErr error
	}{
		{
			name:    "postgres",
			dialect: DialectPostgreSQL,
			query:   "SELECT id, name FROM users WHERE id = ? OR name = ?",
			args:    []any{1, "Tom"},
			wantSQL: "SELECT id, name FROM users WHERE id = $1 OR name = $2",
		},
		{
			name:    "mysql",
			dialect: DialectMySQL,
			query:   "SELECT id, name FROM users WHERE id = ? OR name = ?",
			args:    []any{1, "Tom"},
			wantSQL: "SELECT id, name FROM users WHERE id = ? OR name = ?",
		},
		{
			name:    "quoted marker",
			dialect: DialectPostgreSQL,
			query:   "SELECT id FROM users WHERE name = 'a?b' AND id = ?",
			args:    []any{1},
			wantSQL: "SELECT id FROM users WHERE name = 'a?b' AND id = $1",
		},
		{
			name:    "escaped marker",
			dialect: DialectPostgreSQL,
			query:   "SELECT id FROM docs WHERE data ?? 'key'",
			wantSQL: "SELECT id FROM docs WHERE data ? 'key'",
		},
		{
			name:    "too many args",
			dialect: DialectPostgreSQL,
			query:   "SELECT id FROM users WHERE id = ?",
			args:    []any{1, 2},
			wantErr: ErrParamCountMismatch,
		},
		{
			name:    "too few args",
			dialect: DialectMySQL,
			query:   "SELECT id FROM users WHERE id = ? AND name = ?",
			args:    []any{1},
			wantErr: ErrParamCountMismatch,
		},
		{
			name:    "numbered placeholder",
			dialect: DialectPostgreSQL,
			query:   "SELECT id FROM users WHERE id = $1",
			args:    []any{1},
			wantErr: ErrMalformedClause,
		},
		{
			name:    "unterminated quote",
			dialect: DialectPostgreSQL,
			query:   "SELECT id FROM users WHERE name = 'Tom",
			wantErr: ErrMalformedClause,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			client, err := NewClient(nil, WithDialect(c.dialect))
			require.NoError(t, err)
			q, err := RawQuery[GetUser](client, c.query, c.args...).Build()
			assert.True(t, errors.Is(err, c.wantErr), "want %v, got %v", c.wantErr, err)
			if err != nil {
				return
			}
			assert.Equal(t, c.wantSQL, q.SQL)
			assert.Len(t, q.Params, len(c.args))
			for i, p := range q.Params {
				assert.Equal(t, i+1, p.Position)
			}
		})
	}
}

func TestRawQuerier_Get(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	db, err := OpenDB(mockDB, WithDialect(DialectPostgreSQL))
	require.NoError(t, err)

	query := "SELECT * FROM users WHERE id = $1"

	// 对应 query error
	queryErr := errors.New("query error")
	mock.ExpectQuery(query).WithArgs(1).WillReturnError(queryErr)

	// 对应 no rows
	mock.ExpectQuery(query).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}))

	// 多出来的列会被忽略, 没有出现的字段保持零值
	mock.ExpectQuery(query).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).AddRow(3, "Tom", "2023-01-01"))

	// 对应 scan error
	mock.ExpectQuery(query).WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow("abc", "Tom", "tom@example.com"))

	cases := []struct {
		name    string
		id      int
		wantErr error
		wantRes *GetUser
	}{
		{
			name:    "query error",
			id:      1,
			wantErr: queryErr,
		},
		{
			name:    "no rows",
			id:      2,
			wantErr: sql.ErrNoRows,
		},
		{
			name:    "extra column",
			id:      3,
			wantRes: &GetUser{ID: 3, Name: "Tom"},
		},
		{
			name:    "scan error",
			id:      4,
			wantErr: ErrTypeMismatch,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res, err := RawQuery[GetUser](db, "SELECT * FROM users WHERE id = ?", c.id).Get(context.Background())
			assert.True(t, errors.Is(err, c.wantErr), "want %v, got %v", c.wantErr, err)
			if err != nil {
				return
			}
			assert.Equal(t, c.wantRes, res)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRawQuerier_GetMulti(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	db, err := OpenDB(mockDB, WithDialect(DialectSQLite))
	require.NoError(t, err)

	query := "SELECT id, name FROM users WHERE name LIKE ? ORDER BY id"
	mock.ExpectQuery(query).WithArgs("T%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Tom").AddRow(2, "Tim"))
	mock.ExpectQuery(query).WithArgs("J%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	res, err := RawQuery[GetUser](db, query, "T%").GetMulti(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []*GetUser{{ID: 1, Name: "Tom"}, {ID: 2, Name: "Tim"}}, res)

	// 多行查询没有数据不是错误
	res, err = RawQuery[GetUser](db, query, "J%").GetMulti(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRawQuerier_Exec(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	db, err := OpenDB(mockDB, WithDialect(DialectPostgreSQL))
	require.NoError(t, err)

	mock.ExpectExec("UPDATE users SET name = $1 WHERE id > $2").
		WithArgs("Tom", 10).
		WillReturnResult(sqlmock.NewResult(0, 3))
	execErr := errors.New("exec error")
	mock.ExpectExec("DELETE FROM users WHERE id = $1").
		WithArgs(1).
		WillReturnError(execErr)

	res := RawQuery[GetUser](db, "UPDATE users SET name = ? WHERE id > ?", "Tom", 10).Exec(context.Background())
	require.NoError(t, res.Err())
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	res = RawQuery[GetUser](db, "DELETE FROM users WHERE id = ?", 1).Exec(context.Background())
	assert.ErrorIs(t, res.Err(), execErr)
	_, err = res.RowsAffected()
	assert.ErrorIs(t, err, execErr)

	// 参数个数不对的时候不会发送
	res = RawQuery[GetUser](db, "DELETE FROM users WHERE id = ?").Exec(context.Background())
	var mismatch *ParamCountMismatchError
	require.ErrorAs(t, res.Err(), &mismatch)
	assert.Equal(t, 1, mismatch.Markers)
	assert.Equal(t, 0, mismatch.Params)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRawQuerier_SQLite(t *testing.T) {
	db := memoryDB(t)
	ctx := context.Background()

	res := RawQuery[GetUser](db, "INSERT INTO users (name, email) VALUES (?, ?)", "Tom", "tom@example.com").Exec(ctx)
	require.NoError(t, res.Err())
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	u, err := RawQuery[GetUser](db, "SELECT id, name, email, 'x' AS note FROM users WHERE email = ?", "tom@example.com").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, &GetUser{ID: 1, Name: "Tom", Email: "tom@example.com"}, u)
}
