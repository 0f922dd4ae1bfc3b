//go:build integration

package integration

import (
	"context"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/startdusk/sqlcrud/orm"
)

// Suite 每个数据库一份, 建表语句按照方言区分
type Suite struct {
	suite.Suite

	driver string
	dsn    string
	// schema 建表语句, 每一条单独执行
	schema []string

	db *orm.DB
}

func (s *Suite) SetupSuite() {
	db, err := orm.Open(s.driver, s.dsn)
	require.NoError(s.T(), err)
	s.db = db
	for _, ddl := range s.schema {
		_, err = db.Exec(context.Background(), ddl)
		require.NoError(s.T(), err)
	}
}

func (s *Suite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Suite) truncate(tables ...string) {
	for _, table := range tables {
		_, err := s.db.Exec(context.Background(), "DELETE FROM "+table)
		require.NoError(s.T(), err)
	}
}

var mysqlSchema = []string{
	"DROP TABLE IF EXISTS users",
	"DROP TABLE IF EXISTS sessions",
	"DROP TABLE IF EXISTS orders",
	`CREATE TABLE users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(64) NOT NULL,
		email VARCHAR(128) NOT NULL
	)`,
	`CREATE TABLE sessions (
		id CHAR(36) PRIMARY KEY,
		user_id BIGINT NOT NULL,
		token VARCHAR(64) NOT NULL
	)`,
	`CREATE TABLE orders (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL
	)`,
}

var postgresSchema = []string{
	"DROP TABLE IF EXISTS users",
	"DROP TABLE IF EXISTS sessions",
	"DROP TABLE IF EXISTS orders",
	`CREATE TABLE users (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL
	)`,
	`CREATE TABLE sessions (
		id UUID PRIMARY KEY,
		user_id BIGINT NOT NULL,
		token TEXT NOT NULL
	)`,
	`CREATE TABLE orders (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL
	)`,
}
