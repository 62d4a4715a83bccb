// postgres.go
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore 连接池方式写入Postgres，团队共享库用这个
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

var _ FlightStore = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("连接Postgres失败: %w", err)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// Replace 在一个事务里重建表并用COPY批量写入
func (s *PostgresStore) Replace(ctx context.Context, df dataframe.DataFrame) error {
	rows, err := flightRows(df)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table)); err != nil {
		return fmt.Errorf("删除旧表失败: %w", err)
	}
	if _, err := tx.Exec(ctx, postgresCreateSQL(s.table)); err != nil {
		return fmt.Errorf("建表失败: %w", err)
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{s.table},
		flightSQLColumns(),
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("批量写入失败: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func postgresCreateSQL(table string) string {
	defs := make([]string, len(flightColumnMapping))
	for i, m := range flightColumnMapping {
		typ := "TEXT"
		if m.isFloat {
			typ = "DOUBLE PRECISION"
		}
		defs[i] = m.sql + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
}
