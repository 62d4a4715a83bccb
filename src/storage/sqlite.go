// sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	_ "modernc.org/sqlite"
)

// SQLiteStore 单文件库，适合本地一次性分析
type SQLiteStore struct {
	db    *sql.DB
	table string
}

var _ FlightStore = (*SQLiteStore)(nil)

func NewSQLiteStore(path, table string) (*SQLiteStore, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开sqlite库失败: %w", err)
	}
	return &SQLiteStore{db: db, table: table}, nil
}

// Replace 在一个事务里重建表并写入全部行，与导出CSV的内容一致
func (s *SQLiteStore) Replace(ctx context.Context, df dataframe.DataFrame) error {
	rows, err := flightRows(df)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table)); err != nil {
		return fmt.Errorf("删除旧表失败: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqliteCreateSQL(s.table)); err != nil {
		return fmt.Errorf("建表失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(s.table, "?"))
	if err != nil {
		return fmt.Errorf("准备插入语句失败: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("写入第%d行失败: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteCreateSQL(table string) string {
	defs := make([]string, len(flightColumnMapping))
	for i, m := range flightColumnMapping {
		typ := "TEXT"
		if m.isFloat {
			typ = "REAL"
		}
		defs[i] = m.sql + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
}

// insertSQL 生成参数化插入语句，placeholder为"?"或"$"
func insertSQL(table, placeholder string) string {
	cols := flightSQLColumns()
	marks := make([]string, len(cols))
	for i := range marks {
		if placeholder == "$" {
			marks[i] = fmt.Sprintf("$%d", i+1)
		} else {
			marks[i] = placeholder
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", "))
}
