// store.go
package storage

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"AirlinesAnalysis/src/config"
	"AirlinesAnalysis/src/pipeline"
	"AirlinesAnalysis/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// FlightStore 清洗结果的关系型落库，Replace整表覆盖写入
type FlightStore interface {
	Replace(ctx context.Context, df dataframe.DataFrame) error
	Close() error
}

// OpenStore 按配置选择存储后端
func OpenStore(ctx context.Context, cfg *config.Config) (FlightStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return NewSQLiteStore(cfg.Store.SQLitePath, cfg.Store.Table)
	case "postgres":
		return NewPostgresStore(ctx, cfg.Store.PostgresDSN, cfg.Store.Table)
	}
	return nil, fmt.Errorf("未知的存储驱动: %q", cfg.Store.Driver)
}

// 表内列与库内列的对应关系，顺序即建表顺序
var flightColumnMapping = []struct {
	df      string
	sql     string
	isFloat bool
}{
	{pipeline.ColFlightNumber, "flight_number", false},
	{pipeline.ColAirline, "airline", false},
	{pipeline.ColDepartureDate, "departure_date", false},
	{pipeline.ColArrivalDate, "arrival_date", false},
	{pipeline.ColDepartureTime, "departure_time", false},
	{pipeline.ColArrivalTime, "arrival_time", false},
	{pipeline.ColDelayMinutes, "delay_minutes", true},
	{pipeline.ColFlightDuration, "flight_duration", false},
	{pipeline.ColFlightDurationMinutes, "flight_duration_minutes", true},
}

// flightSQLColumns 库内列名，按建表顺序
func flightSQLColumns() []string {
	cols := make([]string, len(flightColumnMapping))
	for i, m := range flightColumnMapping {
		cols[i] = m.sql
	}
	return cols
}

// flightRows 把表转成按库内列顺序排列的行值，缺失值写NULL
func flightRows(df dataframe.DataFrame) ([][]interface{}, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("落库的表无效: %w", df.Err)
	}
	wanted := make([]string, len(flightColumnMapping))
	for i, m := range flightColumnMapping {
		wanted[i] = m.df
	}
	if missing := utils.MissingColumns(df, wanted); len(missing) > 0 {
		return nil, fmt.Errorf("落库的表缺少列: %s", strings.Join(missing, ", "))
	}

	cols := make([]series.Series, len(flightColumnMapping))
	for j, m := range flightColumnMapping {
		cols[j] = df.Col(m.df)
	}

	rows := make([][]interface{}, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		row := make([]interface{}, len(flightColumnMapping))
		for j, m := range flightColumnMapping {
			el := cols[j].Elem(i)
			switch {
			case el.IsNA():
				row[j] = nil
			case m.isFloat:
				if f := el.Float(); math.IsNaN(f) {
					row[j] = nil
				} else {
					row[j] = f
				}
			default:
				row[j] = el.String()
			}
		}
		rows[i] = row
	}
	return rows, nil
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateTableName 表名只允许字母数字下划线，拼进SQL前必须先过这里
func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("非法的表名: %q", name)
	}
	return nil
}
