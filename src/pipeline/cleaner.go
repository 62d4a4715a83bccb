package pipeline

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// CleanReport 清洗阶段的处理摘要
type CleanReport struct {
	RowsIn            int
	RowsOut           int
	DroppedRows       int
	MissingByColumn   map[string]int     // 各必需列导致删行的缺失计数
	BackfilledArrival int                // 用起飞日期回填到达日期的行数
	ImputedDelays     int                // 用同航司中位数填充的延误值个数
	DelayMedians      map[string]float64 // 各航司延误中位数，仅含有观测值的航司
}

// CleanMissing 按列级策略处理缺失值：
// 到达日期缺失时回填当日起飞日期；必需列缺失时删除整行；
// 延误分钟缺失时填充同航司的中位数，该航司没有观测值时填0
func CleanMissing(df dataframe.DataFrame) (dataframe.DataFrame, CleanReport, error) {
	report := CleanReport{
		RowsIn:          df.Nrow(),
		MissingByColumn: make(map[string]int),
		DelayMedians:    make(map[string]float64),
	}
	if df.Err != nil {
		return df, report, fmt.Errorf("输入表无效: %w", df.Err)
	}

	// 1. 到达日期缺失的行用起飞日期回填（当日往返的短途航班居多）
	depDates := df.Col(ColDepartureDate)
	arrDates := df.Col(ColArrivalDate)
	arrVals := make([]string, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		el := arrDates.Elem(i)
		if isMissing(el) {
			if dep := depDates.Elem(i); !isMissing(dep) {
				arrVals[i] = dep.String()
				report.BackfilledArrival++
			}
			continue
		}
		arrVals[i] = el.String()
	}
	df = df.Mutate(series.New(arrVals, series.String, ColArrivalDate))

	// 2. 必需列缺失的行无法参与后续处理，删除整行
	reqCols := RequiredColumns()
	reqSeries := make([]series.Series, len(reqCols))
	for j, col := range reqCols {
		reqSeries[j] = df.Col(col)
	}
	keep := make([]int, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		ok := true
		for j := range reqCols {
			if isMissing(reqSeries[j].Elem(i)) {
				report.MissingByColumn[reqCols[j]]++
				ok = false
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	if len(keep) < df.Nrow() {
		df = df.Subset(keep)
		if df.Err != nil {
			return df, report, fmt.Errorf("删除缺失行失败: %w", df.Err)
		}
	}

	// 3. 延误分钟缺失时填充同航司中位数
	airlines := df.Col(ColAirline)
	delays := df.Col(ColDelayMinutes)

	observed := make(map[string][]float64)
	for i := 0; i < df.Nrow(); i++ {
		if el := delays.Elem(i); !el.IsNA() {
			name := airlines.Elem(i).String()
			observed[name] = append(observed[name], el.Float())
		}
	}
	for airline, vals := range observed {
		report.DelayMedians[airline] = series.New(vals, series.Float, ColDelayMinutes).Median()
	}

	filled := make([]float64, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		el := delays.Elem(i)
		if el.IsNA() {
			// 航司没有任何观测值时map取零值，即填0
			filled[i] = report.DelayMedians[airlines.Elem(i).String()]
			report.ImputedDelays++
			continue
		}
		filled[i] = el.Float()
	}
	df = df.Mutate(series.New(filled, series.Float, ColDelayMinutes))

	report.RowsOut = df.Nrow()
	report.DroppedRows = report.RowsIn - report.RowsOut
	return df, report, nil
}
