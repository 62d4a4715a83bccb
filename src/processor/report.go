// report.go
package processor

import (
	"fmt"
	"math"

	"AirlinesAnalysis/src/pipeline"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// 工作簿里的各工作表
const (
	SheetFlights     = "Flights"
	SheetByAirline   = "AvgDelayByAirline"
	SheetByDeparture = "AvgDelayByDeparture"
	SheetRunSummary  = "Summary"
)

// WriteReport 把清洗结果与统计汇总写成一个xlsx工作簿
func WriteReport(path string, res *pipeline.Result, sum *Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	// 默认表改名为Flights放清洗后的整表
	if err := f.SetSheetName("Sheet1", SheetFlights); err != nil {
		return fmt.Errorf("重命名工作表失败: %w", err)
	}
	if err := writeFrame(f, SheetFlights, res.Table); err != nil {
		return err
	}

	if err := addFrameSheet(f, SheetByAirline, sum.AvgDelayPerAirline); err != nil {
		return err
	}
	if err := addFrameSheet(f, SheetByDeparture, sum.AvgDelayByDeparture); err != nil {
		return err
	}
	if err := writeSummarySheet(f, res, sum); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("保存工作簿失败: %w", err)
	}
	return nil
}

func addFrameSheet(f *excelize.File, sheet string, df dataframe.DataFrame) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("新建工作表 %s 失败: %w", sheet, err)
	}
	return writeFrame(f, sheet, df)
}

// writeFrame 表头在首行，数值列按数值写入，缺失值留空
func writeFrame(f *excelize.File, sheet string, df dataframe.DataFrame) error {
	if df.Err != nil {
		return fmt.Errorf("写入工作表 %s 的表无效: %w", sheet, df.Err)
	}

	names := df.Names()
	for i, name := range names {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("定位单元格失败: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("写入表头失败: %w", err)
		}
	}

	for colIdx, name := range names {
		col := df.Col(name)
		isFloat := col.Type() == series.Float
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			el := col.Elem(rowIdx)
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("定位单元格失败: %w", err)
			}

			var val interface{}
			switch {
			case el.IsNA():
				continue
			case isFloat:
				fv := el.Float()
				if math.IsNaN(fv) {
					continue
				}
				val = fv
			default:
				val = el.String()
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("写入单元格失败: %w", err)
			}
		}
	}
	return nil
}

// writeSummarySheet 两列的指标页：指标名、值
func writeSummarySheet(f *excelize.File, res *pipeline.Result, sum *Summary) error {
	if _, err := f.NewSheet(SheetRunSummary); err != nil {
		return fmt.Errorf("新建工作表 %s 失败: %w", SheetRunSummary, err)
	}

	rows := []struct {
		label string
		value interface{}
	}{
		{"输入行数", res.Report.Clean.RowsIn},
		{"最终行数", sum.Rows},
		{"缺失删行", res.Report.Clean.DroppedRows},
		{"回填到达日期", res.Report.Clean.BackfilledArrival},
		{"填充延误值", res.Report.Clean.ImputedDelays},
		{"重复删行", res.Report.Dedup.DroppedRows},
		{"可疑重复行", res.Report.Dedup.SuspectRows},
		{"无法解析删行", res.Report.Normalize.DroppedUnparsable},
		{"起降时刻异常行", res.Report.Normalize.InconsistentRows},
		{"延误最严重航司", sum.MostDelayedAirline},
		{"最严重航司平均延误(分钟)", sum.MostDelayedAvg},
		{"延误最严重起飞时刻", sum.WorstDepartureTime},
		{"该时刻平均延误(分钟)", sum.WorstDepartureAvg},
		{"起飞时刻与延误相关系数", sum.Correlation},
	}

	for i, row := range rows {
		labelCell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("定位单元格失败: %w", err)
		}
		valueCell, err := excelize.CoordinatesToCellName(2, i+1)
		if err != nil {
			return fmt.Errorf("定位单元格失败: %w", err)
		}
		if err := f.SetCellValue(SheetRunSummary, labelCell, row.label); err != nil {
			return fmt.Errorf("写入指标失败: %w", err)
		}
		value := row.value
		if fv, ok := value.(float64); ok && math.IsNaN(fv) {
			value = "NaN"
		}
		if err := f.SetCellValue(SheetRunSummary, valueCell, value); err != nil {
			return fmt.Errorf("写入指标失败: %w", err)
		}
	}
	return nil
}
