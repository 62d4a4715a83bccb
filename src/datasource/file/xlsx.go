// xlsx.go
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"AirlinesAnalysis/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// serialPattern 纯数字单元格，Excel日期时刻常以序列数存储
var serialPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ReadXLSX 读取xlsx文件的指定工作表为DataFrame，全部列按字符串读入
func ReadXLSX(filePath, sheetName string) (dataframe.DataFrame, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("打开xlsx文件失败: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName)
}

// ReadXLSXBinary 从内存中的xlsx内容读取工作表，邮件附件走这里
func ReadXLSXBinary(data []byte, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析xlsx内容失败: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName)
}

func sheetToDataFrame(xlFile *xlsx.File, sheetName string) (dataframe.DataFrame, error) {
	// 2. 取目标工作表
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表")
	}
	sheet, ok := xlFile.Sheet[sheetName]
	if !ok || sheet == nil {
		names := make([]string, 0, len(xlFile.Sheets))
		for _, s := range xlFile.Sheets {
			names = append(names, s.Name)
		}
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 不存在，现有: %s", sheetName, strings.Join(names, ", "))
	}

	// 3. 转换为Gota DataFrame
	return convertSheetToDataFrame(sheet)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
// 第一行是标题行；短行补空串，超出标题宽度的单元格忽略
func convertSheetToDataFrame(sheet *xlsx.Sheet) (dataframe.DataFrame, error) {
	if len(sheet.Rows) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 为空", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}
	if len(headers) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 没有标题行", sheet.Name)
	}

	columns := make([][]string, len(headers))
	for i := range columns {
		columns[i] = make([]string, 0, len(sheet.Rows)-1)
	}
	for _, row := range sheet.Rows[1:] {
		for i := range headers {
			if i < len(row.Cells) {
				columns[i] = append(columns[i], row.Cells[i].Value)
			} else {
				columns[i] = append(columns[i], "")
			}
		}
	}

	seriesList := make([]series.Series, len(headers))
	for i, colName := range headers {
		seriesList[i] = series.New(columns[i], series.String, colName)
	}

	df := dataframe.New(seriesList...)
	if df.Err != nil {
		return df, fmt.Errorf("转换工作表 %s 失败: %w", sheet.Name, df.Err)
	}
	return df, nil
}

// ConvertSerialDates 把以序列数存储的日期时刻单元格改写为可读字符串
// 日期列写成2006-01-02，时刻列取小数部分写成15:04；文本单元格原样保留
func ConvertSerialDates(df dataframe.DataFrame, dateCols, timeCols []string) dataframe.DataFrame {
	for _, col := range dateCols {
		if utils.HasColumn(df, col) {
			df = df.Mutate(series.New(df.Col(col).Map(serialToDate), series.String, col))
		}
	}
	for _, col := range timeCols {
		if utils.HasColumn(df, col) {
			df = df.Mutate(series.New(df.Col(col).Map(serialToClock), series.String, col))
		}
	}
	return df
}

// excel序列数转日期字符串
func serialToDate(v series.Element) series.Element {
	if v.IsNA() || !serialPattern.MatchString(strings.TrimSpace(v.String())) {
		return v
	}
	t := utils.ExcelSerialToTime(v.Float())
	v.Set(t.Format("2006-01-02"))
	return v
}

// excel序列数转时刻字符串，只保留时分
func serialToClock(v series.Element) series.Element {
	if v.IsNA() || !serialPattern.MatchString(strings.TrimSpace(v.String())) {
		return v
	}
	t := utils.ExcelSerialToTime(v.Float())
	v.Set(t.Format("15:04"))
	return v
}

// FindLatest 在目录下找最近修改的数据文件（csv或xlsx），keyword为空时不过滤文件名
func FindLatest(dir, keyword string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("读取目录失败: %w", err)
	}

	var latestPath string
	var latestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		if keyword != "" && !strings.Contains(name, keyword) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latestPath == "" || info.ModTime().After(latestMod) {
			latestPath = filepath.Join(dir, name)
			latestMod = info.ModTime()
		}
	}

	if latestPath == "" {
		return "", time.Time{}, fmt.Errorf("目录 %s 下没有可用的数据文件", dir)
	}
	return latestPath, latestMod, nil
}
