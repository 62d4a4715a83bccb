package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"AirlinesAnalysis/src/datasource/file"
	"AirlinesAnalysis/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// LoadOptions 读取输入文件的选项
type LoadOptions struct {
	Delimiter rune     // CSV分隔符，0表示逗号
	SheetName string   // xlsx的工作表名，空表示Sheet1
	NaNValues []string // 额外视为缺失的标记
}

// Load 读取航班数据文件并整理为管道可用的表
// 支持csv与xlsx，按扩展名区分；文件缺失或无法解析时返回错误
func Load(path string, opts LoadOptions) (dataframe.DataFrame, error) {
	df, err := readInput(path, opts)
	if err != nil {
		return df, err
	}
	return Prepare(df, opts.NaNValues)
}

// LoadCSV 从任意reader读取CSV并整理
func LoadCSV(r io.Reader, opts LoadOptions) (dataframe.DataFrame, error) {
	df, err := readCSV(r, opts.Delimiter)
	if err != nil {
		return df, err
	}
	return Prepare(df, opts.NaNValues)
}

// LoadXLSX 读取xlsx指定工作表并整理
func LoadXLSX(path, sheet string, opts LoadOptions) (dataframe.DataFrame, error) {
	df, err := readXLSX(path, sheet)
	if err != nil {
		return df, err
	}
	return Prepare(df, opts.NaNValues)
}

func readInput(path string, opts LoadOptions) (dataframe.DataFrame, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSX(path, opts.SheetName)
	}

	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("打开数据文件失败: %w", err)
	}
	defer f.Close()

	return readCSV(f, opts.Delimiter)
}

func readXLSX(path, sheet string) (dataframe.DataFrame, error) {
	if sheet == "" {
		sheet = "Sheet1"
	}
	df, err := file.ReadXLSX(path, sheet)
	if err != nil {
		return df, fmt.Errorf("读取xlsx失败: %w", err)
	}
	// excel里日期时刻列常以序列数存储，先转回可读字符串
	df = file.ConvertSerialDates(df,
		[]string{ColDepartureDate, ColArrivalDate},
		[]string{ColDepartureTime, ColArrivalTime},
	)
	return df, nil
}

func readCSV(r io.Reader, delim rune) (dataframe.DataFrame, error) {
	if delim == 0 {
		delim = ','
	}

	// 先全部按字符串读入，列类型在Prepare中统一套用
	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter(delim),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return df, fmt.Errorf("解析CSV失败: %w", df.Err)
	}
	return df, nil
}

// Prepare 校验列集合、套用列类型并按航班号排序
// 这是Loader阶段的整理部分，也可直接作用于内存中的表
func Prepare(df dataframe.DataFrame, naValues []string) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return df, fmt.Errorf("输入表无效: %w", df.Err)
	}
	if missing := utils.MissingColumns(df, InputColumns()); len(missing) > 0 {
		return df, fmt.Errorf("输入缺少必需列: %s", strings.Join(missing, ", "))
	}

	opts := []dataframe.LoadOption{
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(ColumnTypes()),
	}
	if len(naValues) > 0 {
		opts = append(opts, dataframe.NaNValues(append(naValues, "NA", "NaN", "<nil>")))
	}

	typed := dataframe.LoadRecords(df.Records(), opts...)
	if typed.Err != nil {
		return typed, fmt.Errorf("整理输入表失败: %w", typed.Err)
	}

	// 按航班号排序，使同一航班的记录相邻
	sorted := typed.Arrange(dataframe.Sort(ColFlightNumber))
	if sorted.Err != nil {
		return sorted, fmt.Errorf("按航班号排序失败: %w", sorted.Err)
	}
	return sorted, nil
}
