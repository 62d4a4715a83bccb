package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

const csvHeader = "FlightNumber,Airline,DepartureDate,ArrivalDate,DepartureTime,ArrivalTime,DelayMinutes\n"

func writeCSVFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flights.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCSVSortsByFlightNumber(t *testing.T) {
	path := writeCSVFixture(t, csvHeader+
		"CA300,AirB,2024-06-03,2024-06-03,09:00,11:00,15\n"+
		"CA100,AirA,2024-06-01,2024-06-01,08:30,10:35,30\n"+
		"CA200,AirB,2024-06-02,2024-06-02,09:15,11:45,20\n")

	df, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, df.Nrow())
	assert.Equal(t, []string{"CA100", "CA200", "CA300"}, df.Col(ColFlightNumber).Records())
	// 延误分钟列套用了数值类型
	assert.Equal(t, 30.0, df.Col(ColDelayMinutes).Elem(0).Float())
}

func TestLoadCSVKeepsOrderWithinSameFlight(t *testing.T) {
	path := writeCSVFixture(t, csvHeader+
		"CA100,AirA,2024-06-02,2024-06-02,08:30,10:35,30\n"+
		"CA100,AirA,2024-06-01,2024-06-01,07:30,09:35,10\n")

	df, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	// 排序是稳定的，同航班号保持文件内顺序
	assert.Equal(t, []string{"2024-06-02", "2024-06-01"}, df.Col(ColDepartureDate).Records())
}

func TestLoadCSVMissingColumn(t *testing.T) {
	path := writeCSVFixture(t, "FlightNumber,Airline,DepartureDate,ArrivalDate,DepartureTime,DelayMinutes\n"+
		"CA100,AirA,2024-06-01,2024-06-01,08:30,30\n")

	_, err := Load(path, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "缺少必需列")
	assert.Contains(t, err.Error(), ColArrivalTime)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "打开数据文件失败")
}

func TestLoadCSVCustomNaNValues(t *testing.T) {
	path := writeCSVFixture(t, csvHeader+
		"CA100,AirA,2024-06-01,N/A,08:30,10:35,N/A\n")

	df, err := Load(path, LoadOptions{NaNValues: []string{"N/A"}})
	require.NoError(t, err)
	assert.True(t, df.Col(ColArrivalDate).Elem(0).IsNA())
	assert.True(t, df.Col(ColDelayMinutes).Elem(0).IsNA())
}

func TestLoadCSVFromReader(t *testing.T) {
	r := strings.NewReader(csvHeader +
		"CA200,AirB,2024-06-02,2024-06-02,09:15,11:45,20\n" +
		"CA100,AirA,2024-06-01,2024-06-01,08:30,10:35,30\n")

	df, err := LoadCSV(r, LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{"CA100", "CA200"}, df.Col(ColFlightNumber).Records())
}

func TestLoadCSVSemicolonDelimiter(t *testing.T) {
	content := "FlightNumber;Airline;DepartureDate;ArrivalDate;DepartureTime;ArrivalTime;DelayMinutes\n" +
		"CA100;AirA;2024-06-01;2024-06-01;08:30;10:35;30\n"
	path := writeCSVFixture(t, content)

	df, err := Load(path, LoadOptions{Delimiter: ';'})
	require.NoError(t, err)
	require.Equal(t, 1, df.Nrow())
	assert.Equal(t, "AirA", df.Col(ColAirline).Elem(0).String())
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rec := range [][]string{
		{"FlightNumber", "Airline", "DepartureDate", "ArrivalDate", "DepartureTime", "ArrivalTime", "DelayMinutes"},
		{"CA200", "AirB", "2024-06-02", "2024-06-02", "09:15", "11:45", "20"},
		// 日期时刻以excel序列数存储也能读
		{"CA100", "AirA", "45444", "45444", "0.3541666667", "0.4409722222", "30"},
	} {
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().Value = v
		}
	}
	require.NoError(t, f.Save(path))

	df, err := Load(path, LoadOptions{SheetName: "Sheet1"})
	require.NoError(t, err)
	require.Equal(t, 2, df.Nrow())
	assert.Equal(t, []string{"CA100", "CA200"}, df.Col(ColFlightNumber).Records())
	assert.Equal(t, "2024-06-01", df.Col(ColDepartureDate).Elem(0).String())
	assert.Equal(t, "08:30", df.Col(ColDepartureTime).Elem(0).String())
	assert.Equal(t, "10:35", df.Col(ColArrivalTime).Elem(0).String())
}

func TestLoadXLSXNamedSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights.xlsx")
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("延误数据")
	require.NoError(t, err)
	for _, rec := range [][]string{
		{"FlightNumber", "Airline", "DepartureDate", "ArrivalDate", "DepartureTime", "ArrivalTime", "DelayMinutes"},
		{"CA100", "AirA", "2024-06-01", "2024-06-01", "08:30", "10:35", "30"},
	} {
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().Value = v
		}
	}
	require.NoError(t, f.Save(path))

	df, err := LoadXLSX(path, "延误数据", LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, df.Nrow())
	assert.Equal(t, "CA100", df.Col(ColFlightNumber).Elem(0).String())
}

func TestLoadXLSXMissingSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights.xlsx")
	f := xlsx.NewFile()
	_, err := f.AddSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.Save(path))

	_, err = Load(path, LoadOptions{SheetName: "Sheet1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "读取xlsx失败")
}
