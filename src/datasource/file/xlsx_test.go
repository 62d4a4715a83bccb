package file

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

// writeWorkbook 生成测试用的xlsx文件
func writeWorkbook(t *testing.T, path, sheetName string, rows [][]string) {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().Value = v
		}
	}
	require.NoError(t, f.Save(path))
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]string{
		{"FlightNumber", "Airline", "DelayMinutes"},
		{"CA100", "AirA", "30"},
		{"CA101", "AirB"}, // 短行，缺的单元格补空串
	})

	df, err := ReadXLSX(path, "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, []string{"FlightNumber", "Airline", "DelayMinutes"}, df.Names())
	require.Equal(t, 2, df.Nrow())
	assert.Equal(t, "AirB", df.Col("Airline").Elem(1).String())
	assert.Equal(t, "", df.Col("DelayMinutes").Elem(1).String())
}

func TestReadXLSXMissingSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights.xlsx")
	writeWorkbook(t, path, "Data", [][]string{{"FlightNumber"}, {"CA100"}})

	_, err := ReadXLSX(path, "Sheet1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不存在")
	assert.Contains(t, err.Error(), "Data")
}

func TestReadXLSXBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flights.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]string{
		{"FlightNumber", "Airline"},
		{"CA100", "AirA"},
	})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	df, err := ReadXLSXBinary(data, "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, 1, df.Nrow())
	assert.Equal(t, "CA100", df.Col("FlightNumber").Elem(0).String())
}

func TestConvertSerialDates(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"45292", "2024-06-01"}, series.String, "DepartureDate"),
		series.New([]string{"0.3541666667", "08:30"}, series.String, "DepartureTime"),
		series.New([]string{"CA100", "CA101"}, series.String, "FlightNumber"),
	)

	out := ConvertSerialDates(df, []string{"DepartureDate"}, []string{"DepartureTime"})
	require.NoError(t, out.Err)

	// 序列数被改写，文本值原样保留
	assert.Equal(t, "2024-01-01", out.Col("DepartureDate").Elem(0).String())
	assert.Equal(t, "2024-06-01", out.Col("DepartureDate").Elem(1).String())
	assert.Equal(t, "08:30", out.Col("DepartureTime").Elem(0).String())
	assert.Equal(t, "08:30", out.Col("DepartureTime").Elem(1).String())
	assert.Equal(t, "CA100", out.Col("FlightNumber").Elem(0).String())
}

func TestWriteCSV(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"CA100"}, series.String, "FlightNumber"),
		series.New([]float64{30}, series.Float, "DelayMinutes"),
	)

	path := filepath.Join(t.TempDir(), "out", "transformed_dataset.csv")
	require.NoError(t, WriteCSV(df, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "FlightNumber,DelayMinutes", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "CA100,30"))
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "flights_old.csv")
	newer := filepath.Join(dir, "flights_new.xlsx")
	ignored := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(older, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("b"), 0644))
	require.NoError(t, os.WriteFile(ignored, []byte("c"), 0644))

	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, base, base))
	require.NoError(t, os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute)))
	require.NoError(t, os.Chtimes(ignored, base.Add(2*time.Minute), base.Add(2*time.Minute)))

	path, mod, err := FindLatest(dir, "flights")
	require.NoError(t, err)
	assert.Equal(t, newer, path)
	assert.WithinDuration(t, base.Add(time.Minute), mod, 2*time.Second)

	_, _, err = FindLatest(dir, "不存在的关键字")
	assert.Error(t, err)
}

func TestFileMonitorWatch(t *testing.T) {
	dir := t.TempDir()
	monitor, err := NewFileMonitor(dir)
	require.NoError(t, err)
	defer monitor.Close()

	got := make(chan string, 1)
	go func() {
		_ = monitor.Watch(func(path string) {
			select {
			case got <- path:
			default:
			}
		})
	}()

	// 稍等watcher就绪再写文件
	time.Sleep(100 * time.Millisecond)
	target := filepath.Join(dir, "flights.csv")
	require.NoError(t, os.WriteFile(target, []byte("FlightNumber\nCA100\n"), 0644))

	select {
	case path := <-got:
		assert.Equal(t, target, path)
	case <-time.After(3 * time.Second):
		t.Fatal("未收到文件写入事件")
	}
}
