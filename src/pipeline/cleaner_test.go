package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanBackfillsArrivalDate(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		inputHeader(),
		{"CA100", "AirA", "2024-06-01", "", "08:30", "10:35", "30"},
		{"CA200", "AirA", "2024-06-02", "2024-06-03", "23:00", "01:30", "10"},
	})

	out, report, err := CleanMissing(df)
	require.NoError(t, err)
	assert.Equal(t, 2, report.RowsIn)
	assert.Equal(t, 2, report.RowsOut)
	assert.Equal(t, 1, report.BackfilledArrival)
	assert.Equal(t, "2024-06-01", out.Col(ColArrivalDate).Elem(0).String())
	// 已有到达日期的行不动
	assert.Equal(t, "2024-06-03", out.Col(ColArrivalDate).Elem(1).String())
}

func TestCleanDropsRowsMissingRequired(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		inputHeader(),
		{"CA100", "AirA", "2024-06-01", "2024-06-01", "08:30", "10:35", "30"},
		{"", "AirA", "2024-06-02", "2024-06-02", "09:00", "11:00", "10"},
		{"CA300", "AirB", "2024-06-03", "2024-06-03", "", "12:00", "20"},
	})

	out, report, err := CleanMissing(df)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Nrow())
	assert.Equal(t, 2, report.DroppedRows)
	assert.Equal(t, 1, report.MissingByColumn[ColFlightNumber])
	assert.Equal(t, 1, report.MissingByColumn[ColDepartureTime])
	assert.Equal(t, "CA100", out.Col(ColFlightNumber).Elem(0).String())
}

func TestCleanImputesDelayWithAirlineMedian(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		inputHeader(),
		{"CA100", "AirA", "2024-06-01", "2024-06-01", "08:30", "10:35", "10"},
		{"CA101", "AirA", "2024-06-01", "2024-06-01", "09:30", "11:35", "20"},
		{"CA102", "AirA", "2024-06-01", "2024-06-01", "10:30", "12:35", "100"},
		{"CA103", "AirA", "2024-06-01", "2024-06-01", "11:30", "13:35", ""},
		{"CA104", "AirB", "2024-06-01", "2024-06-01", "12:30", "14:35", ""},
	})

	out, report, err := CleanMissing(df)
	require.NoError(t, err)
	// 填充不改变行数
	assert.Equal(t, 5, out.Nrow())
	assert.Equal(t, 2, report.ImputedDelays)

	// AirA有观测值[10 20 100]，中位数20；AirB没有观测值，填0
	assert.Equal(t, 20.0, report.DelayMedians["AirA"])
	assert.Equal(t, 20.0, out.Col(ColDelayMinutes).Elem(3).Float())
	assert.Equal(t, 0.0, out.Col(ColDelayMinutes).Elem(4).Float())
	_, hasB := report.DelayMedians["AirB"]
	assert.False(t, hasB)
}

func TestCleanMedianAveragesEvenCount(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		inputHeader(),
		{"CA100", "AirA", "2024-06-01", "2024-06-01", "08:30", "10:35", "10"},
		{"CA101", "AirA", "2024-06-01", "2024-06-01", "09:30", "11:35", "20"},
		{"CA102", "AirA", "2024-06-01", "2024-06-01", "10:30", "12:35", ""},
	})

	out, report, err := CleanMissing(df)
	require.NoError(t, err)
	assert.Equal(t, 15.0, report.DelayMedians["AirA"])
	assert.Equal(t, 15.0, out.Col(ColDelayMinutes).Elem(2).Float())
}

func TestCleanNoChangesOnCompleteTable(t *testing.T) {
	df := frameFromRecords(t, [][]string{
		inputHeader(),
		{"CA100", "AirA", "2024-06-01", "2024-06-01", "08:30", "10:35", "30"},
	})

	out, report, err := CleanMissing(df)
	require.NoError(t, err)
	assert.Equal(t, df.Records(), out.Records())
	assert.Zero(t, report.DroppedRows)
	assert.Zero(t, report.BackfilledArrival)
	assert.Zero(t, report.ImputedDelays)
}
