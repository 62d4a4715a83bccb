package datapush

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AirlinesAnalysis/src/config"
	"AirlinesAnalysis/src/pipeline"
	"AirlinesAnalysis/src/processor"
)

func sampleSummary() *processor.Summary {
	return &processor.Summary{
		Rows:               42,
		Correlation:        0.37,
		MostDelayedAirline: "AirB",
		MostDelayedAvg:     55.5,
		WorstDepartureTime: "18:30",
		WorstDepartureAvg:  61.0,
	}
}

func sampleReport() pipeline.Report {
	var rep pipeline.Report
	rep.Clean.DroppedRows = 3
	rep.Dedup.DroppedRows = 2
	rep.Normalize.DroppedUnparsable = 1
	return rep
}

func TestPushSummary(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.Webhook.URL = server.URL
	cfg.Webhook.Timeout = config.Duration(2 * time.Second)

	require.NoError(t, PushSummary(cfg, sampleSummary(), sampleReport()))

	var payload SummaryPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, 42, payload.Rows)
	assert.Equal(t, "AirB", payload.MostDelayedAirline)
	assert.Equal(t, "18:30", payload.WorstDepartureTime)
	assert.Equal(t, 3, payload.DroppedMissing)
	assert.Equal(t, 2, payload.DroppedDuplicates)
	require.NotNil(t, payload.Correlation)
	assert.InDelta(t, 0.37, *payload.Correlation, 1e-9)
	assert.NotEmpty(t, payload.Insights)
}

func TestPushSummarySkippedWithoutURL(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, PushSummary(cfg, sampleSummary(), sampleReport()))
}

func TestNewSummaryPayloadNaNCorrelation(t *testing.T) {
	sum := sampleSummary()
	sum.Correlation = math.NaN()

	payload := NewSummaryPayload(sum, sampleReport())
	assert.Nil(t, payload.Correlation)

	// NaN留在结构里会让JSON序列化直接失败
	_, err := json.Marshal(payload)
	require.NoError(t, err)
}

func TestPostJSONRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := postJSON(server.Client(), server.URL, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "推送被拒绝")
}

func TestRetryEventuallySucceeds(t *testing.T) {
	var calls int32
	fn := func() error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("暂时失败")
		}
		return nil
	}

	require.NoError(t, retry(fn, 5, time.Millisecond))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryExhausted(t *testing.T) {
	var calls int32
	fn := func() error {
		atomic.AddInt32(&calls, 1)
		return errors.New("一直失败")
	}

	err := retry(fn, 3, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "重试 3 次后失败")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNewReportEmail(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "report.xlsx")
	require.NoError(t, os.WriteFile(report, []byte("workbook"), 0644))

	cfg := &config.Config{}
	cfg.SendEmail.Username = "bot@example.com"
	cfg.SendEmail.To = []string{"ops@example.com"}

	insights := []string{"延误最严重的航司: AirB", "建议复核可疑重复行"}
	missing := filepath.Join(dir, "没有的文件.pdf")

	e := newReportEmail(cfg, insights, []string{report, missing, ""})

	assert.Equal(t, "Flight Analysis <bot@example.com>", e.From)
	assert.Equal(t, []string{"ops@example.com"}, e.To)
	assert.Equal(t, "航班延误分析报告", e.Subject, "主题未配置时使用默认值")
	assert.Contains(t, string(e.Text), "AirB")
	assert.Len(t, e.Attachments, 1, "存在的附件只有一个")
}

func TestSendReportEmailSkippedWithoutServer(t *testing.T) {
	cfg := &config.Config{}
	require.NoError(t, SendReportEmail(cfg, []string{"x"}, nil))
}
