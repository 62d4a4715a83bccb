// push.go
package datapush

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/jordan-wright/email"

	"AirlinesAnalysis/src/config"
	"AirlinesAnalysis/src/pipeline"
	"AirlinesAnalysis/src/processor"
)

// 常量定义
const (
	RetryTimes    = 5               // 推送失败的重试次数
	RetryInterval = 2 * time.Second // 相邻两次重试的间隔
)

// SummaryPayload 推送到Webhook的汇总结构
type SummaryPayload struct {
	GeneratedAt         string   `json:"generated_at"`
	Rows                int      `json:"rows"`
	MostDelayedAirline  string   `json:"most_delayed_airline"`
	MostDelayedAvg      float64  `json:"most_delayed_avg_minutes"`
	WorstDepartureTime  string   `json:"worst_departure_time"`
	WorstDepartureAvg   float64  `json:"worst_departure_avg_minutes"`
	Correlation         *float64 `json:"delay_departure_correlation,omitempty"` // 样本不足时缺省
	DroppedMissing      int      `json:"dropped_missing_rows"`
	DroppedDuplicates   int      `json:"dropped_duplicate_rows"`
	DroppedUnparsable   int      `json:"dropped_unparsable_rows"`
	DroppedInconsistent int      `json:"dropped_inconsistent_rows"`
	Insights            []string `json:"insights"`
}

// NewSummaryPayload 汇总统计结果和各阶段报告，NaN相关系数不进JSON
func NewSummaryPayload(sum *processor.Summary, rep pipeline.Report) *SummaryPayload {
	p := &SummaryPayload{
		GeneratedAt:         time.Now().Format("2006-01-02 15:04:05"),
		Rows:                sum.Rows,
		MostDelayedAirline:  sum.MostDelayedAirline,
		MostDelayedAvg:      sum.MostDelayedAvg,
		WorstDepartureTime:  sum.WorstDepartureTime,
		WorstDepartureAvg:   sum.WorstDepartureAvg,
		DroppedMissing:      rep.Clean.DroppedRows,
		DroppedDuplicates:   rep.Dedup.DroppedRows,
		DroppedUnparsable:   rep.Normalize.DroppedUnparsable,
		DroppedInconsistent: rep.Normalize.DroppedInconsistent,
		Insights:            processor.Insights(sum, rep),
	}
	if !math.IsNaN(sum.Correlation) {
		corr := sum.Correlation
		p.Correlation = &corr
	}
	return p
}

// PushSummary 把汇总JSON推送到配置的Webhook地址
// 未配置地址时直接跳过；失败时按固定间隔重试
func PushSummary(cfg *config.Config, sum *processor.Summary, rep pipeline.Report) error {
	if cfg.Webhook.URL == "" {
		return nil
	}

	data, err := json.Marshal(NewSummaryPayload(sum, rep))
	if err != nil {
		return fmt.Errorf("序列化汇总数据失败: %w", err)
	}

	client := &http.Client{Timeout: time.Duration(cfg.Webhook.Timeout)}
	return retry(func() error {
		return postJSON(client, cfg.Webhook.URL, data)
	}, RetryTimes, RetryInterval)
}

// postJSON 发送一次JSON请求，非2xx状态视为失败
func postJSON(client *http.Client, url string, data []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) // 读完正文让连接可复用

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("推送被拒绝: %s", resp.Status)
	}
	return nil
}

// newReportEmail 组装报告邮件，附件文件不存在时记日志跳过
func newReportEmail(cfg *config.Config, insights []string, attachments []string) *email.Email {
	e := email.NewEmail()
	e.From = fmt.Sprintf("Flight Analysis <%s>", cfg.SendEmail.Username)
	e.To = cfg.SendEmail.To
	e.Subject = cfg.SendEmail.Subject
	if e.Subject == "" {
		e.Subject = "航班延误分析报告"
	}
	e.Text = []byte(strings.Join(insights, "\n"))

	for _, path := range attachments {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			log.Printf("附件文件不存在，跳过: %s", path)
			continue
		}
		if _, err := e.AttachFile(path); err != nil {
			log.Printf("附件添加失败: %v", err)
		}
	}
	return e
}

// SendReportEmail 把分析洞察和报告附件发给配置的收件人
// 未配置SMTP服务器或收件人时直接跳过
func SendReportEmail(cfg *config.Config, insights []string, attachments []string) error {
	if cfg.SendEmail.Server == "" || len(cfg.SendEmail.To) == 0 {
		return nil
	}

	e := newReportEmail(cfg, insights, attachments)

	// 确保服务器地址包含端口
	smtpAddr := cfg.SendEmail.Server
	if !strings.Contains(smtpAddr, ":") {
		smtpAddr += ":465" // 默认 SSL 端口
	}
	host := strings.Split(smtpAddr, ":")[0]

	// 发送邮件（显式 TLS）
	err := e.SendWithTLS(
		smtpAddr,
		smtp.PlainAuth("", cfg.SendEmail.Username, cfg.SendEmail.Password, host),
		&tls.Config{ServerName: host},
	)
	if err != nil {
		return fmt.Errorf("报告邮件发送失败: %w", err)
	}
	log.Println("报告邮件发送成功")
	return nil
}

// retry 依次重试fn，全部失败时返回最后一次错误
func retry(fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}
