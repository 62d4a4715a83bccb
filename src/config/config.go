package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"AirlinesAnalysis/src/pipeline"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataDir    string `json:"data_dir"`    // 应用程序数据存储目录
	InputFile  string `json:"input_file"`  // 待处理的航班数据文件(csv或xlsx)
	OutputFile string `json:"output_file"` // 清洗后导出的CSV路径
	ReportFile string `json:"report_file"` // 统计汇总工作簿(xlsx)路径
	ChartFile  string `json:"chart_file"`  // 图表报告(pdf)路径
	Delimiter  string `json:"delimiter"`   // CSV分隔符，默认","
	SheetName  string `json:"sheet_name"`  // xlsx输入使用的工作表名
	LogName    string `json:"log_name"`
	LogMaxSize string `json:"log_max_size"`

	Pipeline struct {
		Duplicates   string `json:"duplicates"`   // 重复行处理策略
		Inconsistent string `json:"inconsistent"` // 异常行处理策略
	} `json:"pipeline"`

	Store struct {
		Driver      string `json:"driver"`       // sqlite|postgres|none
		SQLitePath  string `json:"sqlite_path"`  // sqlite数据库文件
		PostgresDSN string `json:"postgres_dsn"` // postgres连接串
		Table       string `json:"table"`        // 写入的表名
	} `json:"store"`

	Email struct {
		Server        string   `json:"server"`         // 邮件服务器地址
		Username      string   `json:"username"`       // 邮箱用户名
		Password      string   `json:"password"`       // 邮箱密码
		TargetSubject string   `json:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email"`

	SendEmail struct {
		Server   string   `json:"server"`   // SMTP服务器地址
		Username string   `json:"username"` // 发件人
		Password string   `json:"password"` // 发件人密码/授权码
		To       []string `json:"to"`       // 收件人列表
		Subject  string   `json:"subject"`  // 报告邮件主题
	} `json:"send_email"`

	Webhook struct {
		URL     string   `json:"url"`     // 汇总结果推送地址，空则不推送
		Timeout Duration `json:"timeout"` // 单次请求超时
	} `json:"webhook"`

	Watch struct {
		LogAddr string `json:"log_addr"` // watch模式下实时日志页面监听地址
	} `json:"watch"`
}

// DataConfig 数据形态配置：输入格式与阈值
type DataConfig struct {
	DateLayouts        []string `json:"date_layouts"`          // 可接受的日期写法(Go layout)
	TimeLayouts        []string `json:"time_layouts"`          // 可接受的时刻写法(Go layout)
	NaNValues          []string `json:"nan_values"`            // 额外视为缺失的标记
	MaxDurationMinutes float64  `json:"max_duration_minutes"`  // 航段时长合理上限(分钟)
	HistogramBins      int      `json:"histogram_bins"`        // 延误直方图分箱数
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	cfg.applyDefaults()
	dcfg.applyDefaults()
	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
			fmt.Println("Config 配置文件加载完毕")
		case d := <-dcfgChan:
			dcfg = d
			fmt.Println("DataConfig 配置文件加载完毕")
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	// 使用固定格式字符串
	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// applyDefaults 填充未配置项的默认值
func (c *Config) applyDefaults() {
	if c.InputFile == "" {
		c.InputFile = "flights.csv"
	}
	if c.OutputFile == "" {
		c.OutputFile = "transformed_dataset.csv"
	}
	if c.ReportFile == "" {
		c.ReportFile = "flight_report.xlsx"
	}
	if c.ChartFile == "" {
		c.ChartFile = "flight_charts.pdf"
	}
	if c.Delimiter == "" {
		c.Delimiter = ","
	}
	if c.SheetName == "" {
		c.SheetName = "Sheet1"
	}
	if c.LogName == "" {
		c.LogName = "analysis.log"
	}
	if c.LogMaxSize == "" {
		c.LogMaxSize = "10 * 1024 * 1024"
	}
	if c.Pipeline.Duplicates == "" {
		c.Pipeline.Duplicates = "drop-exact"
	}
	if c.Pipeline.Inconsistent == "" {
		c.Pipeline.Inconsistent = "report"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "flights.db"
	}
	if c.Store.Table == "" {
		c.Store.Table = "flights"
	}
	if c.Email.CheckInterval == 0 {
		c.Email.CheckInterval = Duration(5 * time.Minute)
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = Duration(10 * time.Second)
	}
	if c.Watch.LogAddr == "" {
		c.Watch.LogAddr = ":8080"
	}
}

func (dc *DataConfig) applyDefaults() {
	if len(dc.DateLayouts) == 0 {
		dc.DateLayouts = pipeline.DefaultDateLayouts()
	}
	if len(dc.TimeLayouts) == 0 {
		dc.TimeLayouts = pipeline.DefaultTimeLayouts()
	}
	if dc.MaxDurationMinutes == 0 {
		dc.MaxDurationMinutes = pipeline.DefaultMaxDurationMinutes
	}
	if dc.HistogramBins == 0 {
		dc.HistogramBins = 15
	}
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (dc *DataConfig) GetDateLayouts() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, len(dc.DateLayouts))
	copy(out, dc.DateLayouts)
	return out
}

func (dc *DataConfig) GetTimeLayouts() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, len(dc.TimeLayouts))
	copy(out, dc.TimeLayouts)
	return out
}

func (dc *DataConfig) SetDateLayouts(layouts []string) {
	mu.Lock()
	defer mu.Unlock()
	dc.DateLayouts = layouts
}

func (dc *DataConfig) SetTimeLayouts(layouts []string) {
	mu.Lock()
	defer mu.Unlock()
	dc.TimeLayouts = layouts
}
