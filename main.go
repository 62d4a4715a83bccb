package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron"

	"AirlinesAnalysis/src/chart"
	"AirlinesAnalysis/src/config"
	"AirlinesAnalysis/src/datapush"
	"AirlinesAnalysis/src/datasource/email"
	"AirlinesAnalysis/src/datasource/file"
	"AirlinesAnalysis/src/pipeline"
	"AirlinesAnalysis/src/processor"
	"AirlinesAnalysis/src/storage"
)

// 命令行参数只覆盖运行方式，数据形态相关的默认值在配置文件里
var (
	flagConfig       = flag.String("config", "./config", "配置文件目录")
	flagInput        = flag.String("input", "", "输入数据文件(csv或xlsx)，默认取配置里的input_file")
	flagSource       = flag.String("source", "file", "数据来源: file|mailbox")
	flagDuplicates   = flag.String("duplicates", "", "重复行策略: drop-exact|drop-by-key|drop-suspects|keep-all|ask")
	flagInconsistent = flag.String("inconsistent", "", "异常行策略: report|drop|ask")
	flagStore        = flag.String("store", "", "存储驱动: sqlite|postgres|none")
	flagCharts       = flag.Bool("charts", true, "生成PDF图表")
	flagPush         = flag.Bool("push", false, "推送汇总到Webhook并发送报告邮件")
	flagWatch        = flag.Bool("watch", false, "常驻监控模式，持续处理新数据")
)

// App 把配置、日志和各处理环节捆在一起
type App struct {
	cfg    *config.Config
	dcfg   *config.DataConfig
	logger *storage.Logger
}

func main() {
	flag.Parse()

	cfg, dcfg, err := config.LoadConfig(*flagConfig, "config.json", "dataconfig.json")
	if err != nil {
		log.Fatal("加载配置失败: ", err)
	}
	applyOverrides(cfg)
	resolveAskPolicies(cfg, os.Stdin, os.Stdout)

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("初始化日志失败: ", err)
	}
	defer logger.Close()

	app := &App{cfg: cfg, dcfg: dcfg, logger: logger}

	if *flagWatch {
		if err := app.watch(); err != nil {
			logger.Error("监控模式退出: " + err.Error())
			os.Exit(1)
		}
		return
	}

	if err := app.runOnceFromSource(context.Background()); err != nil {
		logger.Error("处理失败: " + err.Error())
		os.Exit(1)
	}
}

// applyOverrides 命令行参数优先于配置文件
func applyOverrides(cfg *config.Config) {
	if *flagDuplicates != "" {
		cfg.Pipeline.Duplicates = *flagDuplicates
	}
	if *flagInconsistent != "" {
		cfg.Pipeline.Inconsistent = *flagInconsistent
	}
	if *flagStore != "" {
		cfg.Store.Driver = *flagStore
	}
}

// resolveAskPolicies 策略配成ask时在启动前确认一次，换成明确策略
// 问答只发生在这里，管线运行中不再读终端
func resolveAskPolicies(cfg *config.Config, in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	if cfg.Pipeline.Duplicates == "ask" {
		if confirm(sc, out, "是否删除重复行? (yes/no): ") {
			cfg.Pipeline.Duplicates = "drop-by-key"
		} else {
			cfg.Pipeline.Duplicates = "keep-all"
		}
	}
	if cfg.Pipeline.Inconsistent == "ask" {
		if confirm(sc, out, "是否删除时间异常的行? (yes/no): ") {
			cfg.Pipeline.Inconsistent = "drop"
		} else {
			cfg.Pipeline.Inconsistent = "report"
		}
	}
}

// confirm 读一行yes/no，答非所问就再问；输入结束按no处理
func confirm(sc *bufio.Scanner, out io.Writer, prompt string) bool {
	for {
		fmt.Fprint(out, prompt)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "yes", "y", "是":
			return true
		case "no", "n", "否":
			return false
		}
	}
}

// runOnceFromSource 按数据来源取一次输入文件并走完整处理流程
func (a *App) runOnceFromSource(ctx context.Context) error {
	switch *flagSource {
	case "file":
		input := *flagInput
		if input == "" {
			input = a.resolve(a.cfg.InputFile)
		}
		return a.runOnce(ctx, input)
	case "mailbox":
		saved, err := a.fetchFromMailbox()
		if err != nil {
			return err
		}
		return a.runOnce(ctx, saved)
	}
	return fmt.Errorf("未知的数据来源: %q", *flagSource)
}

// fetchFromMailbox 检查一次邮箱，把最新数据邮件的附件落盘
func (a *App) fetchFromMailbox() (string, error) {
	client := email.NewEmailClient(
		a.cfg.Email.Server,
		a.cfg.Email.Username,
		a.cfg.Email.Password)
	handler := email.NewDataAttachmentHandler(a.cfg.Email.TargetSubject, a.cfg.DataDir)

	newEmail, err := email.CheckAndProcessEmails(client, a.cfg.Email.TargetSubject, a.logger)
	if err != nil {
		return "", fmt.Errorf("检查邮件失败: %w", err)
	}
	if newEmail == nil {
		return "", fmt.Errorf("邮箱中没有新的数据邮件")
	}
	if err := handler.Handle(newEmail); err != nil {
		return "", fmt.Errorf("处理邮件失败(UID:%d): %w", newEmail.UID, err)
	}
	saved := handler.LastSaved()
	if saved == "" {
		return "", fmt.Errorf("数据邮件里没有可用附件")
	}
	return saved, nil
}

// runOnce 单次完整流程：清洗管线 -> 导出 -> 入库 -> 统计报告 -> 图表 -> 推送
func (a *App) runOnce(ctx context.Context, inputPath string) error {
	t1 := time.Now()
	a.logger.Info("开始处理: " + inputPath)

	opts, err := a.pipelineOptions()
	if err != nil {
		return err
	}
	res, err := pipeline.RunFile(inputPath, a.loadOptions(), opts)
	if err != nil {
		return fmt.Errorf("清洗管线失败: %w", err)
	}
	rep := res.Report
	a.logger.Info(fmt.Sprintf("清洗完成: 输入%d行，删%d行，回填到达日期%d处，填充延误%d处",
		rep.Clean.RowsIn, rep.Clean.DroppedRows, rep.Clean.BackfilledArrival, rep.Clean.ImputedDelays))
	a.logger.Info(fmt.Sprintf("查重完成(%s): 可疑组%d个共%d行，删%d行",
		rep.Dedup.Policy, rep.Dedup.SuspectGroups, rep.Dedup.SuspectRows, rep.Dedup.DroppedRows))
	a.logger.Info(fmt.Sprintf("规范化完成(%s): 改写%d处，删无法解析%d行，异常%d行，最终%d行",
		rep.Normalize.Policy, rep.Normalize.RewrittenCells, rep.Normalize.DroppedUnparsable,
		rep.Normalize.InconsistentRows, res.Table.Nrow()))

	// 导出清洗后的表
	outPath := a.resolve(a.cfg.OutputFile)
	if err := file.WriteCSV(res.Table, outPath); err != nil {
		return fmt.Errorf("导出CSV失败: %w", err)
	}
	a.logger.Info("清洗结果已导出: " + outPath)

	// 写入关系型存储
	if a.cfg.Store.Driver != "none" {
		st, err := storage.OpenStore(ctx, a.cfg)
		if err != nil {
			return fmt.Errorf("打开存储失败: %w", err)
		}
		if err := st.Replace(ctx, res.Table); err != nil {
			st.Close()
			return fmt.Errorf("写入存储失败: %w", err)
		}
		st.Close()
		a.logger.Info(fmt.Sprintf("已写入%s存储: 表%s", a.cfg.Store.Driver, a.cfg.Store.Table))
	}

	// 统计汇总
	sum, err := processor.Summarize(res.Table)
	if err != nil {
		return fmt.Errorf("统计汇总失败: %w", err)
	}

	reportPath := a.resolve(a.cfg.ReportFile)
	if err := processor.WriteReport(reportPath, res, sum); err != nil {
		return fmt.Errorf("写统计报告失败: %w", err)
	}
	a.logger.Info("统计报告已写入: " + reportPath)

	chartPath := ""
	if *flagCharts {
		chartPath = a.resolve(a.cfg.ChartFile)
		if err := chart.WriteCharts(chartPath, res.Table, sum, a.dcfg.HistogramBins); err != nil {
			return fmt.Errorf("生成图表失败: %w", err)
		}
		a.logger.Info("图表已生成: " + chartPath)
	}

	insights := processor.Insights(sum, rep)
	for _, line := range insights {
		a.logger.Info(line)
	}

	// 推送失败不影响本次处理结果，记错误继续
	if *flagPush {
		if err := datapush.PushSummary(a.cfg, sum, rep); err != nil {
			a.logger.Error("推送汇总失败: " + err.Error())
		}
		if err := datapush.SendReportEmail(a.cfg, insights, []string{outPath, reportPath, chartPath}); err != nil {
			a.logger.Error("发送报告邮件失败: " + err.Error())
		}
	}

	a.logger.Info(fmt.Sprintf("数据处理时间：%v", time.Since(t1)))
	return nil
}

// pipelineOptions 由配置组装管线策略
func (a *App) pipelineOptions() (pipeline.Options, error) {
	dup, err := pipeline.ParseDuplicatePolicy(a.cfg.Pipeline.Duplicates)
	if err != nil {
		return pipeline.Options{}, err
	}
	inc, err := pipeline.ParseInconsistentPolicy(a.cfg.Pipeline.Inconsistent)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Duplicates:         dup,
		Inconsistent:       inc,
		DateLayouts:        a.dcfg.GetDateLayouts(),
		TimeLayouts:        a.dcfg.GetTimeLayouts(),
		MaxDurationMinutes: a.dcfg.MaxDurationMinutes,
		NaNValues:          a.dcfg.NaNValues,
	}, nil
}

func (a *App) loadOptions() pipeline.LoadOptions {
	opts := pipeline.LoadOptions{
		SheetName: a.cfg.SheetName,
		NaNValues: a.dcfg.NaNValues,
	}
	if a.cfg.Delimiter != "" {
		opts.Delimiter = []rune(a.cfg.Delimiter)[0]
	}
	return opts
}

// resolve 相对路径放到数据目录下
func (a *App) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.cfg.DataDir, name)
}

/******************** 监控模式 ********************/

// watch 常驻运行：起实时日志页面和日志轮转巡检，再按来源监听新数据
func (a *App) watch() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	file.SetupSignalHandler(cancel)

	go a.serveLogs()
	go a.rotateLogs(ctx)

	switch *flagSource {
	case "mailbox":
		return a.watchMailbox(ctx)
	case "file":
		return a.watchFiles(ctx)
	}
	return fmt.Errorf("未知的数据来源: %q", *flagSource)
}

// watchMailbox 定时检查邮箱，有新的数据邮件就处理附件
func (a *App) watchMailbox(ctx context.Context) error {
	client := email.NewEmailClient(
		a.cfg.Email.Server,
		a.cfg.Email.Username,
		a.cfg.Email.Password)
	handler := email.NewDataAttachmentHandler(a.cfg.Email.TargetSubject, a.cfg.DataDir)

	// 设置定时任务
	c := cron.New()
	interval := time.Duration(a.cfg.Email.CheckInterval).String() // 例如 "5m0s"
	cronSpec := fmt.Sprintf("@every %s", interval)

	err := c.AddFunc(cronSpec, func() {
		a.logger.Info(fmt.Sprintf("开始定时检查邮箱(间隔: %s)...", interval))

		newEmail, err := email.CheckAndProcessEmails(client, a.cfg.Email.TargetSubject, a.logger)
		if err != nil {
			a.logger.Error("检查邮件失败: " + err.Error())
			return
		}
		if newEmail == nil {
			return
		}

		if err := handler.Handle(newEmail); err != nil {
			a.logger.Error(fmt.Sprintf("处理邮件失败(UID:%d): %v", newEmail.UID, err))
			return
		}
		saved := handler.LastSaved()
		if saved == "" {
			return
		}
		if err := a.runOnce(ctx, saved); err != nil {
			a.logger.Error("处理附件失败: " + err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("创建定时任务失败: %w", err)
	}

	c.Start()
	defer c.Stop()

	a.logger.Info(fmt.Sprintf("邮箱监控已启动(检查间隔: %s)，按Ctrl+C退出", interval))
	<-ctx.Done()
	return nil
}

// watchFiles 监控数据目录，文件更新即处理
func (a *App) watchFiles(ctx context.Context) error {
	// 启动时先把目录里最近的数据文件处理一遍
	if latest, _, err := file.FindLatest(a.cfg.DataDir, ""); err == nil {
		a.logger.Info("启动时发现最近数据文件: " + latest)
		if err := a.runOnce(ctx, latest); err != nil {
			a.logger.Error("处理失败: " + err.Error())
		}
	}

	monitor, err := file.NewFileMonitor(a.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("创建目录监控失败: %w", err)
	}
	defer monitor.Close()

	go func() {
		if err := monitor.Watch(func(path string) {
			a.logger.Info("检测到数据文件更新: " + path)
			if err := a.runOnce(ctx, path); err != nil {
				a.logger.Error("处理失败: " + err.Error())
			}
		}); err != nil {
			a.logger.Error("目录监控错误: " + err.Error())
		}
	}()

	a.logger.Info("目录监控已启动: " + a.cfg.DataDir + "，按Ctrl+C退出")
	<-ctx.Done()
	return nil
}

// serveLogs 提供/logs实时日志页面，浏览器可以直接观察处理进度
func (a *App) serveLogs() {
	// 注册/logs路由的处理函数
	http.HandleFunc("/logs", func(w http.ResponseWriter, r *http.Request) {
		// 设置响应头
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Transfer-Encoding", "chunked")

		// 创建日志订阅通道
		logChan := a.logger.Subscribe()

		// 无限循环，持续接收日志消息
		for {
			select {
			case msg := <-logChan:
				// 将日志消息写入HTTP响应
				if _, err := fmt.Fprintln(w, msg); err != nil {
					// 写入失败(如客户端断开连接)则退出循环
					return
				}
				// 刷新响应缓冲区，确保消息立即发送到客户端
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			case <-r.Context().Done():
				// 客户端断开连接则退出循环
				return
			}
		}
	})

	if err := http.ListenAndServe(a.cfg.Watch.LogAddr, nil); err != nil {
		a.logger.Error("日志页面服务退出: " + err.Error())
	}
}

// rotateLogs 周期巡检日志文件大小，超过配置上限时轮转
func (a *App) rotateLogs(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.logger.CheckRotate(a.cfg); err != nil {
				a.logger.Error("日志轮转失败: " + err.Error())
			}
		case <-ctx.Done():
			return
		}
	}
}
