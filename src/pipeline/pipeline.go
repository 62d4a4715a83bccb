package pipeline

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
)

// Options 管道一次运行的全部选项
type Options struct {
	DuplicateKey       []string
	Duplicates         DuplicatePolicy
	Inconsistent       InconsistentPolicy
	DateLayouts        []string
	TimeLayouts        []string
	MaxDurationMinutes float64
	NaNValues          []string
}

// Report 汇总各阶段的处理摘要
type Report struct {
	Clean     CleanReport
	Dedup     DedupReport
	Normalize NormalizeReport
}

// Result 管道运行结果
type Result struct {
	Table  dataframe.DataFrame // 最终表，已按航班号排序
	Report Report
}

// Run 在内存表上依次执行整理、清洗、查重、规范化四个阶段
// 任一阶段出错立即终止；对已规范化的表重复运行不改变内容
func Run(df dataframe.DataFrame, opts Options) (*Result, error) {
	prepared, err := Prepare(df, opts.NaNValues)
	if err != nil {
		return nil, err
	}

	var res Result

	cleaned, cleanRep, err := CleanMissing(prepared)
	if err != nil {
		return nil, fmt.Errorf("清洗缺失值失败: %w", err)
	}
	res.Report.Clean = cleanRep

	deduped, dedupRep, err := Deduplicate(cleaned, opts.DuplicateKey, opts.Duplicates)
	if err != nil {
		return nil, fmt.Errorf("处理重复行失败: %w", err)
	}
	res.Report.Dedup = dedupRep

	normalized, normRep, err := Normalize(deduped, NormalizeOptions{
		DateLayouts:        opts.DateLayouts,
		TimeLayouts:        opts.TimeLayouts,
		MaxDurationMinutes: opts.MaxDurationMinutes,
		Policy:             opts.Inconsistent,
	})
	if err != nil {
		return nil, fmt.Errorf("规范化失败: %w", err)
	}
	res.Report.Normalize = normRep

	// 删行之后顺序可能被打散的地方都在前面，最终再按航班号排一次
	final := normalized.Arrange(dataframe.Sort(ColFlightNumber))
	if final.Err != nil {
		return nil, fmt.Errorf("结果排序失败: %w", final.Err)
	}
	res.Table = final
	return &res, nil
}

// RunFile 读取数据文件并执行完整管道
func RunFile(path string, load LoadOptions, opts Options) (*Result, error) {
	df, err := readInput(path, load)
	if err != nil {
		return nil, err
	}
	if len(opts.NaNValues) == 0 {
		opts.NaNValues = load.NaNValues
	}
	return Run(df, opts)
}
