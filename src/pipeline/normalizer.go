package pipeline

import (
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// InconsistentPolicy 异常行处理策略
type InconsistentPolicy string

const (
	// ReportOnly 仅报告异常行，保留在结果里
	ReportOnly InconsistentPolicy = "report"
	// DropInconsistent 删除异常行
	DropInconsistent InconsistentPolicy = "drop"
)

// ParseInconsistentPolicy 解析异常行策略，空串按report处理
func ParseInconsistentPolicy(s string) (InconsistentPolicy, error) {
	if s == "" {
		return ReportOnly, nil
	}
	switch p := InconsistentPolicy(s); p {
	case ReportOnly, DropInconsistent:
		return p, nil
	}
	return "", fmt.Errorf("未知的异常行策略: %q", s)
}

// NormalizeOptions 规范化阶段的选项
type NormalizeOptions struct {
	DateLayouts        []string           // 空时使用默认的可识别格式
	TimeLayouts        []string           // 空时使用默认的可识别格式
	MaxDurationMinutes float64            // 时长上限（分钟），<=0时取480
	Policy             InconsistentPolicy // 空串按report处理
}

// NormalizeReport 规范化阶段的处理摘要
type NormalizeReport struct {
	Policy              InconsistentPolicy
	RewrittenCells      int            // 改写为规范格式的单元格数
	UnparsableByColumn  map[string]int // 各列无法解析的计数
	DroppedUnparsable   int            // 因无法解析被删除的行数
	InconsistentRows    int            // 到达早于起飞或时长超限的行数
	DroppedInconsistent int
	Inconsistent        dataframe.DataFrame // 异常行，供人工复核
}

// Normalize 把日期时刻列统一改写为规范格式（日期2006-01-02，时刻24小时制15:04），
// 由起降日期时刻派生航段时长两列，并标记异常行。
// 任一日期时刻列无法解析的行删除并计数；异常行按策略报告或删除
func Normalize(df dataframe.DataFrame, opts NormalizeOptions) (dataframe.DataFrame, NormalizeReport, error) {
	report := NormalizeReport{UnparsableByColumn: make(map[string]int)}

	p, err := ParseInconsistentPolicy(string(opts.Policy))
	if err != nil {
		return df, report, err
	}
	report.Policy = p

	if df.Err != nil {
		return df, report, fmt.Errorf("输入表无效: %w", df.Err)
	}
	limit := opts.MaxDurationMinutes
	if limit <= 0 {
		limit = DefaultMaxDurationMinutes
	}

	type parseCol struct {
		name   string
		isDate bool
	}
	parseCols := []parseCol{
		{ColDepartureDate, true},
		{ColArrivalDate, true},
		{ColDepartureTime, false},
		{ColArrivalTime, false},
	}

	// 1. 解析全部日期时刻单元格，记录无法解析的行
	n := df.Nrow()
	canon := make(map[string][]string, len(parseCols))
	bad := make([]bool, n)
	for _, pc := range parseCols {
		vals := make([]string, n)
		s := df.Col(pc.name)
		for i := 0; i < n; i++ {
			raw := s.Elem(i).String()
			var v string
			var ok bool
			if pc.isDate {
				v, ok = CanonicalDate(raw, opts.DateLayouts)
			} else {
				v, ok = CanonicalClock(raw, opts.TimeLayouts)
			}
			if !ok {
				report.UnparsableByColumn[pc.name]++
				bad[i] = true
			} else if v != raw {
				report.RewrittenCells++
			}
			vals[i] = v
		}
		canon[pc.name] = vals
	}

	// 2. 删除无法解析的行，规范值数组同步收缩
	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !bad[i] {
			keep = append(keep, i)
		}
	}
	if len(keep) < n {
		report.DroppedUnparsable = n - len(keep)
		df = df.Subset(keep)
		if df.Err != nil {
			return df, report, fmt.Errorf("删除无法解析的行失败: %w", df.Err)
		}
		for name, vals := range canon {
			kept := make([]string, len(keep))
			for k, i := range keep {
				kept[k] = vals[i]
			}
			canon[name] = kept
		}
		n = df.Nrow()
	}

	// 3. 改写为规范格式
	for _, pc := range parseCols {
		df = df.Mutate(series.New(canon[pc.name], series.String, pc.name))
	}

	// 4. 派生航段时长：到达日期时刻减起飞日期时刻
	// 到达日期写错造成的负时长原样保留在分钟列里，好让异常一眼可见
	layout := CanonicalDateLayout + " " + CanonicalTimeLayout
	hhmm := make([]string, n)
	minutes := make([]float64, n)
	for i := 0; i < n; i++ {
		dep, _ := time.Parse(layout, canon[ColDepartureDate][i]+" "+canon[ColDepartureTime][i])
		arr, _ := time.Parse(layout, canon[ColArrivalDate][i]+" "+canon[ColArrivalTime][i])
		d := arr.Sub(dep)
		minutes[i] = d.Minutes()
		hhmm[i] = formatDurationHHMM(d)
	}
	df = df.Mutate(series.New(hhmm, series.String, ColFlightDuration))
	df = df.Mutate(series.New(minutes, series.Float, ColFlightDurationMinutes))

	// 5. 标记异常行：到达时刻早于起飞时刻（只比时钟，跨天航班也会被标出来复核），
	// 或时长超过上限
	var inconsistent []int
	for i := 0; i < n; i++ {
		if canon[ColArrivalTime][i] < canon[ColDepartureTime][i] || minutes[i] > limit {
			inconsistent = append(inconsistent, i)
		}
	}
	report.InconsistentRows = len(inconsistent)
	if len(inconsistent) > 0 {
		report.Inconsistent = df.Subset(inconsistent)
		if p == DropInconsistent {
			flagged := make(map[int]bool, len(inconsistent))
			for _, i := range inconsistent {
				flagged[i] = true
			}
			keep = keep[:0]
			for i := 0; i < n; i++ {
				if !flagged[i] {
					keep = append(keep, i)
				}
			}
			df = df.Subset(keep)
			if df.Err != nil {
				return df, report, fmt.Errorf("删除异常行失败: %w", df.Err)
			}
			report.DroppedInconsistent = len(inconsistent)
		}
	}
	return df, report, nil
}
