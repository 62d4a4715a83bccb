package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"AirlinesAnalysis/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// DuplicatePolicy 重复行处理策略
type DuplicatePolicy string

const (
	// DropExact 仅删除整行完全一致的重复，保留首次出现
	DropExact DuplicatePolicy = "drop-exact"
	// DropByKey 同键行只保留首次出现
	DropByKey DuplicatePolicy = "drop-by-key"
	// DropSuspects 删除全部同键行，含首次出现
	DropSuspects DuplicatePolicy = "drop-suspects"
	// KeepAll 全部保留，仅报告
	KeepAll DuplicatePolicy = "keep-all"
)

// ParseDuplicatePolicy 解析重复行策略，空串按drop-exact处理
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	if s == "" {
		return DropExact, nil
	}
	switch p := DuplicatePolicy(s); p {
	case DropExact, DropByKey, DropSuspects, KeepAll:
		return p, nil
	}
	return "", fmt.Errorf("未知的重复行策略: %q", s)
}

// DedupReport 查重阶段的处理摘要
type DedupReport struct {
	Policy        DuplicatePolicy
	Key           []string
	SuspectGroups int // 出现多于一次的键值个数
	SuspectRows   int
	DroppedRows   int
	Suspects      dataframe.DataFrame // 可疑行，供人工复核
}

// Deduplicate 按键集识别重复行并按策略处理，保留行维持原有顺序
// 键集默认为航班号+起飞日期+起飞时刻；派生列不允许作键
// 键值比较前先做规范化，日期时刻写法不同不影响判重
func Deduplicate(df dataframe.DataFrame, key []string, policy DuplicatePolicy) (dataframe.DataFrame, DedupReport, error) {
	if len(key) == 0 {
		key = DefaultDuplicateKey()
	}
	p, err := ParseDuplicatePolicy(string(policy))
	if err != nil {
		return df, DedupReport{Key: key}, err
	}
	report := DedupReport{Policy: p, Key: key}

	if df.Err != nil {
		return df, report, fmt.Errorf("输入表无效: %w", df.Err)
	}
	for _, col := range key {
		if utils.Contains(DerivedColumns(), col) {
			return df, report, fmt.Errorf("派生列 %s 不能作为查重键", col)
		}
		if !utils.HasColumn(df, col) {
			return df, report, fmt.Errorf("查重键引用了不存在的列: %s", col)
		}
	}

	suspectKeys := rowKeys(df, key)
	counts := make(map[string]int, len(suspectKeys))
	for _, k := range suspectKeys {
		counts[k]++
	}
	for _, c := range counts {
		if c > 1 {
			report.SuspectGroups++
		}
	}

	var suspectIdx []int
	for i, k := range suspectKeys {
		if counts[k] > 1 {
			suspectIdx = append(suspectIdx, i)
		}
	}
	report.SuspectRows = len(suspectIdx)
	if len(suspectIdx) > 0 {
		report.Suspects = df.Subset(suspectIdx)
	}

	// 整行比较只看输入列，派生列不参与
	var fullKeys []string
	if p == DropExact {
		fullKeys = rowKeys(df, inputKeyColumns(df))
	}

	seen := make(map[string]bool)
	keep := make([]int, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		switch p {
		case KeepAll:
			keep = append(keep, i)
		case DropSuspects:
			if counts[suspectKeys[i]] == 1 {
				keep = append(keep, i)
			}
		case DropByKey:
			if !seen[suspectKeys[i]] {
				seen[suspectKeys[i]] = true
				keep = append(keep, i)
			}
		case DropExact:
			if !seen[fullKeys[i]] {
				seen[fullKeys[i]] = true
				keep = append(keep, i)
			}
		}
	}

	if len(keep) < df.Nrow() {
		out := df.Subset(keep)
		if out.Err != nil {
			return df, report, fmt.Errorf("删除重复行失败: %w", out.Err)
		}
		report.DroppedRows = df.Nrow() - out.Nrow()
		df = out
	}
	return df, report, nil
}

// inputKeyColumns 整行比较使用的列集合，排除派生列
func inputKeyColumns(df dataframe.DataFrame) []string {
	var cols []string
	for _, n := range df.Names() {
		if !utils.Contains(DerivedColumns(), n) {
			cols = append(cols, n)
		}
	}
	return cols
}

// rowKeys 为每行生成键串，单元格值先做规范化
func rowKeys(df dataframe.DataFrame, cols []string) []string {
	colSeries := make([]series.Series, len(cols))
	for j, col := range cols {
		colSeries[j] = df.Col(col)
	}

	keys := make([]string, df.Nrow())
	var sb strings.Builder
	for i := 0; i < df.Nrow(); i++ {
		sb.Reset()
		for j := range cols {
			if j > 0 {
				sb.WriteByte(0x1f)
			}
			sb.WriteString(canonicalCell(colSeries[j], cols[j], i))
		}
		keys[i] = sb.String()
	}
	return keys
}

// canonicalCell 对参与比较的单元格做与规范化阶段一致的改写
// 解析失败时保留原值，这样的行照样能按字面值判重
func canonicalCell(s series.Series, col string, i int) string {
	el := s.Elem(i)
	if el.IsNA() {
		return "\x00NA"
	}
	switch col {
	case ColDepartureDate, ColArrivalDate:
		v, _ := CanonicalDate(el.String(), nil)
		return v
	case ColDepartureTime, ColArrivalTime:
		v, _ := CanonicalClock(el.String(), nil)
		return v
	case ColDelayMinutes:
		return strconv.FormatFloat(el.Float(), 'g', -1, 64)
	default:
		return strings.TrimSpace(el.String())
	}
}
