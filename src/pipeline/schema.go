package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-gota/gota/series"
)

// 航班表的固定列集合
const (
	ColFlightNumber  = "FlightNumber"  // 航班号，表的排序键
	ColAirline       = "Airline"       // 航空公司
	ColDepartureDate = "DepartureDate" // 起飞日期
	ColArrivalDate   = "ArrivalDate"   // 到达日期
	ColDepartureTime = "DepartureTime" // 起飞时刻
	ColArrivalTime   = "ArrivalTime"   // 到达时刻
	ColDelayMinutes  = "DelayMinutes"  // 延误分钟数

	// 由Normalizer派生的列，不参与查重
	ColFlightDuration        = "FlightDuration"
	ColFlightDurationMinutes = "FlightDuration (Minutes)"
)

// 规范格式：日期 2006-01-02，时刻 15:04（24小时制）
const (
	CanonicalDateLayout = "2006-01-02"
	CanonicalTimeLayout = "15:04"
)

// DefaultMaxDurationMinutes 航段时长的合理上限，超出视为异常行
const DefaultMaxDurationMinutes = 480.0

// InputColumns 输入文件应包含的列（按表内顺序）
func InputColumns() []string {
	return []string{
		ColFlightNumber,
		ColAirline,
		ColDepartureDate,
		ColArrivalDate,
		ColDepartureTime,
		ColArrivalTime,
		ColDelayMinutes,
	}
}

// RequiredColumns 无填充策略的必需列，缺失值导致整行删除
func RequiredColumns() []string {
	return []string{
		ColFlightNumber,
		ColAirline,
		ColDepartureDate,
		ColDepartureTime,
		ColArrivalTime,
	}
}

// DerivedColumns 由管道派生的列
func DerivedColumns() []string {
	return []string{ColFlightDuration, ColFlightDurationMinutes}
}

// DefaultDuplicateKey 查重的可疑键：同一航班同一日期同一起飞时刻
func DefaultDuplicateKey() []string {
	return []string{ColFlightNumber, ColDepartureDate, ColDepartureTime}
}

// ColumnTypes 各列的系列类型，未列出的列按字符串处理
func ColumnTypes() map[string]series.Type {
	return map[string]series.Type{
		ColFlightNumber:          series.String,
		ColAirline:               series.String,
		ColDepartureDate:         series.String,
		ColArrivalDate:           series.String,
		ColDepartureTime:         series.String,
		ColArrivalTime:           series.String,
		ColDelayMinutes:          series.Float,
		ColFlightDuration:        series.String,
		ColFlightDurationMinutes: series.Float,
	}
}

// DefaultDateLayouts 可接受的日期写法
func DefaultDateLayouts() []string {
	return []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"2-Jan-2006",
		"2006-01-02 15:04:05",
	}
}

// DefaultTimeLayouts 可接受的时刻写法，12小时制在前
func DefaultTimeLayouts() []string {
	return []string{
		"03:04 PM",
		"3:04 PM",
		"03:04 pm",
		"3:04 pm",
		"3:04:05 PM",
		"15:04",
		"15:04:05",
	}
}

func parseWithLayouts(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// withCanonical 保证规范格式始终可被识别，已规范化的值重跑时不会解析失败
func withCanonical(canonical string, layouts []string) []string {
	for _, l := range layouts {
		if l == canonical {
			return layouts
		}
	}
	merged := make([]string, 0, len(layouts)+1)
	merged = append(merged, canonical)
	return append(merged, layouts...)
}

// CanonicalDate 将任一可接受写法的日期改写为规范格式
// 解析失败时返回去除空白后的原值和false
func CanonicalDate(s string, layouts []string) (string, bool) {
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts()
	} else {
		layouts = withCanonical(CanonicalDateLayout, layouts)
	}
	t, ok := parseWithLayouts(s, layouts)
	if !ok {
		return strings.TrimSpace(s), false
	}
	return t.Format(CanonicalDateLayout), true
}

// CanonicalClock 将任一可接受写法的时刻改写为规范格式
func CanonicalClock(s string, layouts []string) (string, bool) {
	if len(layouts) == 0 {
		layouts = DefaultTimeLayouts()
	} else {
		layouts = withCanonical(CanonicalTimeLayout, layouts)
	}
	t, ok := parseWithLayouts(s, layouts)
	if !ok {
		return strings.TrimSpace(s), false
	}
	return t.Format(CanonicalTimeLayout), true
}

// MinuteOfDay 规范时刻转当天分钟数
func MinuteOfDay(clock string) (int, error) {
	t, err := time.Parse(CanonicalTimeLayout, clock)
	if err != nil {
		return 0, fmt.Errorf("时刻 %q 不是规范格式: %w", clock, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// formatDurationHHMM 将时长格式化为一天内的 HH:MM
// 负值回绕到前一天，超过一天的只保留天内部分
func formatDurationHHMM(d time.Duration) string {
	const day = 24 * time.Hour
	for d < 0 {
		d += day
	}
	d %= day
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	return fmt.Sprintf("%02d:%02d", h, m)
}

// isMissing 单元格是否缺失：NaN或空白
func isMissing(el series.Element) bool {
	return el.IsNA() || strings.TrimSpace(el.String()) == ""
}
