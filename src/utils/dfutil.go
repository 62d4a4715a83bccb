package utils

import (
	"math"
	"time"

	"github.com/go-gota/gota/dataframe"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// HasColumn 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// MissingColumns 返回DataFrame中缺少的列名（保持wanted的顺序）
func MissingColumns(df dataframe.DataFrame, wanted []string) []string {
	var missing []string
	names := df.Names()
	for _, w := range wanted {
		if !Contains(names, w) {
			missing = append(missing, w)
		}
	}
	return missing
}

// ExcelSerialToTime Excel序列值转time.Time
// Excel以1900-01-01为第1天，并错误地把1900年当作闰年，
// 序列值>=61时以1899-12-30为基准日即可抵消该错误
func ExcelSerialToTime(serial float64) time.Time {
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	days := int(serial)
	fraction := serial - float64(days)

	// 小数部分为一天内的时间，按秒取整避免浮点误差
	return base.AddDate(0, 0, days).
		Add(time.Duration(math.Round(86400*fraction)) * time.Second)
}
