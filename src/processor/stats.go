// stats.go
package processor

import (
	"fmt"
	"math"

	"AirlinesAnalysis/src/pipeline"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/stat"
)

// 统计表的输出列名
const (
	ColAvgDelayAirline   = "AverageDelay (in Minutes)"
	ColDepartureTimeSlot = "Departure Time"
	ColAvgDelaySlot      = "Average Delay (Minutes)"
)

// Summary 一次运行的统计汇总
type Summary struct {
	Rows                int
	AvgDelayPerAirline  dataframe.DataFrame // [Airline, AverageDelay (in Minutes)]
	AvgDelayByDeparture dataframe.DataFrame // [Departure Time, Average Delay (Minutes)]
	Correlation         float64             // 起飞时刻(当天分钟数)与延误的相关系数
	MostDelayedAirline  string
	MostDelayedAvg      float64
	WorstDepartureTime  string
	WorstDepartureAvg   float64
}

// AverageDelayPerAirline 各航司的平均延误，按航司名排序
func AverageDelayPerAirline(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	return groupMean(df, pipeline.ColAirline, pipeline.ColAirline, ColAvgDelayAirline)
}

// AverageDelayByDepartureTime 各起飞时刻的平均延误，按时刻排序
// 时刻已是规范的24小时制，字典序即时间序
func AverageDelayByDepartureTime(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	return groupMean(df, pipeline.ColDepartureTime, ColDepartureTimeSlot, ColAvgDelaySlot)
}

// groupMean 按keyCol分组求延误均值，分组聚合的行序不定，取回后统一排序
func groupMean(df dataframe.DataFrame, keyCol, outKey, outVal string) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return df, fmt.Errorf("统计的表无效: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("没有可统计的行")
	}

	groups := df.GroupBy(keyCol)
	if groups.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("按 %s 分组失败: %w", keyCol, groups.Err)
	}
	agg := groups.Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_MEAN},
		[]string{pipeline.ColDelayMinutes},
	)
	if agg.Err != nil {
		return agg, fmt.Errorf("聚合延误均值失败: %w", agg.Err)
	}

	out := agg.Rename(outVal, pipeline.ColDelayMinutes+"_MEAN")
	if keyCol != outKey {
		out = out.Rename(outKey, keyCol)
	}
	out = out.Select([]string{outKey, outVal}).Arrange(dataframe.Sort(outKey))
	if out.Err != nil {
		return out, fmt.Errorf("整理统计表失败: %w", out.Err)
	}
	return out, nil
}

// DelayDepartureCorrelation 起飞时刻与延误分钟数的皮尔逊相关系数
// 时刻转成当天分钟数参与计算；有效样本不足两个时报错
func DelayDepartureCorrelation(df dataframe.DataFrame) (float64, error) {
	if df.Err != nil {
		return math.NaN(), fmt.Errorf("统计的表无效: %w", df.Err)
	}

	times := df.Col(pipeline.ColDepartureTime)
	delays := df.Col(pipeline.ColDelayMinutes)
	var xs, ys []float64
	for i := 0; i < df.Nrow(); i++ {
		if delays.Elem(i).IsNA() {
			continue
		}
		m, err := pipeline.MinuteOfDay(times.Elem(i).String())
		if err != nil {
			continue
		}
		xs = append(xs, float64(m))
		ys = append(ys, delays.Elem(i).Float())
	}
	if len(xs) < 2 {
		return math.NaN(), fmt.Errorf("有效样本不足，无法计算相关系数")
	}
	return stat.Correlation(xs, ys, nil), nil
}

// Summarize 汇总全部统计量与结论字段
func Summarize(df dataframe.DataFrame) (*Summary, error) {
	byAirline, err := AverageDelayPerAirline(df)
	if err != nil {
		return nil, err
	}
	byTime, err := AverageDelayByDepartureTime(df)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Rows:                df.Nrow(),
		AvgDelayPerAirline:  byAirline,
		AvgDelayByDeparture: byTime,
	}

	// 样本太少时相关系数算不出来，汇总照常给出
	if corr, err := DelayDepartureCorrelation(df); err == nil {
		sum.Correlation = corr
	} else {
		sum.Correlation = math.NaN()
	}

	sum.MostDelayedAirline, sum.MostDelayedAvg = maxRow(byAirline, pipeline.ColAirline, ColAvgDelayAirline)
	sum.WorstDepartureTime, sum.WorstDepartureAvg = maxRow(byTime, ColDepartureTimeSlot, ColAvgDelaySlot)
	return sum, nil
}

// maxRow 数值列最大的行，并列时取排序后靠前的
func maxRow(df dataframe.DataFrame, labelCol, valueCol string) (string, float64) {
	labels := df.Col(labelCol)
	values := df.Col(valueCol)
	best := ""
	bestV := math.Inf(-1)
	for i := 0; i < df.Nrow(); i++ {
		if v := values.Elem(i).Float(); v > bestV {
			bestV = v
			best = labels.Elem(i).String()
		}
	}
	return best, bestV
}

// Insights 面向人读的结论行，随日志与推送一起发出
func Insights(sum *Summary, rep pipeline.Report) []string {
	lines := []string{
		fmt.Sprintf("延误最严重的航司: %s，平均延误 %.1f 分钟", sum.MostDelayedAirline, sum.MostDelayedAvg),
		fmt.Sprintf("延误最严重的起飞时刻: %s，平均延误 %.1f 分钟", sum.WorstDepartureTime, sum.WorstDepartureAvg),
		fmt.Sprintf("起飞时刻与延误的相关系数: %.3f", sum.Correlation),
	}
	if rep.Dedup.SuspectRows > 0 {
		lines = append(lines, fmt.Sprintf("发现 %d 行可疑重复（%d 组），建议人工复核", rep.Dedup.SuspectRows, rep.Dedup.SuspectGroups))
	}
	if rep.Normalize.InconsistentRows > 0 {
		lines = append(lines, fmt.Sprintf("发现 %d 行起降时刻异常，建议人工复核", rep.Normalize.InconsistentRows))
	}
	return lines
}
