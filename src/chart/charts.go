// charts.go
package chart

import (
	"fmt"
	"math"
	"sort"

	"AirlinesAnalysis/src/pipeline"
	"AirlinesAnalysis/src/processor"

	"github.com/go-gota/gota/dataframe"
	"github.com/jung-kurt/gofpdf"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// 调色板，折线与箱体循环取色
var palette = [][]int{
	{0x1f, 0x77, 0xb4},
	{0xd6, 0x28, 0x28},
	{0x2c, 0xa0, 0x2c},
	{0xff, 0x7f, 0x0e},
	{0x94, 0x67, 0xbd},
	{0x17, 0xbe, 0xcf},
}

// WriteCharts 把延误图表渲染成一个四页PDF：
// 延误分布直方图、各航司逐日平均延误、各航司延误箱线图、起飞时刻平均延误
// 内置字体不含中文字形，图内文字一律用英文
func WriteCharts(path string, table dataframe.DataFrame, sum *processor.Summary, bins int) error {
	if table.Err != nil {
		return fmt.Errorf("绘图的表无效: %w", table.Err)
	}
	if table.Nrow() == 0 {
		return fmt.Errorf("没有可绘制的行")
	}
	if bins <= 0 {
		bins = 15
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Flight Delay Charts", true)

	drawHistogramPage(pdf, table, bins)
	drawDailyDelayPage(pdf, table)
	drawBoxPlotPage(pdf, table)
	if sum != nil {
		drawDeparturePage(pdf, sum)
	}

	if pdf.Err() {
		return fmt.Errorf("渲染图表失败: %w", pdf.Error())
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("保存图表失败: %w", err)
	}
	return nil
}

func addPage(pdf *gofpdf.Fpdf, title string) {
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(20, 12)
	pdf.CellFormat(257, 8, title, "", 0, "C", false, 0, "")
}

// delayValues 延误分钟列的有效值
func delayValues(table dataframe.DataFrame) []float64 {
	col := table.Col(pipeline.ColDelayMinutes)
	var vals []float64
	for i := 0; i < table.Nrow(); i++ {
		el := col.Elem(i)
		if el.IsNA() {
			continue
		}
		if v := el.Float(); !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}

// tickStep 取不超过6个刻度的整齐步长
func tickStep(span float64) float64 {
	if span <= 0 {
		return 1
	}
	raw := span / 5
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	norm := raw / mag
	switch {
	case norm < 1.5:
		norm = 1
	case norm < 3.5:
		norm = 2
	case norm < 7.5:
		norm = 5
	default:
		norm = 10
	}
	return norm * mag
}

func drawHistogramPage(pdf *gofpdf.Fpdf, table dataframe.DataFrame, bins int) {
	addPage(pdf, "Delay Distribution (minutes)")

	delays := delayValues(table)
	if len(delays) == 0 {
		return
	}
	lo, hi := floats.Min(delays), floats.Max(delays)
	if hi == lo {
		hi = lo + 1
	}

	// 等宽分桶，最大值归入末桶
	width := (hi - lo) / float64(bins)
	counts := make([]int, bins)
	for _, v := range delays {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	// 计数轴的刻度至少隔1，避免小数刻度取整后重复
	yStep := tickStep(float64(maxCount))
	if yStep < 1 {
		yStep = 1
	}
	grid := &baseGrid{
		Fpdf:    pdf,
		offsetU: 35, offsetV: 30,
		w: 230, h: 150,
		minX: lo, maxX: hi,
		minY: 0, maxY: float64(maxCount),
		xGridlineEvery: tickStep(hi - lo),
		yGridlineEvery: yStep,
		xTickFmt:       "%.0f",
		yTickFmt:       "%.0f",
	}
	grid.drawGridlines()
	for i, c := range counts {
		if c == 0 {
			continue
		}
		x1 := lo + float64(i)*width
		grid.bar(x1, x1+width, float64(c), palette[0])
	}
}

func drawDailyDelayPage(pdf *gofpdf.Fpdf, table dataframe.DataFrame) {
	addPage(pdf, "Average Daily Delay per Airline")

	airlineCol := table.Col(pipeline.ColAirline)
	dateCol := table.Col(pipeline.ColDepartureDate)
	delayCol := table.Col(pipeline.ColDelayMinutes)

	// 航司->日期->延误累计
	type acc struct {
		sum float64
		n   int
	}
	daily := make(map[string]map[string]*acc)
	dateSet := make(map[string]bool)
	for i := 0; i < table.Nrow(); i++ {
		if delayCol.Elem(i).IsNA() {
			continue
		}
		airline := airlineCol.Elem(i).String()
		date := dateCol.Elem(i).String()
		if daily[airline] == nil {
			daily[airline] = make(map[string]*acc)
		}
		if daily[airline][date] == nil {
			daily[airline][date] = &acc{}
		}
		daily[airline][date].sum += delayCol.Elem(i).Float()
		daily[airline][date].n++
		dateSet[date] = true
	}
	if len(dateSet) == 0 {
		return
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	dateIdx := make(map[string]int, len(dates))
	for i, d := range dates {
		dateIdx[d] = i
	}

	airlines := make([]string, 0, len(daily))
	for a := range daily {
		airlines = append(airlines, a)
	}
	sort.Strings(airlines)

	maxY := 1.0
	for _, byDate := range daily {
		for _, a := range byDate {
			if m := a.sum / float64(a.n); m > maxY {
				maxY = m
			}
		}
	}

	maxX := float64(len(dates) - 1)
	if maxX == 0 {
		maxX = 1
	}
	labelEvery := float64((len(dates) + 5) / 6)
	if labelEvery < 1 {
		labelEvery = 1
	}
	grid := &baseGrid{
		Fpdf:    pdf,
		offsetU: 35, offsetV: 30,
		w: 230, h: 150,
		minX: 0, maxX: maxX,
		minY: 0, maxY: maxY * 1.1,
		xGridlineEvery: labelEvery,
		yGridlineEvery: tickStep(maxY * 1.1),
		yTickFmt:       "%.0f",
		xTickLabel: func(x float64) string {
			i := int(x + 0.5)
			if i < 0 || i >= len(dates) {
				return ""
			}
			// 省掉年份，标成 06-01
			if len(dates[i]) == 10 {
				return dates[i][5:]
			}
			return dates[i]
		},
	}
	grid.drawGridlines()

	pdf.SetLineWidth(0.4)
	for ai, airline := range airlines {
		rgb := palette[ai%len(palette)]
		byDate := daily[airline]

		// 该航司有数据的日期，按时间顺序连线
		var xs []float64
		var ys []float64
		for _, d := range dates {
			if a, ok := byDate[d]; ok {
				xs = append(xs, float64(dateIdx[d]))
				ys = append(ys, a.sum/float64(a.n))
			}
		}
		if len(xs) == 1 {
			grid.dot(xs[0], ys[0], rgb)
		}
		for i := 1; i < len(xs); i++ {
			grid.line(xs[i-1], ys[i-1], xs[i], ys[i], rgb)
		}

		// 图例
		pdf.SetDrawColor(rgb[0], rgb[1], rgb[2])
		legendY := 34 + float64(ai)*5
		pdf.MoveTo(grid.offsetU+grid.w-36, legendY)
		pdf.LineTo(grid.offsetU+grid.w-30, legendY)
		pdf.DrawPath("D")
		pdf.SetFont("Arial", "", 8)
		pdf.SetXY(grid.offsetU+grid.w-28, legendY-2)
		pdf.CellFormat(26, 4, airline, "", 0, "L", false, 0, "")
	}
	pdf.SetLineWidth(0.2)
}

func drawBoxPlotPage(pdf *gofpdf.Fpdf, table dataframe.DataFrame) {
	addPage(pdf, "Delay by Airline (box plot)")

	airlineCol := table.Col(pipeline.ColAirline)
	delayCol := table.Col(pipeline.ColDelayMinutes)

	byAirline := make(map[string][]float64)
	for i := 0; i < table.Nrow(); i++ {
		el := delayCol.Elem(i)
		if el.IsNA() || math.IsNaN(el.Float()) {
			continue
		}
		name := airlineCol.Elem(i).String()
		byAirline[name] = append(byAirline[name], el.Float())
	}
	if len(byAirline) == 0 {
		return
	}

	airlines := make([]string, 0, len(byAirline))
	var lo, hi float64
	first := true
	for a, vals := range byAirline {
		airlines = append(airlines, a)
		sort.Float64s(vals)
		if first || vals[0] < lo {
			lo = vals[0]
		}
		if first || vals[len(vals)-1] > hi {
			hi = vals[len(vals)-1]
		}
		first = false
	}
	sort.Strings(airlines)
	if hi == lo {
		hi = lo + 1
	}
	pad := (hi - lo) * 0.1
	grid := &baseGrid{
		Fpdf:    pdf,
		offsetU: 35, offsetV: 30,
		w: 230, h: 150,
		minX: 0, maxX: float64(len(airlines)),
		minY: lo - pad, maxY: hi + pad,
		yGridlineEvery: tickStep(hi - lo + 2*pad),
		yTickFmt:       "%.0f",
	}
	grid.drawGridlines()

	for i, airline := range airlines {
		vals := byAirline[airline]
		rgb := palette[i%len(palette)]

		// 分位数线性插值，箱体q1..q3，须触到最小最大值
		q1 := stat.Quantile(0.25, stat.LinInterp, vals, nil)
		q2 := stat.Quantile(0.5, stat.LinInterp, vals, nil)
		q3 := stat.Quantile(0.75, stat.LinInterp, vals, nil)
		vMin, vMax := vals[0], vals[len(vals)-1]

		center := float64(i) + 0.5
		left, right := float64(i)+0.25, float64(i)+0.75

		grid.box(left, q1, right, q3, rgb)
		grid.line(left, q2, right, q2, rgb)
		grid.line(center, vMin, center, q1, rgb)
		grid.line(center, q3, center, vMax, rgb)
		grid.line(center-0.1, vMin, center+0.1, vMin, rgb)
		grid.line(center-0.1, vMax, center+0.1, vMax, rgb)

		// 横轴写航司名
		pdf.SetFont("Arial", "", 8)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetXY(grid.u(center)-12, grid.offsetV+grid.h+2)
		pdf.CellFormat(24, 4, airline, "", 0, "C", false, 0, "")
	}
}

func drawDeparturePage(pdf *gofpdf.Fpdf, sum *processor.Summary) {
	addPage(pdf, "Average Delay by Departure Time")

	df := sum.AvgDelayByDeparture
	if df.Err != nil || df.Nrow() == 0 {
		return
	}
	times := df.Col(processor.ColDepartureTimeSlot)
	avgs := df.Col(processor.ColAvgDelaySlot)

	var xs, ys []float64
	maxY := 1.0
	for i := 0; i < df.Nrow(); i++ {
		m, err := pipeline.MinuteOfDay(times.Elem(i).String())
		if err != nil {
			continue
		}
		y := avgs.Elem(i).Float()
		xs = append(xs, float64(m))
		ys = append(ys, y)
		if y > maxY {
			maxY = y
		}
	}
	if len(xs) == 0 {
		return
	}

	grid := &baseGrid{
		Fpdf:    pdf,
		offsetU: 35, offsetV: 30,
		w: 230, h: 150,
		minX: 0, maxX: 24 * 60,
		minY: 0, maxY: maxY * 1.1,
		xGridlineEvery: 240,
		yGridlineEvery: tickStep(maxY * 1.1),
		yTickFmt:       "%.0f",
		xTickLabel: func(x float64) string {
			m := int(x + 0.5)
			return fmt.Sprintf("%02d:%02d", m/60, m%60)
		},
	}
	grid.drawGridlines()

	rgb := palette[1]
	if len(xs) == 1 {
		grid.dot(xs[0], ys[0], rgb)
	}
	for i := 1; i < len(xs); i++ {
		grid.line(xs[i-1], ys[i-1], xs[i], ys[i], rgb)
	}
	for i := range xs {
		grid.dot(xs[i], ys[i], rgb)
	}
}
