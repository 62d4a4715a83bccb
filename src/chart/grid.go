// grid.go
package chart

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// baseGrid 把数据坐标映射到页面坐标(mm)的绘图网格
// 原点在左下角，offsetU/offsetV是网格左上角在页面上的位置
type baseGrid struct {
	*gofpdf.Fpdf

	offsetU, offsetV float64
	w, h             float64

	minX, maxX float64
	minY, maxY float64

	xGridlineEvery float64
	yGridlineEvery float64
	xTickFmt       string               // 传给Sprintf的格式，空串不画刻度
	yTickFmt       string
	xTickLabel     func(float64) string // 自定义刻度文字，优先于xTickFmt
}

// u 数据x映射到页面横坐标
func (bg *baseGrid) u(x float64) float64 {
	ratio := (x - bg.minX) / (bg.maxX - bg.minX)
	return bg.offsetU + ratio*bg.w
}

// v 数据y映射到页面纵坐标，页面y轴向下所以翻转
func (bg *baseGrid) v(y float64) float64 {
	ratio := (y - bg.minY) / (bg.maxY - bg.minY)
	return bg.offsetV + bg.h - ratio*bg.h
}

func (bg *baseGrid) uv(x, y float64) (float64, float64) {
	return bg.u(x), bg.v(y)
}

// line 在两个数据点之间画线
func (bg *baseGrid) line(x1, y1, x2, y2 float64, rgb []int) {
	if len(rgb) == 3 {
		bg.SetDrawColor(rgb[0], rgb[1], rgb[2])
	}
	u1, v1 := bg.uv(x1, y1)
	u2, v2 := bg.uv(x2, y2)
	bg.MoveTo(u1, v1)
	bg.LineTo(u2, v2)
	bg.DrawPath("D")
}

// dot 单点标记，一条线只有一个点时用
func (bg *baseGrid) dot(x, y float64, rgb []int) {
	if len(rgb) == 3 {
		bg.SetFillColor(rgb[0], rgb[1], rgb[2])
	}
	u, v := bg.uv(x, y)
	bg.Circle(u, v, 0.8, "F")
}

// bar 从基线到y的实心柱，x1..x2为柱宽
func (bg *baseGrid) bar(x1, x2, y float64, rgb []int) {
	if len(rgb) == 3 {
		bg.SetFillColor(rgb[0], rgb[1], rgb[2])
	}
	u1, vTop := bg.uv(x1, y)
	u2 := bg.u(x2)
	vBase := bg.v(bg.minY)
	bg.Rect(u1, vTop, u2-u1, vBase-vTop, "FD")
}

// box 空心矩形，箱线图的箱体
func (bg *baseGrid) box(x1, y1, x2, y2 float64, rgb []int) {
	if len(rgb) == 3 {
		bg.SetDrawColor(rgb[0], rgb[1], rgb[2])
	}
	u1, v1 := bg.uv(x1, y1)
	u2, v2 := bg.uv(x2, y2)
	bg.Rect(u1, v2, u2-u1, v1-v2, "D")
}

// drawGridlines 浅色网格线加坐标刻度
func (bg *baseGrid) drawGridlines() {
	bg.SetFont("Arial", "", 8)
	bg.SetLineWidth(0.1)
	bg.SetTextColor(0, 0, 0)

	if bg.xGridlineEvery > 0 {
		for x := bg.minX; x <= bg.maxX+1e-9; x += bg.xGridlineEvery {
			bg.SetDrawColor(0xe0, 0xe0, 0xe0)
			u := bg.u(x)
			bg.MoveTo(u, bg.offsetV)
			bg.LineTo(u, bg.offsetV+bg.h)
			bg.DrawPath("D")

			if label := bg.xLabel(x); label != "" {
				bg.SetXY(u-8, bg.offsetV+bg.h+2)
				bg.CellFormat(16, 4, label, "", 0, "C", false, 0, "")
			}
		}
	}

	if bg.yGridlineEvery > 0 {
		for y := bg.minY; y <= bg.maxY+1e-9; y += bg.yGridlineEvery {
			bg.SetDrawColor(0xe0, 0xe0, 0xe0)
			v := bg.v(y)
			bg.MoveTo(bg.offsetU, v)
			bg.LineTo(bg.offsetU+bg.w, v)
			bg.DrawPath("D")

			if bg.yTickFmt != "" {
				bg.SetXY(bg.offsetU-20, v-2)
				bg.CellFormat(18, 4, fmt.Sprintf(bg.yTickFmt, y), "", 0, "R", false, 0, "")
			}
		}
	}

	// 外框
	bg.SetDrawColor(0x40, 0x40, 0x40)
	bg.SetLineWidth(0.2)
	bg.Rect(bg.offsetU, bg.offsetV, bg.w, bg.h, "D")
}

func (bg *baseGrid) xLabel(x float64) string {
	if bg.xTickLabel != nil {
		return bg.xTickLabel(x)
	}
	if bg.xTickFmt != "" {
		return fmt.Sprintf(bg.xTickFmt, x)
	}
	return ""
}
