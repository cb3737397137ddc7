package chart

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ignite/wbr-monitor/internal/domain"
)

// ErrNoData is returned when a series has no points to draw.
var ErrNoData = errors.New("chart: no data points")

// Options sizes the output image.
type Options struct {
	Width  int
	Height int
}

// DefaultOptions is the size served by the API.
var DefaultOptions = Options{Width: 800, Height: 400}

// The plot is drawn at supersample x resolution and scaled down, which
// smooths the lines; labels are drawn on the final image.
const supersample = 2

const (
	marginLeft   = 56
	marginRight  = 20
	marginTop    = 28
	marginBottom = 36
	yTicks       = 4
)

var (
	colBackground = color.RGBA{255, 255, 255, 255}
	colAxis       = color.RGBA{120, 120, 120, 255}
	colGrid       = color.RGBA{228, 228, 228, 255}
	colRate       = color.RGBA{31, 119, 180, 255}
	colGoal       = color.RGBA{214, 39, 40, 255}
	colOffTrack   = color.RGBA{214, 39, 40, 255}
	colText       = color.RGBA{40, 40, 40, 255}
)

// RenderPNG draws s and writes it to w as a PNG.
func RenderPNG(w io.Writer, s Series, opts Options) error {
	img, err := Render(s, opts)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Render draws s into an image of the requested size.
func Render(s Series, opts Options) (*image.RGBA, error) {
	if len(s.Points) == 0 {
		return nil, ErrNoData
	}
	if opts.Width <= marginLeft+marginRight || opts.Height <= marginTop+marginBottom {
		opts = DefaultOptions
	}

	yMax := axisMax(s.Points)
	pl := newPlot(s, opts, supersample, yMax)

	hi := image.NewRGBA(image.Rect(0, 0, opts.Width*supersample, opts.Height*supersample))
	draw.Draw(hi, hi.Bounds(), image.NewUniform(colBackground), image.Point{}, draw.Src)

	for i := 0; i <= yTicks; i++ {
		y := pl.y(yMax * float64(i) / yTicks)
		strokeLine(hi, pl.left, y, pl.right, y, colGrid, supersample, 0)
	}
	strokeLine(hi, pl.left, pl.top, pl.left, pl.bottom, colAxis, supersample, 0)
	strokeLine(hi, pl.left, pl.bottom, pl.right, pl.bottom, colAxis, supersample, 0)

	// Goal: dashed, through every point's goal (a flat rule for a constant goal).
	if len(s.Points) == 1 {
		y := pl.y(s.Points[0].GoalPct)
		strokeLine(hi, pl.left, y, pl.right, y, colGoal, 2*supersample, 10*supersample)
	}
	for i := 1; i < len(s.Points); i++ {
		a, b := s.Points[i-1], s.Points[i]
		strokeLine(hi, pl.x(i-1), pl.y(a.GoalPct), pl.x(i), pl.y(b.GoalPct), colGoal, 2*supersample, 10*supersample)
	}

	// Open rate: solid, broken across undefined periods.
	for i := 1; i < len(s.Points); i++ {
		a, b := s.Points[i-1], s.Points[i]
		if a.OpenRatePct == nil || b.OpenRatePct == nil {
			continue
		}
		strokeLine(hi, pl.x(i-1), pl.y(*a.OpenRatePct), pl.x(i), pl.y(*b.OpenRatePct), colRate, 3*supersample, 0)
	}
	for i, p := range s.Points {
		if p.OpenRatePct == nil {
			continue
		}
		c := colRate
		if p.Status == domain.StatusOffTrack {
			c = colOffTrack
		}
		fillRect(hi, pl.x(i), pl.y(*p.OpenRatePct), 7*supersample, c)
	}

	out := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.CatmullRom.Scale(out, out.Bounds(), hi, hi.Bounds(), draw.Src, nil)

	lo := newPlot(s, opts, 1, yMax)
	title := s.Title
	if title == "" {
		title = DefaultTitle
	}
	drawText(out, title, lo.left, marginTop-10)
	for i := 0; i <= yTicks; i++ {
		v := yMax * float64(i) / yTicks
		label := fmt.Sprintf("%.1f%%", v)
		drawText(out, label, lo.left-6-textWidth(label), lo.y(v)+4)
	}
	first := s.Points[0].Date.Format(domain.DateLayout)
	drawText(out, first, lo.left, lo.bottom+18)
	if len(s.Points) > 1 {
		last := s.Points[len(s.Points)-1].Date.Format(domain.DateLayout)
		drawText(out, last, lo.right-textWidth(last), lo.bottom+18)
	}
	return out, nil
}

// axisMax is the top of the y axis: 10% headroom over the largest value,
// rounded up to a whole percent.
func axisMax(points []Point) float64 {
	top := 0.0
	for _, p := range points {
		top = math.Max(top, p.GoalPct)
		if p.OpenRatePct != nil {
			top = math.Max(top, *p.OpenRatePct)
		}
	}
	top = math.Ceil(top * 1.1)
	if top < 1 {
		top = 1
	}
	return top
}

type plot struct {
	left, right, top, bottom int
	n                        int
	yMax                     float64
}

func newPlot(s Series, opts Options, scale int, yMax float64) plot {
	return plot{
		left:   marginLeft * scale,
		right:  (opts.Width - marginRight) * scale,
		top:    marginTop * scale,
		bottom: (opts.Height - marginBottom) * scale,
		n:      len(s.Points),
		yMax:   yMax,
	}
}

// x spaces points evenly; periods are weekly so index spacing is time spacing.
func (p plot) x(i int) int {
	if p.n <= 1 {
		return (p.left + p.right) / 2
	}
	return p.left + i*(p.right-p.left)/(p.n-1)
}

func (p plot) y(v float64) int {
	frac := v / p.yMax
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return p.bottom - int(math.Round(frac*float64(p.bottom-p.top)))
}

// strokeLine draws a line with a square brush. A positive dash alternates
// dash-length runs of ink and gap.
func strokeLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA, width, dash int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for step := 0; ; step++ {
		if dash <= 0 || (step/dash)%2 == 0 {
			fillRect(img, x0, y0, width, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func fillRect(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	half := size / 2
	r := image.Rect(cx-half, cy-half, cx-half+size, cy-half+size).Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func drawText(img *image.RGBA, s string, x, y int) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(colText),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
