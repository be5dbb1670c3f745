// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package scope

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/relabs-tech/cbwrist/internal/wrist"
)

const (
	plotWidth  = 640
	plotHeight = 240
	marginLeft = 64
	marginTop  = 20
	marginBot  = 20
	marginR    = 10
)

var (
	axisColors = [wrist.NumAxes]color.RGBA{
		wrist.Yaw:   {R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
		wrist.Roll:  {R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
		wrist.Pitch: {R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	}
	gridColor = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
)

// Plot renders samples of one channel as a strip chart, one trace per
// axis, oldest on the left.
func Plot(channel string, samples []Sample) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, plotWidth, plotHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(marginLeft, marginTop, plotWidth-marginR, plotHeight-marginBot)
	draw.Draw(img, image.Rect(area.Min.X, area.Min.Y, area.Max.X, area.Min.Y+1), &image.Uniform{gridColor}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(area.Min.X, area.Max.Y-1, area.Max.X, area.Max.Y), &image.Uniform{gridColor}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(area.Min.X, area.Min.Y, area.Min.X+1, area.Max.Y), &image.Uniform{gridColor}, image.Point{}, draw.Src)

	lo, hi := valueRange(samples)
	mid := (lo + hi) / 2
	yOf := func(v float64) float32 {
		frac := (v - lo) / (hi - lo)
		return float32(float64(area.Max.Y) - frac*float64(area.Dy()))
	}
	draw.Draw(img, image.Rect(area.Min.X, int(yOf(mid)), area.Max.X, int(yOf(mid))+1), &image.Uniform{gridColor}, image.Point{}, draw.Src)

	if len(samples) > 1 {
		step := float32(area.Dx()) / float32(len(samples)-1)
		for _, a := range wrist.Axes {
			z := vector.NewRasterizer(plotWidth, plotHeight)
			for i := 1; i < len(samples); i++ {
				x0 := float32(area.Min.X) + step*float32(i-1)
				x1 := float32(area.Min.X) + step*float32(i)
				stroke(z, x0, yOf(samples[i-1].Values[a]), x1, yOf(samples[i].Values[a]), 1.5)
			}
			z.Draw(img, img.Bounds(), &image.Uniform{axisColors[a]}, image.Point{})
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
	}
	label := func(x, y int, s string) {
		d.Dot = fixed.P(x, y)
		d.DrawString(s)
	}
	label(4, area.Min.Y+10, fmt.Sprintf("%.4g", hi))
	label(4, int(yOf(mid))+4, fmt.Sprintf("%.4g", mid))
	label(4, area.Max.Y, fmt.Sprintf("%.4g", lo))
	label(area.Min.X, 14, fmt.Sprintf("%s  n=%d", channel, len(samples)))

	x := area.Max.X - 3*56
	for _, a := range wrist.Axes {
		d.Src = &image.Uniform{axisColors[a]}
		label(x, 14, a.String())
		x += 56
	}
	return img
}

// valueRange returns a non-empty interval covering every value.
func valueRange(samples []Sample) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		for _, v := range s.Values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if len(samples) == 0 {
		return -1, 1
	}
	if hi-lo < 1e-9 {
		return lo - 1, hi + 1
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

// stroke adds a line segment of width w to z as a filled quad.
func stroke(z *vector.Rasterizer, x0, y0, x1, y1, w float32) {
	dx, dy := x1-x0, y1-y0
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	nx, ny := -dy/l*w/2, dx/l*w/2
	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
}
