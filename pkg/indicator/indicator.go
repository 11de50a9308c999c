// Package indicator computes the decorative globe shown next to the pose
// sliders: a unit circle with four dashed meridian/parallel curves that meet
// at a handle placed by the requested yaw and pitch.
package indicator

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// HandleReach keeps the handle inside the outline at extreme angles.
	HandleReach = 0.85
	Viewport    = 1.2

	HandleRadius = 0.05
	CenterRadius = 0.03

	Background = "#0E1117"
	Stroke     = "#3B82F6"
	Marker     = "white"
)

// Curve is a quadratic Bézier from Start through Control to End.
type Curve struct {
	Start   r2.Vec `json:"start"`
	Control r2.Vec `json:"control"`
	End     r2.Vec `json:"end"`
}

type Indicator struct {
	Yaw    int     `json:"yaw"`
	Pitch  int     `json:"pitch"`
	Handle r2.Vec  `json:"handle"`
	Curves []Curve `json:"curves"`
}

var (
	top    = r2.Vec{X: 0, Y: 1}
	bottom = r2.Vec{X: 0, Y: -1}
	left   = r2.Vec{X: -1, Y: 0}
	right  = r2.Vec{X: 1, Y: 0}
)

func Build(yaw, pitch int) Indicator {
	h := r2.Scale(HandleReach, r2.Vec{
		X: math.Sin(radians(yaw)),
		Y: math.Sin(radians(pitch)),
	})

	return Indicator{
		Yaw:    yaw,
		Pitch:  pitch,
		Handle: h,
		Curves: []Curve{
			{Start: h, Control: r2.Vec{X: h.X, Y: 1}, End: top},
			{Start: h, Control: r2.Vec{X: h.X, Y: -1}, End: bottom},
			{Start: h, Control: r2.Vec{X: -1, Y: h.Y}, End: left},
			{Start: h, Control: r2.Vec{X: 1, Y: h.Y}, End: right},
		},
	}
}

// Point evaluates the curve at t in [0, 1].
func (c Curve) Point(t float64) r2.Vec {
	u := 1 - t
	p := r2.Scale(u*u, c.Start)
	p = r2.Add(p, r2.Scale(2*u*t, c.Control))
	return r2.Add(p, r2.Scale(t*t, c.End))
}

// SVG renders the indicator in a y-up coordinate system over the
// [-Viewport, Viewport] square.
func (ind Indicator) SVG(size int) string {
	if size <= 0 {
		size = 400
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="%s %s %s %s">`,
		size, size, num(-Viewport), num(-Viewport), num(2*Viewport), num(2*Viewport))
	fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`,
		num(-Viewport), num(-Viewport), num(2*Viewport), num(2*Viewport), Background)
	b.WriteString(`<g transform="scale(1,-1)">`)

	b.WriteString(`<path fill="none" stroke="` + Stroke + `" stroke-width="0.02" stroke-dasharray="0.06 0.04" opacity="0.8" d="`)
	for i, c := range ind.Curves {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "M%s %s Q%s %s %s %s",
			num(c.Start.X), num(c.Start.Y),
			num(c.Control.X), num(c.Control.Y),
			num(c.End.X), num(c.End.Y))
	}
	b.WriteString(`"/>`)

	fmt.Fprintf(&b, `<circle cx="0" cy="0" r="1" fill="none" stroke="%s" stroke-width="0.04"/>`, Stroke)
	fmt.Fprintf(&b, `<circle cx="%s" cy="%s" r="%s" fill="%s"/>`, num(ind.Handle.X), num(ind.Handle.Y), num(HandleRadius), Marker)
	fmt.Fprintf(&b, `<circle cx="0" cy="0" r="%s" fill="%s"/>`, num(CenterRadius), Marker)

	b.WriteString(`</g></svg>`)
	return b.String()
}

func radians(deg int) float64 {
	return float64(deg) * math.Pi / 180
}

func num(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		return "0"
	}
	return s
}
