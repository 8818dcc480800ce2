package whiteboard

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/dshills/ideshell/internal/workbench/dom"
)

// CanvasSelectors are the containers the canvas is mounted into, most
// specific first.
var CanvasSelectors = []string{
	".mo-editor",
	"[data-testid=editor]",
	".editor",
	"body",
}

// renderShape builds the element for s. Every shape is an absolutely
// positioned box; lines and arrows are rotated zero-height boxes.
func renderShape(doc *dom.Document, s Shape) *html.Node {
	attrs := map[string]string{
		"class":      "wb-shape wb-shape--" + string(s.Tool),
		"data-shape": s.ID,
	}

	switch s.Tool {
	case Line, Arrow:
		el := doc.CreateElement("div", attrs)
		a := s.Start()
		doc.SetAttr(el, "style", style(
			"left", px(a.X), "top", px(a.Y),
			"width", fmt.Sprintf("%.0fpx", s.Length()), "height", "0",
			"border-top", fmt.Sprintf("%dpx solid %s", s.Width, s.Color),
			"transform", fmt.Sprintf("rotate(%.1fdeg)", s.Angle()),
			"transform-origin", "0 0",
		))
		if s.Tool == Arrow {
			head := doc.CreateElement("span", map[string]string{"class": "wb-arrowhead"})
			doc.SetAttr(head, "style", style(
				"right", "-6px", "top", "-6px",
				"border-left", "8px solid "+s.Color,
				"border-top", "5px solid transparent",
				"border-bottom", "5px solid transparent",
			))
			doc.Append(el, head)
		}
		return el

	case Pen:
		r := s.Bounds()
		el := doc.CreateElement("div", attrs)
		doc.SetAttr(el, "style", style(
			"left", px(r.X), "top", px(r.Y), "width", px(r.W), "height", px(r.H),
		))
		for i := 1; i < len(s.Points); i++ {
			seg := Shape{Tool: Line, Color: s.Color, Width: s.Width,
				Points: []Point{relative(s.Points[i-1], r), relative(s.Points[i], r)}}
			part := renderShape(doc, seg)
			doc.SetAttr(part, "class", "wb-segment")
			doc.SetAttr(part, "data-shape", "")
			doc.Append(el, part)
		}
		return el

	case TextTool:
		el := doc.CreateElement("div", attrs)
		p := s.Start()
		doc.SetAttr(el, "style", style("left", px(p.X), "top", px(p.Y), "color", s.Color))
		doc.SetText(el, s.Text)
		return el
	}

	r := s.Bounds()
	decl := []string{
		"left", px(r.X), "top", px(r.Y), "width", px(r.W), "height", px(r.H),
		"border", fmt.Sprintf("%dpx solid %s", s.Width, s.Color),
	}
	if s.Tool == Circle {
		decl = append(decl, "border-radius", "50%")
	}
	el := doc.CreateElement("div", attrs)
	doc.SetAttr(el, "style", style(decl...))
	return el
}

func relative(p Point, r Rect) Point {
	return Point{X: p.X - r.X, Y: p.Y - r.Y}
}

func px(n int) string {
	return fmt.Sprintf("%dpx", n)
}

// style joins property/value pairs, always positioning absolutely.
func style(pairs ...string) string {
	var b strings.Builder
	b.WriteString("position:absolute")
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, ";%s:%s", pairs[i], pairs[i+1])
	}
	return b.String()
}
