package whiteboard

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrUnknownTool is returned by SetTool for names outside Tools.
var ErrUnknownTool = errors.New("whiteboard: unknown tool")

// Tool is a drawing tool.
type Tool string

const (
	Pen       Tool = "pen"
	Line      Tool = "line"
	Rectangle Tool = "rectangle"
	Circle    Tool = "circle"
	Arrow     Tool = "arrow"
	TextTool  Tool = "text"
)

// Tools lists the tools in toolbar order.
var Tools = []Tool{Pen, Line, Rectangle, Circle, Arrow, TextTool}

// Point is a canvas coordinate in pixels.
type Point struct {
	X, Y int
}

// Rect is an axis-aligned box.
type Rect struct {
	X, Y, W, H int
}

// Shape is one finished or in-progress drawing.
type Shape struct {
	ID    string
	Tool  Tool
	Color string
	Width int

	// Points holds the pen path, or the start and end of the other tools.
	Points []Point

	// Text is set for text shapes.
	Text string
}

// Start returns the first point.
func (s Shape) Start() Point {
	if len(s.Points) == 0 {
		return Point{}
	}
	return s.Points[0]
}

// End returns the last point.
func (s Shape) End() Point {
	if len(s.Points) == 0 {
		return Point{}
	}
	return s.Points[len(s.Points)-1]
}

// Bounds returns the smallest box holding every point.
func (s Shape) Bounds() Rect {
	if len(s.Points) == 0 {
		return Rect{}
	}
	minX, minY := s.Points[0].X, s.Points[0].Y
	maxX, maxY := minX, minY
	for _, p := range s.Points[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Length returns the distance from start to end.
func (s Shape) Length() float64 {
	a, b := s.Start(), s.End()
	return math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
}

// Angle returns the direction from start to end in degrees.
func (s Shape) Angle() float64 {
	a, b := s.Start(), s.End()
	return math.Atan2(float64(b.Y-a.Y), float64(b.X-a.X)) * 180 / math.Pi
}

// Board holds the shapes of one canvas and the pointer state that builds
// them. Nothing is persisted and there is no undo.
type Board struct {
	mu      sync.Mutex
	tool    Tool
	color   string
	width   int
	text    string
	shapes  []Shape
	draft   *Shape
	entropy io.Reader
}

// NewBoard returns an empty board with the pen selected.
func NewBoard() *Board {
	return &Board{
		tool:    Pen,
		color:   "#1e1e1e",
		width:   2,
		text:    "Text",
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// SetTool selects the tool for the next stroke. A stroke in progress is
// dropped.
func (b *Board) SetTool(t Tool) error {
	for _, known := range Tools {
		if known == t {
			b.mu.Lock()
			b.tool = t
			b.draft = nil
			b.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTool, t)
}

// Tool returns the selected tool.
func (b *Board) Tool() Tool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tool
}

// SetColor sets the stroke color for new shapes.
func (b *Board) SetColor(color string) {
	b.mu.Lock()
	b.color = color
	b.mu.Unlock()
}

// SetText sets the label placed by the text tool.
func (b *Board) SetText(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
}

// Down starts a stroke at p. The text tool places its shape immediately
// and returns it with done set.
func (b *Board) Down(p Point) (s Shape, done bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	shape := Shape{
		ID:     b.newID(),
		Tool:   b.tool,
		Color:  b.color,
		Width:  b.width,
		Points: []Point{p},
	}
	if b.tool == TextTool {
		shape.Text = b.text
		b.shapes = append(b.shapes, shape)
		b.draft = nil
		return shape, true
	}
	b.draft = &shape
	return shape, false
}

// Move extends the stroke in progress. ok is false when there is none.
func (b *Board) Move(p Point) (draft Shape, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.draft == nil {
		return Shape{}, false
	}
	b.extend(p)
	return b.copyDraft(), true
}

// Up finishes the stroke in progress at p. Strokes without extent are
// discarded; ok reports whether a shape was added.
func (b *Board) Up(p Point) (s Shape, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.draft == nil {
		return Shape{}, false
	}
	b.extend(p)
	shape := b.copyDraft()
	b.draft = nil

	bounds := shape.Bounds()
	if bounds.W == 0 && bounds.H == 0 {
		return Shape{}, false
	}
	b.shapes = append(b.shapes, shape)
	return shape, true
}

// Draft returns the stroke in progress.
func (b *Board) Draft() (Shape, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.draft == nil {
		return Shape{}, false
	}
	return b.copyDraft(), true
}

// Shapes returns the finished shapes in drawing order.
func (b *Board) Shapes() []Shape {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Shape, len(b.shapes))
	copy(out, b.shapes)
	return out
}

// Clear removes every shape and any stroke in progress.
func (b *Board) Clear() {
	b.mu.Lock()
	b.shapes = nil
	b.draft = nil
	b.mu.Unlock()
}

// extend adds p to the pen path or moves the end point of the other tools.
func (b *Board) extend(p Point) {
	d := b.draft
	if d.Tool == Pen {
		if d.End() != p {
			d.Points = append(d.Points, p)
		}
		return
	}
	d.Points = []Point{d.Start(), p}
}

func (b *Board) copyDraft() Shape {
	s := *b.draft
	s.Points = append([]Point(nil), b.draft.Points...)
	return s
}

func (b *Board) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), b.entropy).String()
}
