package models

// StrokeKind tells pen strokes from highlighter strokes.
type StrokeKind string

const (
	StrokePen         StrokeKind = "pen"
	StrokeHighlighter StrokeKind = "highlighter"
)

// Point is one sampled position of a stroke.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one freehand line.
type Stroke struct {
	Points []Point    `json:"points"`
	Width  float64    `json:"width"`
	Color  int64      `json:"color"`
	Kind   StrokeKind `json:"kind"`
}

// Page is an ordered list of strokes.
type Page []Stroke
