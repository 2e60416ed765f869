package model

import (
	"fmt"
	"strings"
)

// FacialShape is one of the five classes the classifier can emit.
type FacialShape int

// Order matches the classifier's output vector.
const (
	Heart FacialShape = iota
	Oblong
	Oval
	Round
	Square
)

// NumShapes is the length of the model's probability vector.
const NumShapes = 5

var shapeLabels = [NumShapes]string{"Heart", "Oblong", "Oval", "Round", "Square"}

// Shapes returns every facial shape in output order.
func Shapes() []FacialShape {
	return []FacialShape{Heart, Oblong, Oval, Round, Square}
}

// String returns the display label, e.g. "Round".
func (s FacialShape) String() string {
	if !s.Valid() {
		return fmt.Sprintf("FacialShape(%d)", int(s))
	}
	return shapeLabels[s]
}

// Key is the lowercase label used for recommendation and file lookups.
func (s FacialShape) Key() string {
	return strings.ToLower(s.String())
}

func (s FacialShape) Valid() bool {
	return s >= 0 && int(s) < NumShapes
}

// ParseShape accepts a label in any case.
func ParseShape(label string) (FacialShape, error) {
	for i, l := range shapeLabels {
		if strings.EqualFold(l, strings.TrimSpace(label)) {
			return FacialShape(i), nil
		}
	}
	return 0, fmt.Errorf("unknown facial shape %q", label)
}
