package model

import (
	"fmt"
	"math"
)

// Prediction is the best guess for one image. There is no rejection threshold.
type Prediction struct {
	Shape FacialShape
	// Confidence is the winning probability as a percentage in [0, 100].
	Confidence    float64
	Probabilities []float32
}

// ConfidenceString formats the confidence like "87.12%".
func (p Prediction) ConfidenceString() string {
	return fmt.Sprintf("%.2f%%", p.Confidence)
}

// Classify picks the argmax of probs. Ties go to the lowest index.
func Classify(probs []float32) (Prediction, error) {
	if len(probs) != NumShapes {
		return Prediction{}, fmt.Errorf("expected %d probabilities, got %d", NumShapes, len(probs))
	}

	maxIdx := 0
	maxVal := probs[0]
	for i, val := range probs {
		if math.IsNaN(float64(val)) {
			return Prediction{}, fmt.Errorf("probability %d is NaN", i)
		}
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	confidence := float64(maxVal) * 100
	confidence = math.Max(0, math.Min(100, confidence))

	return Prediction{
		Shape:         FacialShape(maxIdx),
		Confidence:    confidence,
		Probabilities: append([]float32(nil), probs...),
	}, nil
}

// Softmax turns logits into probabilities.
func Softmax(logits []float32) []float32 {
	out := make([]float32, len(logits))
	if len(logits) == 0 {
		return out
	}

	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxVal))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
