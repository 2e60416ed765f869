package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Layout is the channel ordering of the input tensor.
type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	Layout      Layout   `json:"layout"`
	Softmax     bool     `json:"softmax"`
}

// DefaultMetadata describes a Keras export: one 128x128 RGB image in, five probabilities out.
func DefaultMetadata() Metadata {
	return Metadata{
		InputShape:  []int64{1, 128, 128, 3},
		OutputShape: []int64{1, NumShapes},
		InputName:   "input",
		OutputName:  "output",
		Classes:     append([]string(nil), shapeLabels[:]...),
		ImageSize:   128,
		Layout:      LayoutNHWC,
	}
}

// LoadMetadata reads the metadata file. A missing file yields DefaultMetadata.
func LoadMetadata(path string) (Metadata, error) {
	metadata := DefaultMetadata()
	if path == "" {
		return metadata, nil
	}

	metaFile, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return metadata, nil
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := metadata.Validate(); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

// Validate checks the metadata against the fixed label set and tensor shapes.
func (m *Metadata) Validate() error {
	if len(m.Classes) != NumShapes {
		return fmt.Errorf("metadata lists %d classes, want %d", len(m.Classes), NumShapes)
	}
	for i, class := range m.Classes {
		if !strings.EqualFold(class, shapeLabels[i]) {
			return fmt.Errorf("metadata class %d is %q, want %q", i, class, shapeLabels[i])
		}
	}

	if m.Layout == "" {
		m.Layout = LayoutNHWC
	}
	if m.Layout != LayoutNHWC && m.Layout != LayoutNCHW {
		return fmt.Errorf("unsupported tensor layout %q", m.Layout)
	}
	if m.ImageSize <= 0 {
		return fmt.Errorf("invalid image size %d", m.ImageSize)
	}

	if want := int64(m.ImageSize) * int64(m.ImageSize) * 3; product(m.InputShape) != want {
		return fmt.Errorf("input shape %v does not hold one %dx%d RGB image", m.InputShape, m.ImageSize, m.ImageSize)
	}
	if product(m.OutputShape) != NumShapes {
		return fmt.Errorf("output shape %v does not hold %d probabilities", m.OutputShape, NumShapes)
	}
	if m.InputName == "" || m.OutputName == "" {
		return errors.New("input_name and output_name are required")
	}
	return nil
}

// InputSize is the number of float32 values one inference consumes.
func (m Metadata) InputSize() int {
	return int(product(m.InputShape))
}

func product(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, dim := range shape {
		n *= dim
	}
	return n
}
