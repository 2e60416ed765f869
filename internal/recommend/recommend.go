package recommend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Brownie44l1/hairstyle-api/internal/model"
)

// Recommendation is the hairstyle text shown for one facial shape.
type Recommendation struct {
	Female string `json:"female"`
	Male   string `json:"male"`
}

// Table maps every facial shape to its recommendation.
type Table map[model.FacialShape]Recommendation

// Default returns the built-in table.
func Default() Table {
	return Table{
		model.Round: {
			Female: "Crinkled lob, old hollywood wave, etc",
			Male:   "Curly hair sut, taper cut, etc",
		},
		model.Oval: {
			Female: "Wispy long bob, wavy medium length, etc",
			Male:   "The crop, flow back, etc",
		},
		model.Square: {
			Female: "Curtain bangs, curly and short, etc",
			Male:   "Fullshave, buzzcut, etc",
		},
		model.Heart: {
			Female: "Long layered, semi-side swept bang, etc",
			Male:   "Temple fade with high top, middle part, etc",
		},
		model.Oblong: {
			Female: "Curly shag, center-parted ponytail, etc",
			Male:   "Tapered mullet, low comb fade over, etc",
		},
	}
}

// Merge returns a copy of t with overrides applied. Keys are shape labels in any case;
// empty fields keep the existing text.
func (t Table) Merge(overrides map[string]Recommendation) (Table, error) {
	merged := make(Table, len(t))
	for shape, rec := range t {
		merged[shape] = rec
	}

	for label, override := range overrides {
		shape, err := model.ParseShape(label)
		if err != nil {
			return nil, fmt.Errorf("recommendation override: %w", err)
		}
		rec := merged[shape]
		if override.Female != "" {
			rec.Female = override.Female
		}
		if override.Male != "" {
			rec.Male = override.Male
		}
		merged[shape] = rec
	}
	return merged, nil
}

// Validate fails unless every facial shape has both texts.
func (t Table) Validate() error {
	var errs []error
	for _, shape := range model.Shapes() {
		rec, ok := t[shape]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("missing recommendation for %s", shape.Key()))
		case strings.TrimSpace(rec.Female) == "":
			errs = append(errs, fmt.Errorf("empty female recommendation for %s", shape.Key()))
		case strings.TrimSpace(rec.Male) == "":
			errs = append(errs, fmt.Errorf("empty male recommendation for %s", shape.Key()))
		}
	}
	return errors.Join(errs...)
}

func (t Table) Lookup(shape model.FacialShape) (Recommendation, error) {
	rec, ok := t[shape]
	if !ok {
		return Recommendation{}, fmt.Errorf("no recommendation for %q", shape.Key())
	}
	return rec, nil
}
