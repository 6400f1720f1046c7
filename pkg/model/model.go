package model

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// RecordType classifies an emission record by where the material sits relative to a sector
type RecordType string

const (
	RecordInput  RecordType = "input"  // Material flowing into the sector
	RecordOutput RecordType = "output" // Useful product leaving the sector
	RecordWaste  RecordType = "waste"  // Anything else leaving the sector
)

// EmissionType tells whether an emission value is the baseline or the efficiency-adjusted one
type EmissionType string

const (
	EmissionOriginal EmissionType = "original"
	EmissionModified EmissionType = "modified"
)

// ErrInvalidLink is returned when a link cannot be constructed from a row
var ErrInvalidLink = errors.New("invalid link")

var validate = validator.New()

// Link is a directed material flow between two named nodes
type Link struct {
	Source string  `json:"source" validate:"required"`
	Target string  `json:"target" validate:"required"`
	Value  float64 `json:"value"`
}

// NewLink validates the names and returns a link.
func NewLink(source, target string, value float64) (Link, error) {
	l := Link{Source: source, Target: target, Value: value}
	if err := validate.Struct(l); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Link{}, fmt.Errorf("%w: %s is %s (%q -> %q)", ErrInvalidLink, verrs[0].Field(), verrs[0].Tag(), source, target)
		}
		return Link{}, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	return l, nil
}

// IndexedLink is a link whose endpoints have been replaced by node index ids
type IndexedLink struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Value  float64 `json:"value"`
}

// EmissionRecord is one row of a sector's emissions table
type EmissionRecord struct {
	Type         RecordType   `json:"type"`
	Source       string       `json:"source"`
	Emissions    float64      `json:"emissions"`
	EmissionType EmissionType `json:"emission_type"`
}
