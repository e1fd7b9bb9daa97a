package tours

import (
	"errors"
	"fmt"
	"strings"
)

type Category string

const (
	CategoryPackage  Category = "package"
	CategoryTour     Category = "tour"
	CategoryTrekking Category = "trekking"
)

// Categories lists every category in summary order.
var Categories = []Category{CategoryPackage, CategoryTour, CategoryTrekking}

const (
	MaxIncludes          = 8
	MaxDescriptionLength = 300
	MaxDifficultyLength  = 50
	MaxDurationLength    = 100
)

// ErrNotFound is returned when no tour matches a lookup.
var ErrNotFound = errors.New("tour not found")

// TourRecord is one scraped tour page.
type TourRecord struct {
	Name        string   `json:"name"`
	Price       string   `json:"price,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Description string   `json:"description,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Includes    []string `json:"includes"`
	URL         string   `json:"url"`
	Category    Category `json:"category"`
}

// ParseError reports a page whose HTML could not be turned into a record.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CategoryFromPath infers the category of a tour page from its URL path.
func CategoryFromPath(path string) Category {
	switch {
	case strings.Contains(path, "/paquete") || strings.Contains(path, "/huaraz-"):
		return CategoryPackage
	case strings.Contains(path, "/trekking") || strings.Contains(path, "/trek"):
		return CategoryTrekking
	default:
		return CategoryTour
	}
}
