package services

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	apperrors "github.com/zatekoja/nearbyfinder/pkg/errors"
)

// Row texts shown in the results list.
const (
	EmptyResultsText    = "No businesses found nearby."
	NoRatingText        = "No rating"
	AddressUnavailable  = "Address not available"
	ratingBadgeTemplate = "★ %.1f"
)

//go:embed templates/results.html
var templateFS embed.FS

var resultsTemplate = template.Must(template.New("results.html").ParseFS(templateFS, "templates/results.html"))

// ResultsPanel renders a ResultSet as ranked rows and routes row clicks to
// the map. It is not safe for concurrent use; AppController serializes access.
type ResultsPanel struct {
	mapView *MapView
	places  entities.ResultSet
	index   entities.MarkerIndex
	rows    []entities.ResultRow
}

// NewResultsPanel creates an empty panel bound to mapView
func NewResultsPanel(mapView *MapView) *ResultsPanel {
	return &ResultsPanel{mapView: mapView}
}

// Render replaces every row. An empty set renders a single placeholder row.
func (p *ResultsPanel) Render(results entities.ResultSet, index entities.MarkerIndex) {
	p.places = results
	p.index = index

	if len(results) == 0 {
		p.rows = []entities.ResultRow{{Name: EmptyResultsText, Placeholder: true}}
		return
	}

	p.rows = make([]entities.ResultRow, 0, len(results))
	for i, place := range results {
		p.rows = append(p.rows, entities.ResultRow{
			Rank:        i + 1,
			Name:        place.Name,
			RatingLabel: RatingLabel(place),
			Address:     AddressLabel(place),
			PlaceKey:    place.Key(),
		})
	}
}

// Select handles a click on the row with the given 1-based rank. It focuses
// the place's marker, or pans to its coordinate when the marker is gone or
// was never placed.
func (p *ResultsPanel) Select(rank int) error {
	if rank < 1 || rank > len(p.places) {
		return apperrors.NewValidationError(fmt.Sprintf("no result row with rank %d", rank))
	}
	place := p.places[rank-1]

	if id, ok := p.index[place.Key()]; ok && place.Key() != "" {
		if err := p.mapView.FocusOn(id); err == nil {
			return nil
		}
	}
	if place.Coordinate != nil {
		p.mapView.PanTo(*place.Coordinate)
	}
	return nil
}

// Rows returns a copy of the rendered rows
func (p *ResultsPanel) Rows() []entities.ResultRow {
	rows := make([]entities.ResultRow, len(p.rows))
	copy(rows, p.rows)
	return rows
}

// RenderHTML writes the rendered rows as an HTML list fragment
func (p *ResultsPanel) RenderHTML(w io.Writer) error {
	return RenderRowsHTML(w, p.rows)
}

// RenderRowsHTML writes rows as an HTML list fragment
func RenderRowsHTML(w io.Writer, rows []entities.ResultRow) error {
	return resultsTemplate.Execute(w, rows)
}

// RatingLabel formats a place's rating badge. A missing or zero rating reads
// "No rating".
func RatingLabel(place entities.Place) string {
	if place.Rating == nil || *place.Rating == 0 {
		return NoRatingText
	}
	return fmt.Sprintf(ratingBadgeTemplate, *place.Rating)
}

// AddressLabel returns the vicinity or its placeholder
func AddressLabel(place entities.Place) string {
	if place.Vicinity == "" {
		return AddressUnavailable
	}
	return place.Vicinity
}
