package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/nearbyfinder/internal/domain/entities"
	apperrors "github.com/zatekoja/nearbyfinder/pkg/errors"
)

func TestResultsPanel_RenderEmpty(t *testing.T) {
	panel := NewResultsPanel(newTestMap())

	panel.Render(entities.ResultSet{}, entities.MarkerIndex{})

	rows := panel.Rows()
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Placeholder)
	assert.Equal(t, "No businesses found nearby.", rows[0].Name)

	err := panel.Select(1)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestResultsPanel_RenderRows(t *testing.T) {
	panel := NewResultsPanel(newTestMap())
	noAddress := place("c", "C", rating(0), 1, 1)
	noAddress.Vicinity = ""

	panel.Render(entities.ResultSet{
		place("a", "A", rating(4.76), 1, 1),
		place("b", "B", nil, 1, 1),
		noAddress,
	}, entities.MarkerIndex{})

	rows := panel.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "★ 4.8", rows[0].RatingLabel)
	assert.Equal(t, "A street", rows[0].Address)
	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, "No rating", rows[1].RatingLabel)
	assert.Equal(t, "No rating", rows[2].RatingLabel)
	assert.Equal(t, "Address not available", rows[2].Address)
}

func TestResultsPanel_Select(t *testing.T) {
	t.Run("focuses the marker when it exists", func(t *testing.T) {
		m := newTestMap()
		panel := NewResultsPanel(m)
		results := entities.ResultSet{place("a", "A", rating(4), 40.75, -73.98)}
		panel.Render(results, m.PlaceResultMarkers(results))

		require.NoError(t, panel.Select(1))

		state := m.State()
		assert.Equal(t, *results[0].Coordinate, state.Center)
		assert.Equal(t, 16, state.Zoom)
		require.NotNil(t, state.Overlay)
		assert.Equal(t, "A", state.Overlay.Name)
	})

	t.Run("pans when the marker is missing", func(t *testing.T) {
		m := newTestMap()
		panel := NewResultsPanel(m)
		results := entities.ResultSet{place("a", "A", rating(4), 40.75, -73.98)}
		panel.Render(results, entities.MarkerIndex{})

		require.NoError(t, panel.Select(1))

		state := m.State()
		assert.Equal(t, *results[0].Coordinate, state.Center)
		assert.Equal(t, 16, state.Zoom)
		assert.Nil(t, state.Overlay)
	})

	t.Run("pans when the marker was removed", func(t *testing.T) {
		m := newTestMap()
		panel := NewResultsPanel(m)
		results := entities.ResultSet{place("a", "A", rating(4), 40.75, -73.98)}
		panel.Render(results, m.PlaceResultMarkers(results))
		m.Recenter(DefaultLocation, LabelSearchArea)

		require.NoError(t, panel.Select(1))
		assert.Equal(t, *results[0].Coordinate, m.Center())
		assert.Nil(t, m.State().Overlay)
	})

	t.Run("does nothing without a coordinate", func(t *testing.T) {
		m := newTestMap()
		panel := NewResultsPanel(m)
		panel.Render(entities.ResultSet{{ID: "x", Name: "X"}}, entities.MarkerIndex{})

		require.NoError(t, panel.Select(1))

		state := m.State()
		assert.Equal(t, DefaultLocation, state.Center)
		assert.Equal(t, 14, state.Zoom)
	})

	t.Run("rejects out-of-range ranks", func(t *testing.T) {
		panel := NewResultsPanel(newTestMap())
		panel.Render(entities.ResultSet{place("a", "A", nil, 1, 1)}, entities.MarkerIndex{})

		for _, rank := range []int{0, 2, -1} {
			err := panel.Select(rank)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "rank %d", rank)
		}
	})
}

func TestResultsPanel_RenderHTML(t *testing.T) {
	panel := NewResultsPanel(newTestMap())
	panel.Render(entities.ResultSet{place("a", "Tom & Jerry's", rating(4.2), 1, 1)}, entities.MarkerIndex{})

	var buf bytes.Buffer
	require.NoError(t, panel.RenderHTML(&buf))

	html := buf.String()
	assert.Contains(t, html, `class="result-item"`)
	assert.Contains(t, html, "1. Tom &amp; Jerry&#39;s")
	assert.Contains(t, html, "★ 4.2")

	panel.Render(entities.ResultSet{}, nil)
	buf.Reset()
	require.NoError(t, panel.RenderHTML(&buf))
	assert.Contains(t, buf.String(), `<li class="result-empty">No businesses found nearby.</li>`)
}
