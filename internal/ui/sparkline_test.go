package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestRenderSparkline_Empty(t *testing.T) {
	assert.Empty(t, RenderSparkline(nil, 10))
	assert.Empty(t, RenderSparkline([]float64{1, 2}, 0))
}

func TestRenderSparkline_Width(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out := RenderSparkline(data, 4)
	assert.Equal(t, 4, lipgloss.Width(out))
}

func TestRenderSparkline_Levels(t *testing.T) {
	out := RenderSparkline([]float64{10, 80}, 10)
	assert.Contains(t, out, "▁")
	assert.Contains(t, out, "█")
}

func TestRenderSparkline_FlatUsesMiddleLevel(t *testing.T) {
	out := RenderSparkline([]float64{20, 20, 20}, 10)
	assert.Contains(t, out, "▅▅▅")
}

func TestRenderSparkline_OfflineGap(t *testing.T) {
	out := RenderSparkline([]float64{10, -1, 30}, 10)
	assert.Contains(t, out, "▁ █")
}

func TestRenderSparkline_AllOffline(t *testing.T) {
	out := RenderSparkline([]float64{-1, -1}, 10)
	assert.Equal(t, 2, lipgloss.Width(out))
}
