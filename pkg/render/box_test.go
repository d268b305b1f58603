package render

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestBox_Basic(t *testing.T) {
	box := NewBox(40).
		Title("TEST", lipgloss.NewStyle()).
		AddLines("Hello, World!")

	result := box.String()

	if !strings.Contains(result, "TEST") {
		t.Error("expected box to contain title 'TEST'")
	}
	if !strings.Contains(result, "Hello, World!") {
		t.Error("expected box to contain content")
	}
	if !strings.Contains(result, "╭") || !strings.Contains(result, "╯") {
		t.Error("expected rounded corners by default")
	}
}

func TestBox_Disabled(t *testing.T) {
	result := NewBox(40).
		Title("TEST", lipgloss.NewStyle()).
		AddLines("Content").
		Disable().
		String()

	if result != "TEST\nContent" {
		t.Errorf("expected plain content, got %q", result)
	}
}

func TestBox_WidthIncludesBorders(t *testing.T) {
	result := NewBox(30).AddLines("x").String()

	for _, line := range strings.Split(result, "\n") {
		if w := lipgloss.Width(line); w != 30 {
			t.Errorf("expected line width 30, got %d: %q", w, line)
		}
	}
}

func TestBox_NormalBorder(t *testing.T) {
	result := NewBox(30).Border(lipgloss.NormalBorder()).AddLines("x").String()

	if !strings.Contains(result, "┌") {
		t.Errorf("expected square corners, got:\n%s", result)
	}
}
