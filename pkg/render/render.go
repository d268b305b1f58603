// Package render provides output renderers for commitq's visualization patterns.
package render

import "github.com/dkoosis/commitq/pkg/pattern"

// Renderer converts patterns to formatted output.
type Renderer interface {
	Render(patterns []pattern.Pattern) string
}
