// Package fontdb declares the lookup interface the rendering backend uses
// to resolve glyph metrics, plus a small fallback wrapper that serves a
// built-in entry for cmb10, the font the backend falls back to on its own.
package fontdb

// CharMetric is the subset of TFM data the backend needs per glyph.
type CharMetric struct {
	Width  float64
	Height float64
	Depth  float64
}

// FontData is the subset of TFM data the backend needs per font.
type FontData struct {
	DesignSize float64
	Metrics    map[uint32]CharMetric
}

// FontDB resolves a font's on-disk filename to its metrics. TFM parsing
// itself is out of scope; callers supply an implementation backed by
// whatever metric source they have.
type FontDB interface {
	Get(name string) (FontData, bool)
}

// Fallback wraps another FontDB and guarantees that the lookup of "cmb10",
// the backend's last-resort font, always succeeds. Fonts resolved from
// Inner are returned unchanged; a glyph at code 126 is only guaranteed in
// the built-in cmb10 entry, not in them.
type Fallback struct {
	Inner FontDB
}

// Get defers to Inner. When Inner has no entry for "cmb10", Get serves a
// minimal built-in one whose only metric is code 126; any other name Inner
// lacks comes back empty. Retrying with "cmb10" and with code 126 is done
// by the backend.
func (f Fallback) Get(name string) (FontData, bool) {
	if f.Inner != nil {
		if data, ok := f.Inner.Get(name); ok {
			return data, true
		}
	}
	if name == "cmb10" {
		return builtinCMB10, true
	}
	return FontData{}, false
}

// builtinCMB10 is a minimal stand-in used only when no real metric source
// has an entry for cmb10 itself — enough to keep rendering going rather
// than dropping glyphs silently when the supplied FontDB is incomplete.
var builtinCMB10 = FontData{
	DesignSize: 10 * 1048576, // 10pt in the legacy fixed-point design-size unit
	Metrics: map[uint32]CharMetric{
		126: {Width: 0, Height: 0, Depth: 0},
	},
}
