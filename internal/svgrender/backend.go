// Package svgrender is the concrete SVG-emitting device.Machine: it
// accumulates glyph and rule fragments into an SVG document and resolves
// color/papersize/raw-SVG specials.
package svgrender

import (
	"fmt"
	"log"
	"strings"

	"github.com/texsvg/texsvg/internal/device"
	"github.com/texsvg/texsvg/internal/fontdb"
)

// SpecialHandler inspects a \special command string and, if it recognizes
// it, applies its effect to b and returns true. Handlers are consulted in
// registration order; the first to return true wins.
type SpecialHandler func(b *Backend, command string) bool

// Backend is the SVG rendering state: the running document (content), the
// current and stacked color, the optional paper size, the raw-SVG staging
// buffer, and the device.Machine bookkeeping (position, fonts, stacks).
type Backend struct {
	content strings.Builder
	color   string
	colorStack []string

	paperWidth, paperHeight *float64
	svgDepth                uint8
	svgBuffer               strings.Builder

	position     device.Position
	positionStack []device.Position

	points     float64
	pointsSet  bool

	fonts   map[uint32]device.FontDef
	curFont uint32
	hasFont bool

	specials []SpecialHandler
	logger   *log.Logger
}

// New creates a Backend with the default special handlers registered in
// the required order: raw SVG, color, papersize.
func New(logger *log.Logger) *Backend {
	if logger == nil {
		logger = log.Default()
	}
	b := &Backend{
		color:    "black",
		svgDepth: 1,
		fonts:    make(map[uint32]device.FontDef),
		logger:   logger,
	}
	b.specials = []SpecialHandler{handleSVGRaw, handleColor, handlePapersize}
	return b
}

func (b *Backend) SetPreambleData(p device.PreambleData) {
	b.points = p.PointsPerDVIUnit()
	b.pointsSet = true
}

func (b *Backend) SetNbPages(int) {}

// BeginPage clears the position stack. Position itself is intentionally
// not reset; golden output comparisons against the legacy renderer depend
// on carrying position across page boundaries.
func (b *Backend) BeginPage([10]int32, int32) {
	b.positionStack = b.positionStack[:0]
}

func (b *Backend) EndPage() error {
	if len(b.positionStack) != 0 {
		return fmt.Errorf("svgrender: end_page with unbalanced position stack (depth %d)", len(b.positionStack))
	}
	b.flushSVGBuffer()
	return nil
}

func (b *Backend) Position() device.Position        { return b.position }
func (b *Backend) SetPosition(p device.Position)     { b.position = p }
func (b *Backend) PushPosition()                     { b.positionStack = append(b.positionStack, b.position) }

func (b *Backend) PopPosition() error {
	n := len(b.positionStack)
	if n == 0 {
		return fmt.Errorf("svgrender: pop on empty position stack")
	}
	b.position = b.positionStack[n-1]
	b.positionStack = b.positionStack[:n-1]
	return nil
}

func (b *Backend) AddFont(f device.FontDef) {
	b.fonts[f.Number] = f
}

func (b *Backend) SetFont(number uint32) error {
	if _, ok := b.fonts[number]; !ok {
		return fmt.Errorf("svgrender: fnt_num references undefined font %d", number)
	}
	b.curFont = number
	b.hasFont = true
	return nil
}

// PutText resolves the current font's metrics, maps each code to its SVG
// text content, appends one <text> element for the whole run, and returns
// the total advance in DVI units.
func (b *Backend) PutText(codes []uint32, fdb fontdb.FontDB) (int32, error) {
	if !b.pointsSet {
		return 0, fmt.Errorf("svgrender: put_text before preamble was consumed")
	}
	if !b.hasFont {
		return 0, fmt.Errorf("svgrender: put_text with no font selected")
	}
	fontDef := b.fonts[b.curFont]

	data, ok := fdb.Get(fontDef.Name)
	if !ok {
		b.logger.Printf("svgrender: font %q not found, falling back to cmb10", fontDef.Name)
		data, ok = fdb.Get("cmb10")
		if !ok {
			return 0, fmt.Errorf("svgrender: fallback font cmb10 not found")
		}
	}

	var entities strings.Builder
	var textWidth, textHeight, textDepth float64
	for _, c := range codes {
		metric, ok := data.Metrics[c]
		if !ok {
			metric, ok = data.Metrics[126]
			if !ok {
				b.logger.Printf("svgrender: no metric for code %d (or fallback 126) in font %q, skipping glyph", c, fontDef.Name)
				continue
			}
			b.logger.Printf("svgrender: no metric for code %d in font %q, using fallback 126", c, fontDef.Name)
		}
		textWidth += metric.Width
		if metric.Height > textHeight {
			textHeight = metric.Height
		}
		if metric.Depth > textDepth {
			textDepth = metric.Depth
		}
		entities.WriteString(codeToEntity(c))
	}

	designSizeOfFontDef := float64(fontDef.DesignSize)
	dviUnitsPerFontUnit := data.DesignSize / 1048576 * 65536 / 1048576
	fontsize := (data.DesignSize / 1048576) * float64(fontDef.ScaleFactor) / designSizeOfFontDef
	left := float64(b.position.H) * b.points
	bottom := float64(b.position.V) * b.points

	fmt.Fprintf(&b.content, `<text y="%s" x="%s" font-family="%s" fill="%s" font-size="%s">%s</text>`,
		formatFloat(bottom), formatFloat(left), fontDef.Name, b.color, formatFloat(fontsize), entities.String())

	advance := textWidth * dviUnitsPerFontUnit * float64(fontDef.ScaleFactor) / designSizeOfFontDef
	return int32(advance), nil
}

// PutRule emits a <rect> for a DVI rule: height a extends up from the
// reference point, width b extends right.
func (b *Backend) PutRule(heightDVI, widthDVI int32) {
	a := float64(heightDVI) * b.points
	bw := float64(widthDVI) * b.points
	left := float64(b.position.H) * b.points
	bottom := float64(b.position.V) * b.points

	fmt.Fprintf(&b.content, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s" stroke="none"/>`,
		formatFloat(left), formatFloat(bottom-a), formatFloat(bw), formatFloat(a), b.color)
}

func (b *Backend) HandleSpecial(command string) {
	if !strings.HasPrefix(command, "dvisvgm:raw") {
		b.flushSVGBuffer()
	}
	for _, h := range b.specials {
		if h(b, command) {
			return
		}
	}
	b.logger.Printf("svgrender: unhandled special %q", command)
}

// flushSVGBuffer substitutes position placeholders into the pending raw-SVG
// text, strips the begin/end picture markers, updates svg_depth, and
// commits the result to content.
func (b *Backend) flushSVGBuffer() {
	if b.svgBuffer.Len() == 0 {
		return
	}
	raw := b.svgBuffer.String()
	left := float64(b.position.H) * b.points
	top := float64(b.position.V) * b.points

	raw = strings.ReplaceAll(raw, "{?x}", formatFloat(left))
	raw = strings.ReplaceAll(raw, "{?y}", formatFloat(top))
	raw = strings.ReplaceAll(raw, "{?nl}", "\n")
	raw = strings.ReplaceAll(raw, "<svg beginpicture>", "")
	raw = strings.ReplaceAll(raw, "</svg endpicture>", "")

	delta := strings.Count(raw, "<svg>") - strings.Count(raw, "</svg>")
	b.svgDepth = uint8(int(b.svgDepth) + delta)

	b.content.WriteString(raw)
	b.svgBuffer.Reset()
}

// GetContent assembles the final SVG document. Flushes any pending
// raw-SVG buffer first, so a document that ends mid-buffer does not lose
// it.
func (b *Backend) GetContent() string {
	b.flushSVGBuffer()

	w, h := 100.0, 100.0
	if b.paperWidth != nil {
		w = *b.paperWidth
	}
	if b.paperHeight != nil {
		h = *b.paperHeight
	}

	return fmt.Sprintf(`<svg version="1.1" xmlns="http://www.w3.org/2000/svg"
     width="%spt" height="%spt"
     viewBox="-72 -72 %s %s">
  <style>
    text[font-family*="cmmi"] { font-family: "New Computer Modern Math"; font-style: italic; }
  </style>
  %s
</svg>
`, formatFloat(w), formatFloat(h), formatFloat(w), formatFloat(h), b.content.String())
}

func codeToEntity(c uint32) string {
	switch {
	case c <= 9:
		return fmt.Sprintf("&#%d;", 161+c)
	case c >= 10 && c <= 19:
		return fmt.Sprintf("&#%d;", 173+(c-10))
	case c == 20:
		return "&#8729;"
	case c >= 21 && c <= 32:
		return fmt.Sprintf("&#%d;", 184+(c-21))
	case c == 127:
		return "&#196;"
	default:
		return string(rune(c))
	}
}

func formatFloat(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.5f", f), "0"), ".")
}
