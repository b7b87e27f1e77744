package svgrender

import (
	"strings"
	"testing"

	"github.com/texsvg/texsvg/internal/device"
	"github.com/texsvg/texsvg/internal/fontdb"
)

type fakeFontDB struct {
	fonts map[string]fontdb.FontData
}

func (f fakeFontDB) Get(name string) (fontdb.FontData, bool) {
	d, ok := f.fonts[name]
	return d, ok
}

func newFakeFontDB() fakeFontDB {
	return fakeFontDB{fonts: map[string]fontdb.FontData{
		"cmr10": {
			DesignSize: 10 * 1048576,
			Metrics: map[uint32]fontdb.CharMetric{
				'H': {Width: 655360, Height: 655360, Depth: 0},
				'i': {Width: 327680, Height: 327680, Depth: 0},
			},
		},
	}}
}

func emptyDoc() *Backend {
	b := New(nil)
	b.SetPreambleData(device.PreambleData{Num: 25400000, Den: 473628672, Mag: 1000})
	return b
}

func TestEmptyDocumentHasNoTextOrRect(t *testing.T) {
	b := emptyDoc()
	content := b.GetContent()
	if strings.Contains(content, "<text") || strings.Contains(content, "<rect") {
		t.Fatalf("empty document has text/rect: %s", content)
	}
	if !strings.Contains(content, "<svg") {
		t.Fatalf("missing outer svg shell: %s", content)
	}
}

func TestPutTextEmitsTextElement(t *testing.T) {
	b := emptyDoc()
	b.AddFont(device.FontDef{Number: 0, ScaleFactor: 10 * 65536, DesignSize: 10 * 1048576, Name: "cmr10"})
	if err := b.SetFont(0); err != nil {
		t.Fatalf("SetFont: %v", err)
	}
	fdb := newFakeFontDB()
	if _, err := b.PutText([]uint32{'H', 'i'}, fdb); err != nil {
		t.Fatalf("PutText: %v", err)
	}
	content := b.GetContent()
	if !strings.Contains(content, `fill="black"`) {
		t.Fatalf("missing default fill: %s", content)
	}
	if !strings.Contains(content, `font-family="cmr10"`) {
		t.Fatalf("missing font-family: %s", content)
	}
}

func TestPutRuleEmitsRect(t *testing.T) {
	b := emptyDoc()
	b.PutRule(100, 1000)
	content := b.GetContent()
	if !strings.Contains(content, "<rect") {
		t.Fatalf("missing rect: %s", content)
	}
}

func TestColorPushPop(t *testing.T) {
	b := emptyDoc()
	b.HandleSpecial("color push rgb 1 0 0")
	if b.color != "#ff0000" {
		t.Fatalf("color after push = %q, want #ff0000", b.color)
	}
	b.HandleSpecial("color pop")
	if b.color != "black" {
		t.Fatalf("color after pop = %q, want black", b.color)
	}
}

func TestPapersizeSetsDimensions(t *testing.T) {
	b := emptyDoc()
	b.HandleSpecial("papersize=200pt,150pt")
	content := b.GetContent()
	if !strings.Contains(content, `width="200pt"`) || !strings.Contains(content, `height="150pt"`) {
		t.Fatalf("papersize not applied: %s", content)
	}
}

func TestRawSVGBufferFlushesBeforeNextSpecial(t *testing.T) {
	b := emptyDoc()
	b.SetPosition(device.Position{H: 10, V: 20})
	b.HandleSpecial(`dvisvgm:raw <g class="x"/>`)
	b.HandleSpecial("color push rgb 0 1 0")
	content := b.GetContent()
	if !strings.Contains(content, `<g class="x"/>`) {
		t.Fatalf("raw svg fragment missing after flush: %s", content)
	}
}

func TestRawSVGBufferFlushesAtEndPage(t *testing.T) {
	b := emptyDoc()
	b.HandleSpecial("dvisvgm:raw <g class=\"y\"/>")
	if err := b.EndPage(); err != nil {
		t.Fatalf("EndPage: %v", err)
	}
	if !strings.Contains(b.GetContent(), `<g class="y"/>`) {
		t.Fatalf("raw svg fragment not flushed at end_page")
	}
}

func TestUnbalancedPositionStackFailsEndPage(t *testing.T) {
	b := emptyDoc()
	b.PushPosition()
	if err := b.EndPage(); err == nil {
		t.Fatalf("expected EndPage to fail with a non-empty position stack")
	}
}

func TestCodeToEntityTable(t *testing.T) {
	cases := []struct {
		code uint32
		want string
	}{
		{0, "&#161;"},
		{9, "&#170;"},
		{10, "&#173;"},
		{20, "&#8729;"},
		{21, "&#184;"},
		{127, "&#196;"},
	}
	for _, c := range cases {
		if got := codeToEntity(c.code); got != c.want {
			t.Errorf("codeToEntity(%d) = %q, want %q", c.code, got, c.want)
		}
	}
}
