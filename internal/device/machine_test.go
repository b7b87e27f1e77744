package device

import (
	"fmt"
	"testing"

	"github.com/texsvg/texsvg/internal/dvi"
	"github.com/texsvg/texsvg/internal/fontdb"
)

// recordingMachine is a test double that records every call instead of
// rendering anything, so the Executor's dispatch and bookkeeping can be
// tested independently of the SVG backend.
type recordingMachine struct {
	pos          Position
	posStack     []Position
	calls        []string
	putTextRuns  [][]uint32
	nextAdvance  int32
	font         uint32
	definedFonts map[uint32]bool
}

func newRecordingMachine() *recordingMachine {
	return &recordingMachine{definedFonts: map[uint32]bool{}}
}

func (m *recordingMachine) SetPreambleData(PreambleData)            { m.calls = append(m.calls, "preamble") }
func (m *recordingMachine) SetNbPages(int)                          {}
func (m *recordingMachine) BeginPage([10]int32, int32)              { m.calls = append(m.calls, "begin_page") }
func (m *recordingMachine) EndPage() error                          { m.calls = append(m.calls, "end_page"); return nil }
func (m *recordingMachine) Position() Position                      { return m.pos }
func (m *recordingMachine) SetPosition(p Position)                  { m.pos = p }
func (m *recordingMachine) PushPosition()                           { m.posStack = append(m.posStack, m.pos) }
func (m *recordingMachine) PopPosition() error {
	n := len(m.posStack)
	if n == 0 {
		return fmt.Errorf("pop on empty stack")
	}
	m.pos = m.posStack[n-1]
	m.posStack = m.posStack[:n-1]
	return nil
}
func (m *recordingMachine) AddFont(f FontDef)    { m.definedFonts[f.Number] = true }
func (m *recordingMachine) SetFont(n uint32) error {
	if !m.definedFonts[n] {
		return fmt.Errorf("undefined font %d", n)
	}
	m.font = n
	return nil
}
func (m *recordingMachine) PutText(codes []uint32, _ fontdb.FontDB) (int32, error) {
	m.putTextRuns = append(m.putTextRuns, append([]uint32(nil), codes...))
	return m.nextAdvance, nil
}
func (m *recordingMachine) PutRule(int32, int32) { m.calls = append(m.calls, "put_rule") }
func (m *recordingMachine) HandleSpecial(string) { m.calls = append(m.calls, "special") }

func TestExecutorBatchesConsecutiveSetChars(t *testing.T) {
	m := newRecordingMachine()
	m.definedFonts[0] = true
	e := NewExecutor(m, nil)

	ops := []dvi.Op{
		dvi.FntNum{Number: 0},
		dvi.SetChar{Code: 'H'},
		dvi.SetChar{Code: 'i'},
		dvi.Right{Amount: 5},
		dvi.SetChar{Code: '!'},
	}
	if err := e.Run(ops); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(m.putTextRuns) != 2 {
		t.Fatalf("got %d PutText calls, want 2 (got %v)", len(m.putTextRuns), m.putTextRuns)
	}
	if string(runeString(m.putTextRuns[0])) != "Hi" {
		t.Errorf("first run = %v, want H,i", m.putTextRuns[0])
	}
}

func runeString(codes []uint32) []rune {
	out := make([]rune, len(codes))
	for i, c := range codes {
		out[i] = rune(c)
	}
	return out
}

func TestExecutorUnknownFontIsFatal(t *testing.T) {
	m := newRecordingMachine()
	e := NewExecutor(m, nil)
	err := e.Run([]dvi.Op{dvi.FntNum{Number: 3}})
	if err == nil {
		t.Fatalf("expected an error referencing an undefined font")
	}
}

func TestExecutorPopOnEmptyStackIsFatal(t *testing.T) {
	m := newRecordingMachine()
	e := NewExecutor(m, nil)
	err := e.Run([]dvi.Op{dvi.Pop{}})
	if err == nil {
		t.Fatalf("expected an error for pop on empty position stack")
	}
}

func TestExecutorWZeroReusesStoredAmount(t *testing.T) {
	m := newRecordingMachine()
	e := NewExecutor(m, nil)
	ops := []dvi.Op{
		dvi.W{Amount: 10, UseStored: false},
		dvi.W{UseStored: true},
	}
	if err := e.Run(ops); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.pos.H != 20 {
		t.Errorf("position.H = %d, want 20 (10 + stored 10)", m.pos.H)
	}
}

func TestExecutorPushPopBalances(t *testing.T) {
	m := newRecordingMachine()
	e := NewExecutor(m, nil)
	ops := []dvi.Op{
		dvi.Right{Amount: 5},
		dvi.Push{},
		dvi.Right{Amount: 100},
		dvi.Pop{},
	}
	if err := e.Run(ops); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.pos.H != 5 {
		t.Errorf("position.H after push/move/pop = %d, want 5", m.pos.H)
	}
}

func TestPreambleScalingFormula(t *testing.T) {
	p := PreambleData{Num: 25400000, Den: 473628672, Mag: 1000}
	ppu := p.PointsPerDVIUnit()
	if ppu <= 0 {
		t.Fatalf("PointsPerDVIUnit = %f, want > 0", ppu)
	}
}
