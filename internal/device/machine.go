// Package device defines the rendering-state machine DVI opcodes drive, and
// the Executor that walks a decoded opcode sequence and applies it.
package device

import (
	"fmt"

	"github.com/texsvg/texsvg/internal/dvi"
	"github.com/texsvg/texsvg/internal/fontdb"
)

// Position is a point in DVI units.
type Position struct {
	H, V int32
}

// PreambleData is the subset of the DVI preamble needed to derive
// points-per-DVI-unit.
type PreambleData struct {
	Num, Den, Mag uint32
}

// PointsPerDVIUnit computes the conversion factor from the preamble fields.
func (p PreambleData) PointsPerDVIUnit() float64 {
	return float64(p.Mag) * float64(p.Num) / (1000 * float64(p.Den)) * 72.27 / 100000 / 2.54
}

// FontDef mirrors a DVI fnt_def opcode.
type FontDef struct {
	Number      uint32
	ScaleFactor uint32
	DesignSize  uint32
	Name        string
}

// Machine is the set of state transitions a DVI opcode stream drives. The
// SVG backend is the one concrete implementation; the interface exists so
// the executor can be tested against a recording fake.
type Machine interface {
	SetPreambleData(PreambleData)
	SetNbPages(n int)
	BeginPage(counters [10]int32, prev int32)
	EndPage() error
	Position() Position
	SetPosition(Position)
	PushPosition()
	PopPosition() error
	AddFont(FontDef)
	SetFont(number uint32) error
	PutText(codes []uint32, fdb fontdb.FontDB) (advanceDVI int32, err error)
	PutRule(heightDVI, widthDVI int32)
	HandleSpecial(command string)
}

// Executor walks a decoded opcode sequence in order and dispatches each
// opcode to Machine, maintaining the h/v bookkeeping and text-run batching
// the opcodes don't carry on their own: consecutive set_char/set opcodes
// with no intervening opcode are batched into a single PutText call so the
// backend emits one <text> element per run instead of one per glyph.
type Executor struct {
	machine Machine
	fontDB  fontdb.FontDB

	lastW, lastX, lastY, lastZ int32
	pageCount                  int
}

// NewExecutor creates an Executor bound to m and fdb.
func NewExecutor(m Machine, fdb fontdb.FontDB) *Executor {
	return &Executor{machine: m, fontDB: fdb}
}

// Run applies every opcode in ops to the bound Machine, in order.
func (e *Executor) Run(ops []dvi.Op) error {
	var pending []uint32

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		advance, err := e.machine.PutText(pending, e.fontDB)
		if err != nil {
			return err
		}
		pos := e.machine.Position()
		pos.H += advance
		e.machine.SetPosition(pos)
		pending = pending[:0]
		return nil
	}

	for _, op := range ops {
		switch v := op.(type) {
		case dvi.SetChar:
			pending = append(pending, v.Code)
			continue
		case dvi.Set:
			pending = append(pending, v.Code)
			continue
		}

		if err := flush(); err != nil {
			return err
		}
		if err := e.dispatch(op); err != nil {
			return err
		}
	}
	return flush()
}

func (e *Executor) dispatch(op dvi.Op) error {
	switch v := op.(type) {
	case dvi.Put:
		if _, err := e.machine.PutText([]uint32{v.Code}, e.fontDB); err != nil {
			return err
		}
	case dvi.PutRule:
		e.machine.PutRule(v.Height, v.Width)
		pos := e.machine.Position()
		pos.H += v.Width
		e.machine.SetPosition(pos)
	case dvi.Nop:
		// nothing to do
	case dvi.Bop:
		e.pageCount++
		e.machine.SetNbPages(e.pageCount)
		e.machine.BeginPage(v.C, v.Prev)
	case dvi.Eop:
		return e.machine.EndPage()
	case dvi.Push:
		e.machine.PushPosition()
	case dvi.Pop:
		return e.machine.PopPosition()
	case dvi.Right:
		e.move(v.Amount, 0)
	case dvi.Down:
		e.move(0, v.Amount)
	case dvi.W:
		amt := e.storedOrSet(&e.lastW, v.Amount, v.UseStored)
		e.move(amt, 0)
	case dvi.X:
		amt := e.storedOrSet(&e.lastX, v.Amount, v.UseStored)
		e.move(amt, 0)
	case dvi.Y:
		amt := e.storedOrSet(&e.lastY, v.Amount, v.UseStored)
		e.move(0, amt)
	case dvi.Z:
		amt := e.storedOrSet(&e.lastZ, v.Amount, v.UseStored)
		e.move(0, amt)
	case dvi.FntNum:
		return e.machine.SetFont(v.Number)
	case dvi.Fnt:
		return e.machine.SetFont(v.Number)
	case dvi.FntDef:
		e.machine.AddFont(FontDef{
			Number:      v.Number,
			ScaleFactor: v.ScaleFactor,
			DesignSize:  v.DesignSize,
			Name:        v.Name,
		})
	case dvi.Xxx:
		e.machine.HandleSpecial(string(v.Payload))
	case dvi.Pre:
		e.machine.SetPreambleData(PreambleData{Num: v.Num, Den: v.Den, Mag: v.Mag})
	case dvi.Post:
		// postamble carries cross-reference data the rendering pipeline
		// does not need.
	case dvi.PostPost:
		// trailer; stream ends here.
	default:
		return fmt.Errorf("device: unhandled opcode %T", op)
	}
	return nil
}

func (e *Executor) move(dh, dv int32) {
	pos := e.machine.Position()
	pos.H += dh
	pos.V += dv
	e.machine.SetPosition(pos)
}

func (e *Executor) storedOrSet(last *int32, amount int32, useStored bool) int32 {
	if useStored {
		return *last
	}
	*last = amount
	return amount
}
