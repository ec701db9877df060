package render

import (
	"errors"
	"fmt"
	"math"
)

// DVI opcodes, see dvitype.web.
const (
	opSet1     = 128
	opSetRule  = 132
	opPut1     = 133
	opPutRule  = 137
	opNop      = 138
	opBop      = 139
	opEop      = 140
	opPush     = 141
	opPop      = 142
	opRight1   = 143
	opW0       = 147
	opX0       = 152
	opDown1    = 157
	opY0       = 161
	opZ0       = 166
	opFntNum0  = 171
	opFnt1     = 235
	opXXX1     = 239
	opFntDef1  = 243
	opPre      = 247
	opPost     = 248
	opPostPost = 249

	dviID = 2
)

var errTruncatedDVI = errors.New("dvi: unexpected end of data")

type segOp uint8

const (
	segMove segOp = iota
	segLine
	segQuad
	segCube
)

type point struct{ x, y float32 }

// pathSeg is one outline segment in pixels, y growing downwards.
type pathSeg struct {
	op  segOp
	pts [3]point
}

// page is the ink of the first page of a DVI file.
type page struct {
	segs                   []pathSeg
	minX, minY, maxX, maxY float32
}

func (p *page) empty() bool { return len(p.segs) == 0 }

func (p *page) width() float32  { return p.maxX - p.minX }
func (p *page) height() float32 { return p.maxY - p.minY }

func (p *page) add(s pathSeg) {
	n := 1
	switch s.op {
	case segQuad:
		n = 2
	case segCube:
		n = 3
	}
	if p.empty() {
		pt := s.pts[0]
		p.minX, p.maxX, p.minY, p.maxY = pt.x, pt.x, pt.y, pt.y
	}
	for _, pt := range s.pts[:n] {
		p.minX = min(p.minX, pt.x)
		p.maxX = max(p.maxX, pt.x)
		p.minY = min(p.minY, pt.y)
		p.maxY = max(p.maxY, pt.y)
	}
	p.segs = append(p.segs, s)
}

type fontDef struct {
	name   string
	scaled int64 // at size, in DVI units
}

type registers struct {
	h, v, w, x, y, z int64
}

type dviReader struct {
	b   []byte
	pos int
}

func (r *dviReader) done() bool { return r.pos >= len(r.b) }

func (r *dviReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.b) {
		return nil, errTruncatedDVI
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *dviReader) unsigned(n int) (int64, error) {
	b, err := r.bytes(n)
	if err != nil {
		return 0, err
	}
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v, nil
}

func (r *dviReader) signed(n int) (int64, error) {
	v, err := r.unsigned(n)
	if err != nil {
		return 0, err
	}
	if shift := uint(64 - 8*n); shift > 0 {
		v = v << shift >> shift
	}
	return v, nil
}

// dviMachine executes the commands of the first page of a DVI file and
// collects glyph outlines and rules as pixel paths.
type dviMachine struct {
	r     dviReader
	fonts *fontSet
	toPx  float64 // pixels per DVI unit

	defs  map[int64]fontDef
	font  *fontDef
	regs  registers
	stack []registers
	page  page
}

// interpretDVI draws the first page of dvi at dpi pixels per inch.
func interpretDVI(dvi []byte, fonts *fontSet, dpi float64) (*page, error) {
	m := &dviMachine{
		r:     dviReader{b: dvi},
		fonts: fonts,
		defs:  make(map[int64]fontDef),
	}
	if err := m.preamble(dpi); err != nil {
		return nil, err
	}

	for !m.r.done() {
		op, err := m.r.unsigned(1)
		if err != nil {
			return nil, err
		}
		stop, err := m.exec(byte(op))
		if err != nil {
			return nil, fmt.Errorf("dvi: opcode %d at byte %d: %w", op, m.r.pos-1, err)
		}
		if stop {
			break
		}
	}
	return &m.page, nil
}

func (m *dviMachine) preamble(dpi float64) error {
	op, err := m.r.unsigned(1)
	if err != nil {
		return err
	}
	if op != opPre {
		return fmt.Errorf("dvi: missing preamble")
	}
	id, err := m.r.unsigned(1)
	if err != nil {
		return err
	}
	if id != dviID {
		return fmt.Errorf("dvi: unsupported id %d", id)
	}

	var nums [3]int64
	for i := range nums {
		if nums[i], err = m.r.unsigned(4); err != nil {
			return err
		}
	}
	num, den, mag := nums[0], nums[1], nums[2]
	if num == 0 || den == 0 || mag == 0 {
		return fmt.Errorf("dvi: invalid unit %d/%d mag %d", num, den, mag)
	}

	k, err := m.r.unsigned(1)
	if err != nil {
		return err
	}
	if _, err := m.r.bytes(int(k)); err != nil {
		return err
	}

	// num/den is the DVI unit in 1e-7 m.
	m.toPx = float64(num) / float64(den) * float64(mag) / 1000 * 1e-7 / 0.0254 * dpi
	return nil
}

func (m *dviMachine) exec(op byte) (stop bool, err error) {
	r := &m.r
	switch {
	case op < opSet1:
		return false, m.char(int64(op), true)
	case op < opSetRule:
		c, err := r.unsigned(int(op-opSet1) + 1)
		if err != nil {
			return false, err
		}
		return false, m.char(c, true)
	case op == opSetRule, op == opPutRule:
		a, err := r.signed(4)
		if err != nil {
			return false, err
		}
		b, err := r.signed(4)
		if err != nil {
			return false, err
		}
		m.rule(a, b)
		if op == opSetRule {
			m.regs.h += b
		}
	case op < opPutRule:
		c, err := r.unsigned(int(op-opPut1) + 1)
		if err != nil {
			return false, err
		}
		return false, m.char(c, false)
	case op == opNop:
	case op == opBop:
		if _, err := r.bytes(44); err != nil {
			return false, err
		}
		m.regs = registers{}
		m.stack = m.stack[:0]
		m.font = nil
	case op == opEop, op == opPost, op == opPostPost:
		return true, nil
	case op == opPush:
		m.stack = append(m.stack, m.regs)
	case op == opPop:
		if len(m.stack) == 0 {
			return false, fmt.Errorf("pop on empty stack")
		}
		m.regs = m.stack[len(m.stack)-1]
		m.stack = m.stack[:len(m.stack)-1]
	case op < opW0:
		d, err := r.signed(int(op-opRight1) + 1)
		if err != nil {
			return false, err
		}
		m.regs.h += d
	case op < opX0:
		if op > opW0 {
			if m.regs.w, err = r.signed(int(op - opW0)); err != nil {
				return false, err
			}
		}
		m.regs.h += m.regs.w
	case op < opDown1:
		if op > opX0 {
			if m.regs.x, err = r.signed(int(op - opX0)); err != nil {
				return false, err
			}
		}
		m.regs.h += m.regs.x
	case op < opY0:
		d, err := r.signed(int(op-opDown1) + 1)
		if err != nil {
			return false, err
		}
		m.regs.v += d
	case op < opZ0:
		if op > opY0 {
			if m.regs.y, err = r.signed(int(op - opY0)); err != nil {
				return false, err
			}
		}
		m.regs.v += m.regs.y
	case op < opFntNum0:
		if op > opZ0 {
			if m.regs.z, err = r.signed(int(op - opZ0)); err != nil {
				return false, err
			}
		}
		m.regs.v += m.regs.z
	case op < opFnt1:
		return false, m.selectFont(int64(op - opFntNum0))
	case op < opXXX1:
		k, err := r.unsigned(int(op-opFnt1) + 1)
		if err != nil {
			return false, err
		}
		return false, m.selectFont(k)
	case op < opFntDef1:
		k, err := r.unsigned(int(op-opXXX1) + 1)
		if err != nil {
			return false, err
		}
		_, err = r.bytes(int(k))
		return false, err
	case op < opPre:
		return false, m.defineFont(int(op-opFntDef1) + 1)
	default:
		return false, fmt.Errorf("unexpected opcode")
	}
	return false, nil
}

func (m *dviMachine) defineFont(n int) error {
	k, err := m.r.unsigned(n)
	if err != nil {
		return err
	}
	// checksum
	if _, err := m.r.bytes(4); err != nil {
		return err
	}
	scaled, err := m.r.unsigned(4)
	if err != nil {
		return err
	}
	// design size
	if _, err := m.r.bytes(4); err != nil {
		return err
	}
	a, err := m.r.unsigned(1)
	if err != nil {
		return err
	}
	l, err := m.r.unsigned(1)
	if err != nil {
		return err
	}
	name, err := m.r.bytes(int(a + l))
	if err != nil {
		return err
	}
	m.defs[k] = fontDef{name: string(name[a:]), scaled: scaled}
	return nil
}

func (m *dviMachine) selectFont(k int64) error {
	def, ok := m.defs[k]
	if !ok {
		return fmt.Errorf("font %d used before definition", k)
	}
	m.font = &def
	return nil
}

func (m *dviMachine) char(code int64, advance bool) error {
	if m.font == nil {
		return fmt.Errorf("character %d without a font", code)
	}

	g, err := m.fonts.glyph(m.font.name, uint32(code))
	if err != nil {
		return err
	}

	ppem := float32(float64(m.font.scaled) * m.toPx)
	sc := ppem / g.upem
	ox := float32(float64(m.regs.h) * m.toPx)
	oy := float32(float64(m.regs.v) * m.toPx)

	for _, s := range g.segs {
		var out pathSeg
		out.op = s.op
		for i, pt := range s.pts {
			out.pts[i] = point{x: ox + pt.x*sc, y: oy - pt.y*sc}
		}
		m.page.add(out)
	}

	if advance {
		m.regs.h += int64(math.Round(float64(g.advance*sc) / m.toPx))
	}
	return nil
}

// minRulePx keeps hairline rules such as fraction bars visible.
const minRulePx = 1

func (m *dviMachine) rule(height, width int64) {
	if height <= 0 || width <= 0 {
		return
	}

	x0 := float32(float64(m.regs.h) * m.toPx)
	x1 := float32(float64(m.regs.h+width) * m.toPx)
	y1 := float32(float64(m.regs.v) * m.toPx)
	y0 := float32(float64(m.regs.v-height) * m.toPx)
	if x1-x0 < minRulePx {
		x1 = x0 + minRulePx
	}
	if y1-y0 < minRulePx {
		y0 = y1 - minRulePx
	}

	m.page.add(pathSeg{op: segMove, pts: [3]point{{x0, y0}}})
	m.page.add(pathSeg{op: segLine, pts: [3]point{{x1, y0}}})
	m.page.add(pathSeg{op: segLine, pts: [3]point{{x1, y1}}})
	m.page.add(pathSeg{op: segLine, pts: [3]point{{x0, y1}}})
}
