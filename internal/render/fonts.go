package render

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-fonts/latin-modern/lmmath"
	"github.com/go-fonts/latin-modern/lmmono10regular"
	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmroman10italic"
	"github.com/go-fonts/latin-modern/lmroman10regular"
	"github.com/go-fonts/latin-modern/lmroman12regular"
	"github.com/go-fonts/latin-modern/lmroman17regular"
	"github.com/go-fonts/latin-modern/lmroman5regular"
	"github.com/go-fonts/latin-modern/lmroman6regular"
	"github.com/go-fonts/latin-modern/lmroman7regular"
	"github.com/go-fonts/latin-modern/lmroman8regular"
	"github.com/go-fonts/latin-modern/lmroman9regular"
	"github.com/go-fonts/latin-modern/lmromanslant10regular"
	"github.com/go-fonts/latin-modern/lmsans10regular"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/font/opentype"
)

// fontSource is one embedded Latin Modern face.
type fontSource struct {
	name string
	ttf  []byte
}

var (
	srcMath = fontSource{"lmmath", lmmath.TTF}
	srcMono = fontSource{"lmmono10", lmmono10regular.TTF}
	srcBold = fontSource{"lmroman10bold", lmroman10bold.TTF}
	srcItal = fontSource{"lmroman10italic", lmroman10italic.TTF}
	srcSlan = fontSource{"lmromanslant10", lmromanslant10regular.TTF}
	srcSans = fontSource{"lmsans10", lmsans10regular.TTF}

	romanBySize = map[int]fontSource{
		5:  {"lmroman5", lmroman5regular.TTF},
		6:  {"lmroman6", lmroman6regular.TTF},
		7:  {"lmroman7", lmroman7regular.TTF},
		8:  {"lmroman8", lmroman8regular.TTF},
		9:  {"lmroman9", lmroman9regular.TTF},
		10: {"lmroman10", lmroman10regular.TTF},
		12: {"lmroman12", lmroman12regular.TTF},
		17: {"lmroman17", lmroman17regular.TTF},
	}
)

// glyph is an outline in font units with y growing upwards.
type glyph struct {
	segs    []pathSeg
	advance float32
	upem    float32
}

type glyphKey struct {
	font string
	code uint32
}

// fontSet maps the Computer Modern fonts named in DVI files onto Latin Modern
// outlines. Faces are parsed on first use and glyphs are cached.
type fontSet struct {
	mu     sync.Mutex
	faces  map[string]*font.Face
	glyphs map[glyphKey]*glyph
}

var texFonts = newFontSet()

func newFontSet() *fontSet {
	return &fontSet{
		faces:  make(map[string]*font.Face),
		glyphs: make(map[glyphKey]*glyph),
	}
}

// splitFontName splits a TFM name like cmmi10 into family and design size.
func splitFontName(name string) (string, int) {
	i := 0
	for i < len(name) && 'a' <= name[i] && name[i] <= 'z' {
		i++
	}
	size, err := strconv.Atoi(name[i:])
	if err != nil {
		size = 10
	}
	return name[:i], size
}

// resolveFont returns the face and encoding used for a TFM font.
func resolveFont(name string) (fontSource, *[128]rune) {
	family, size := splitFontName(name)
	switch family {
	case "cmr":
		return nearestRoman(size), &encOT1
	case "cmmi", "cmmib":
		return srcMath, &encOML
	case "cmsy", "cmbsy":
		return srcMath, &encOMS
	case "cmex":
		return srcMath, &encOMX
	case "cmb", "cmbx":
		return srcBold, &encOT1
	case "cmti":
		return srcItal, &encOT1
	case "cmsl":
		return srcSlan, &encOT1
	case "cmtt", "cmsltt", "cmitt":
		return srcMono, &encASCII
	case "cmss", "cmssi", "cmssbx":
		return srcSans, &encOT1
	default:
		return romanBySize[10], &encOT1
	}
}

func nearestRoman(size int) fontSource {
	best, bestDiff := 10, -1
	for s := range romanBySize {
		d := s - size
		if d < 0 {
			d = -d
		}
		if bestDiff < 0 || d < bestDiff || (d == bestDiff && s < best) {
			best, bestDiff = s, d
		}
	}
	return romanBySize[best]
}

// glyph returns the outline of character code in the TFM font name. Codes
// with no Unicode counterpart yield an empty glyph.
func (fs *fontSet) glyph(name string, code uint32) (*glyph, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := glyphKey{font: name, code: code}
	if g, ok := fs.glyphs[key]; ok {
		return g, nil
	}

	src, enc := resolveFont(name)
	face, err := fs.face(src)
	if err != nil {
		return nil, err
	}

	g := &glyph{upem: float32(face.Upem())}
	if code < uint32(len(enc)) && enc[code] != 0 {
		r := enc[code]
		gid, ok := face.Cmap.Lookup(r)
		if !ok && src.name != srcMath.name {
			if face, err = fs.face(srcMath); err != nil {
				return nil, err
			}
			g.upem = float32(face.Upem())
			gid, ok = face.Cmap.Lookup(r)
		}
		if ok {
			g.advance = face.HorizontalAdvance(gid)
			if outline, isOutline := face.GlyphData(gid).(font.GlyphOutline); isOutline {
				g.segs = convertOutline(outline)
			}
		}
	}

	fs.glyphs[key] = g
	return g, nil
}

func (fs *fontSet) face(src fontSource) (*font.Face, error) {
	if f, ok := fs.faces[src.name]; ok {
		return f, nil
	}
	faces, err := font.ParseTTC(bytes.NewReader(src.ttf))
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", src.name, err)
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("parse font %s: no faces", src.name)
	}
	fs.faces[src.name] = faces[0]
	return faces[0], nil
}

func convertOutline(outline font.GlyphOutline) []pathSeg {
	out := make([]pathSeg, 0, len(outline.Segments))
	for _, s := range outline.Segments {
		var seg pathSeg
		n := 1
		switch s.Op {
		case opentype.SegmentOpMoveTo:
			seg.op = segMove
		case opentype.SegmentOpLineTo:
			seg.op = segLine
		case opentype.SegmentOpQuadTo:
			seg.op = segQuad
			n = 2
		case opentype.SegmentOpCubeTo:
			seg.op = segCube
			n = 3
		default:
			continue
		}
		for i := range n {
			seg.pts[i] = point{x: s.Args[i].X, y: s.Args[i].Y}
		}
		out = append(out, seg)
	}
	return out
}

// Computer Modern encodings mapped to Unicode. Zero marks codes without a
// sensible counterpart; those glyphs are skipped.
var (
	encOT1   = buildOT1()
	encOML   = buildOML()
	encOMS   = buildOMS()
	encOMX   = buildOMX()
	encASCII = buildASCII()
)

// greekCaps is the order of the upright Greek capitals at codes 0-10.
var greekCaps = []rune("ΓΔΘΛΞΠΣΥΦΨΩ")

func buildASCII() (m [128]rune) {
	for c := 0x21; c < 0x7f; c++ {
		m[c] = rune(c)
	}
	return m
}

func buildOT1() [128]rune {
	m := buildASCII()
	copy(m[0:], greekCaps)
	copy(m[0x0b:], []rune("ﬀﬁﬂﬃﬄıȷ`´ˇ˘¯˚¸ßæœøÆŒØ"))
	m[0x22] = '”'
	m[0x3c] = '¡'
	m[0x3e] = '¿'
	m[0x5c] = '“'
	m[0x5e] = 'ˆ'
	m[0x5f] = '˙'
	m[0x7b] = '–'
	m[0x7c] = '—'
	m[0x7d] = '˝'
	m[0x7e] = '˜'
	m[0x7f] = '¨'
	return m
}

// Mathematical italic blocks.
const (
	mathItalicCapA     = 0x1d434
	mathItalicSmallA   = 0x1d44e
	mathItalicCapAlpha = 0x1d6e2
	mathItalicAlpha    = 0x1d6fc
)

func buildOML() (m [128]rune) {
	// capital Greek, offsets from Alpha
	for i, off := range []rune{2, 3, 7, 10, 13, 15, 18, 20, 21, 23, 24} {
		m[i] = mathItalicCapAlpha + off
	}
	// alpha..omega, offsets from alpha; -1 marks the lunate variants below
	for i, off := range []rune{0, 1, 2, 3, -1, 5, 6, 7, 8, 9, 10, 11, 12, 13, 15, 16, 18, 19, 20, -1, 22, 23, 24} {
		if off >= 0 {
			m[0x0b+i] = mathItalicAlpha + off
		}
	}
	m[0x0f] = 0x1d716 // epsilon
	m[0x1e] = 0x1d719 // phi
	m[0x22] = mathItalicAlpha + 4
	m[0x23] = 0x1d717
	m[0x24] = 0x1d71b
	m[0x25] = 0x1d71a
	m[0x26] = mathItalicAlpha + 17
	m[0x27] = mathItalicAlpha + 21

	copy(m[0x28:], []rune("↼↽⇀⇁"))
	m[0x2e] = '▹'
	m[0x2f] = '◃'
	for c := '0'; c <= '9'; c++ {
		m[c] = c
	}
	copy(m[0x3a:], []rune(".,</>⋆"))
	m[0x40] = 0x1d715 // partial
	for i := range rune(26) {
		m[0x41+i] = mathItalicCapA + i
		m[0x61+i] = mathItalicSmallA + i
	}
	m['h'] = 'ℎ'
	copy(m[0x5b:], []rune("♭♮♯⌣⌢ℓ"))
	m[0x7b] = 0x1d6a4
	m[0x7c] = 0x1d6a5
	m[0x7d] = '℘'
	m[0x7e] = 0x20d7
	m[0x7f] = 0x2040
	return m
}

func buildOMS() (m [128]rune) {
	copy(m[0x00:], []rune("−⋅×∗÷⋄±∓⊕⊖⊗⊘⊙◯∘∙"))
	copy(m[0x10:], []rune("≍≡⊆⊇≤≥⪯⪰∼≈⊂⊃≪≫≺≻"))
	copy(m[0x20:], []rune("←→↑↓↔↗↘≃⇐⇒⇑⇓⇔↖↙∝"))
	copy(m[0x30:], []rune("′∞∈∋△▽/"))
	copy(m[0x38:], []rune("∀∃¬∅ℜℑ⊤⊥ℵ"))

	script := map[rune]rune{'B': 'ℬ', 'E': 'ℰ', 'F': 'ℱ', 'H': 'ℋ', 'I': 'ℐ', 'L': 'ℒ', 'M': 'ℳ', 'R': 'ℛ'}
	for i := range rune(26) {
		r := 0x1d49c + i
		if s, ok := script['A'+i]; ok {
			r = s
		}
		m[0x41+i] = r
	}

	copy(m[0x5b:], []rune("∪∩⊎∧∨"))
	copy(m[0x60:], []rune("⊢⊣⌊⌋⌈⌉{}⟨⟩|‖↕⇕\\≀"))
	copy(m[0x70:], []rune("√⨿∇∫⊔⊓⊑⊒§†‡¶♣♢♡♠"))
	return m
}

func buildOMX() (m [128]rune) {
	copy(m[0x00:], []rune("()[]⌊⌋⌈⌉{}⟨⟩|‖/\\"))
	copy(m[0x10:], []rune("()()[]⌊⌋⌈⌉{}⟨⟩/\\"))
	copy(m[0x20:], []rune("()[]⌊⌋⌈⌉{}⟨⟩/\\/\\"))
	copy(m[0x30:], []rune("⎛⎞⎡⎤⎣⎦⎢⎥⎧⎫⎩⎭⎨⎬⎪⏐"))
	copy(m[0x40:], []rune("⎝⎠⎜⎟⟨⟩⨆⨆∮∮⨀⨀⨁⨁⨂⨂"))
	copy(m[0x50:], []rune("∑∏∫⋃⋂⨄⋀⋁∑∏∫⋃⋂⨄⋀⋁"))
	copy(m[0x60:], []rune("∐∐ˆˆˆ˜˜˜[]⌊⌋⌈⌉{}"))
	copy(m[0x70:], []rune("√√√√√⎷⏐‖↑↓"))
	m[0x7e] = '⇑'
	m[0x7f] = '⇓'
	return m
}
