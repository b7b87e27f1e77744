package dvi

import "fmt"

// Parse decodes a complete, well-formed DVI byte stream into its opcode
// sequence, in stream order. Multi-byte fields are big-endian per the DVI
// format.
func Parse(data []byte) ([]Op, error) {
	p := &parser{data: data}
	var ops []Op
	for p.pos < len(p.data) {
		op, err := p.next()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

type parser struct {
	data []byte
	pos  int
}

func (p *parser) next() (Op, error) {
	b, err := p.byte()
	if err != nil {
		return nil, err
	}

	switch {
	case b <= opSetCharMax:
		return SetChar{Code: uint32(b)}, nil
	case b >= opSet1 && b <= opSet1+3:
		v, err := p.uint(int(b-opSet1) + 1)
		return Set{Code: v}, err
	case b == opSetRule:
		h, w, err := p.ruleArgs()
		return PutRule{Height: h, Width: w}, err // set_rule advances position the same as put_rule for our purposes
	case b >= opPut1 && b <= opPut1+3:
		v, err := p.uint(int(b-opPut1) + 1)
		return Put{Code: v}, err
	case b == opPutRule:
		h, w, err := p.ruleArgs()
		return PutRule{Height: h, Width: w}, err
	case b == opNop:
		return Nop{}, nil
	case b == opBop:
		return p.bop()
	case b == opEop:
		return Eop{}, nil
	case b == opPush:
		return Push{}, nil
	case b == opPop:
		return Pop{}, nil
	case b >= opRight1 && b <= opRight1+3:
		v, err := p.int(int(b-opRight1) + 1)
		return Right{Amount: v}, err
	case b == opW0:
		return W{UseStored: true}, nil
	case b > opW0 && b <= opW0+4:
		v, err := p.int(int(b-opW0))
		return W{Amount: v}, err
	case b == opX0:
		return X{UseStored: true}, nil
	case b > opX0 && b <= opX0+4:
		v, err := p.int(int(b-opX0))
		return X{Amount: v}, err
	case b >= opDown1 && b <= opDown1+3:
		v, err := p.int(int(b-opDown1) + 1)
		return Down{Amount: v}, err
	case b == opY0:
		return Y{UseStored: true}, nil
	case b > opY0 && b <= opY0+4:
		v, err := p.int(int(b-opY0))
		return Y{Amount: v}, err
	case b == opZ0:
		return Z{UseStored: true}, nil
	case b > opZ0 && b <= opZ0+4:
		v, err := p.int(int(b-opZ0))
		return Z{Amount: v}, err
	case b >= opFntNum0 && b <= opFntNum63:
		return FntNum{Number: uint32(b - opFntNum0)}, nil
	case b >= opFnt1 && b <= opFnt1+3:
		v, err := p.uint(int(b-opFnt1) + 1)
		return Fnt{Number: v}, err
	case b >= opXxx1 && b <= opXxx1+3:
		return p.xxx(int(b-opXxx1) + 1)
	case b >= opFntDef1 && b <= opFntDef1+3:
		return p.fntDef(int(b-opFntDef1) + 1)
	case b == opPre:
		return p.pre()
	case b == opPost:
		return p.post()
	case b == opPostPost:
		return p.postPost()
	default:
		return nil, fmt.Errorf("dvi: unknown opcode 0x%02x at offset %d", b, p.pos-1)
	}
}

func (p *parser) byte() (byte, error) {
	if p.pos >= len(p.data) {
		return 0, fmt.Errorf("dvi: truncated stream at offset %d", p.pos)
	}
	b := p.data[p.pos]
	p.pos++
	return b, nil
}

func (p *parser) bytes(n int) ([]byte, error) {
	if p.pos+n > len(p.data) {
		return nil, fmt.Errorf("dvi: truncated stream: need %d bytes at offset %d, have %d", n, p.pos, len(p.data)-p.pos)
	}
	b := p.data[p.pos : p.pos+n]
	p.pos += n
	return b, nil
}

func (p *parser) uint(n int) (uint32, error) {
	b, err := p.bytes(n)
	if err != nil {
		return 0, err
	}
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v, nil
}

func (p *parser) int(n int) (int32, error) {
	b, err := p.bytes(n)
	if err != nil {
		return 0, err
	}
	v := int32(int8(b[0]))
	for _, c := range b[1:] {
		v = v<<8 | int32(c)
	}
	return v, nil
}

func (p *parser) ruleArgs() (int32, int32, error) {
	h, err := p.int(4)
	if err != nil {
		return 0, 0, err
	}
	w, err := p.int(4)
	if err != nil {
		return 0, 0, err
	}
	return h, w, nil
}

func (p *parser) bop() (Op, error) {
	var c [10]int32
	for i := range c {
		v, err := p.int(4)
		if err != nil {
			return nil, err
		}
		c[i] = v
	}
	prev, err := p.int(4)
	if err != nil {
		return nil, err
	}
	return Bop{C: c, Prev: prev}, nil
}

func (p *parser) xxx(lenBytes int) (Op, error) {
	n, err := p.uint(lenBytes)
	if err != nil {
		return nil, err
	}
	payload, err := p.bytes(int(n))
	if err != nil {
		return nil, err
	}
	return Xxx{Payload: append([]byte(nil), payload...)}, nil
}

func (p *parser) fntDef(numBytes int) (Op, error) {
	number, err := p.uint(numBytes)
	if err != nil {
		return nil, err
	}
	checksum, err := p.uint(4)
	if err != nil {
		return nil, err
	}
	scale, err := p.uint(4)
	if err != nil {
		return nil, err
	}
	design, err := p.uint(4)
	if err != nil {
		return nil, err
	}
	areaLen, err := p.byte()
	if err != nil {
		return nil, err
	}
	nameLen, err := p.byte()
	if err != nil {
		return nil, err
	}
	areaBytes, err := p.bytes(int(areaLen))
	if err != nil {
		return nil, err
	}
	nameBytes, err := p.bytes(int(nameLen))
	if err != nil {
		return nil, err
	}
	return FntDef{
		Number:      number,
		Checksum:    checksum,
		ScaleFactor: scale,
		DesignSize:  design,
		Area:        string(areaBytes),
		Name:        string(nameBytes),
	}, nil
}

func (p *parser) pre() (Op, error) {
	if _, err := p.byte(); err != nil { // format identifier, unused
		return nil, err
	}
	num, err := p.uint(4)
	if err != nil {
		return nil, err
	}
	den, err := p.uint(4)
	if err != nil {
		return nil, err
	}
	mag, err := p.uint(4)
	if err != nil {
		return nil, err
	}
	k, err := p.byte()
	if err != nil {
		return nil, err
	}
	comment, err := p.bytes(int(k))
	if err != nil {
		return nil, err
	}
	return Pre{Num: num, Den: den, Mag: mag, Comment: string(comment)}, nil
}

// post consumes the postamble's fixed-size fields. The rendering pipeline
// does not need the cross-reference pointer or stack-depth fields it
// carries, only that the opcode boundary is correctly skipped.
func (p *parser) post() (Op, error) {
	if _, err := p.bytes(4 + 4 + 4 + 4 + 4 + 4 + 2 + 2); err != nil {
		return nil, err
	}
	return Post{}, nil
}

// postPost consumes the trailer: a pointer, a format identifier, then
// 223-valued padding bytes out to the end of the file.
func (p *parser) postPost() (Op, error) {
	if _, err := p.bytes(4 + 1); err != nil {
		return nil, err
	}
	p.pos = len(p.data)
	return PostPost{}, nil
}
