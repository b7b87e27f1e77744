package dvi

import "testing"

func TestParseSetChar(t *testing.T) {
	ops, err := Parse([]byte{65, 66, 127})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("got %d ops, want 3", len(ops))
	}
	for i, want := range []uint32{65, 66, 127} {
		sc, ok := ops[i].(SetChar)
		if !ok {
			t.Fatalf("op %d = %T, want SetChar", i, ops[i])
		}
		if sc.Code != want {
			t.Errorf("op %d code = %d, want %d", i, sc.Code, want)
		}
	}
}

func TestParsePushPop(t *testing.T) {
	ops, err := Parse([]byte{opPush, opPop})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := ops[0].(Push); !ok {
		t.Errorf("op 0 = %T, want Push", ops[0])
	}
	if _, ok := ops[1].(Pop); !ok {
		t.Errorf("op 1 = %T, want Pop", ops[1])
	}
}

func TestParseRight4BigEndianSigned(t *testing.T) {
	// right4 with operand -1 (0xFFFFFFFF).
	ops, err := Parse([]byte{opRight1 + 3, 0xFF, 0xFF, 0xFF, 0xFF})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r, ok := ops[0].(Right)
	if !ok {
		t.Fatalf("op 0 = %T, want Right", ops[0])
	}
	if r.Amount != -1 {
		t.Errorf("Amount = %d, want -1", r.Amount)
	}
}

func TestParseW0UsesStored(t *testing.T) {
	ops, err := Parse([]byte{opW0})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w, ok := ops[0].(W)
	if !ok || !w.UseStored {
		t.Fatalf("op 0 = %#v, want W{UseStored: true}", ops[0])
	}
}

func TestParseBop(t *testing.T) {
	data := make([]byte, 0, 45)
	data = append(data, opBop)
	for i := 0; i < 10; i++ {
		data = append(data, 0, 0, 0, byte(i))
	}
	data = append(data, 0xFF, 0xFF, 0xFF, 0xFF) // prev_p = -1
	ops, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bop, ok := ops[0].(Bop)
	if !ok {
		t.Fatalf("op 0 = %T, want Bop", ops[0])
	}
	if bop.C[9] != 9 {
		t.Errorf("C[9] = %d, want 9", bop.C[9])
	}
	if bop.Prev != -1 {
		t.Errorf("Prev = %d, want -1", bop.Prev)
	}
}

func TestParseFntDef(t *testing.T) {
	data := []byte{opFntDef1 + 0, 7} // fnt_def1, font number 7
	data = append(data, 0, 0, 0, 1) // checksum
	data = append(data, 0, 1, 0, 0) // scale_factor
	data = append(data, 0, 1, 0, 0) // design_size
	data = append(data, 0, 4)       // area_len=0, name_len=4
	data = append(data, []byte("cmr10")[:4]...)
	ops, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fd, ok := ops[0].(FntDef)
	if !ok {
		t.Fatalf("op 0 = %T, want FntDef", ops[0])
	}
	if fd.Number != 7 || fd.Name != "cmr1" {
		t.Errorf("FntDef = %+v", fd)
	}
}

func TestParseXxxPayload(t *testing.T) {
	payload := []byte("color push rgb 1 0 0")
	data := append([]byte{opXxx1, byte(len(payload))}, payload...)
	ops, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	xxx, ok := ops[0].(Xxx)
	if !ok {
		t.Fatalf("op 0 = %T, want Xxx", ops[0])
	}
	if string(xxx.Payload) != string(payload) {
		t.Errorf("Payload = %q, want %q", xxx.Payload, payload)
	}
}

func TestParseUnknownOpcode(t *testing.T) {
	if _, err := Parse([]byte{250}); err == nil {
		t.Fatalf("expected an error for unknown opcode 250")
	}
}

func TestParseTruncatedStream(t *testing.T) {
	if _, err := Parse([]byte{opRight1 + 3, 0, 0}); err == nil {
		t.Fatalf("expected an error for a truncated right4 operand")
	}
}
