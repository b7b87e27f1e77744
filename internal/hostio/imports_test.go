package hostio

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/texsvg/texsvg/internal/vfs"
)

func TestInstantiateRegistersAllImports(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	v := vfs.New(nil)
	mod, err := New(v, nil).Instantiate(ctx, rt)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer mod.Close(ctx)

	want := []string{
		"reset", "rewrite", "close", "get", "put", "eof", "eoln", "erstat",
		"input_ln", "printChar", "printInteger", "printString", "printNewline",
		"getCurrentMinutes", "getCurrentDay", "getCurrentMonth", "getCurrentYear",
		"tex_final_end",
	}
	lib := rt.Module("library")
	if lib == nil {
		t.Fatalf("module %q not found in runtime namespace", "library")
	}
	for _, name := range want {
		if lib.ExportedFunction(name) == nil {
			t.Errorf("library module missing export %q", name)
		}
	}
}

func TestTrimTrailingSpaces(t *testing.T) {
	cases := []struct{ in, want string }{
		{"hello   ", "hello"},
		{"   ", ""},
		{"no-trailing", "no-trailing"},
		{"", ""},
	}
	for _, c := range cases {
		got := string(trimTrailingSpaces([]byte(c.in)))
		if got != c.want {
			t.Errorf("trimTrailingSpaces(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
