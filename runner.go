// Package texsvg renders TeX/TikZ source to SVG by embedding a precompiled
// legacy TeX compiler inside a WebAssembly sandbox and transcoding its DVI
// output. The host synthesizes the only operating system the guest ever
// sees: an in-memory file system and a fixed set of imported I/O
// primitives (see internal/vfs and internal/hostio).
package texsvg

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/texsvg/texsvg/assets"
	"github.com/texsvg/texsvg/internal/fontdb"
	"github.com/texsvg/texsvg/internal/hostio"
	"github.com/texsvg/texsvg/internal/vfs"
)

// memoryPages is the guest's fixed linear memory size. It must match the
// size the bundled memory snapshot was captured at; the two are a matched
// pair and changing one without the other produces silent corruption.
const memoryPages = 1100

// defaultInput seeds a freshly constructed Runner with a minimal
// tikzpicture so it is immediately runnable before the first SetInput.
const defaultInput = `\begin{document}\begin{tikzpicture}\draw (0,0) circle (1in);\end{tikzpicture}\end{document}`

// seedStdin mimics a user who typed the input filename at TeX's prompt and
// then quit: a space-prefixed filename line, then an \end line.
const seedStdin = " input.tex \n\\end\n"

// Runner owns the WASM engine, the guest's linear memory, the VFS, and the
// instantiated guest module. A Runner can be reused across many
// SetInput/Run pairs; its methods are serialized by an internal mutex.
type Runner struct {
	mu sync.Mutex

	logger *log.Logger
	fontDB fontdb.FontDB

	runtime  wazero.Runtime
	envMod   api.Closer
	libMod   api.Closer
	guestMod api.Module
	mainFn   api.Function

	vfs    *vfs.VFS
	hasRun bool
}

// New constructs a Runner: compiles and instantiates the guest module
// against a fresh VFS seeded from the bundled runtime tarball, a default
// input document, and the legacy seed stdin.
func New(ctx context.Context, opts ...Option) (*Runner, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	v := vfs.New(cfg.logger)
	if err := seedRuntimeFiles(v, assets.RuntimeTarball); err != nil {
		return nil, fmt.Errorf("texsvg: seeding runtime files: %w", err)
	}
	v.SetFile("input.tex", []byte(defaultInput))
	v.SetStdin([]byte(seedStdin))

	rt := wazero.NewRuntime(ctx)

	envMod, err := rt.NewHostModuleBuilder("env").ExportMemory("memory", memoryPages).Instantiate(ctx)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("texsvg: instantiating env module: %w", err)
	}
	if ok := envMod.Memory().Write(0, assets.MemorySnapshot); !ok {
		rt.Close(ctx)
		return nil, fmt.Errorf("texsvg: memory snapshot (%d bytes) does not fit in %d pages", len(assets.MemorySnapshot), memoryPages)
	}

	libMod, err := hostio.New(v, cfg.logger).Instantiate(ctx, rt)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("texsvg: instantiating library imports: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, assets.WASMModule)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("texsvg: compiling guest module: %w", err)
	}

	guest, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("tex"))
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("texsvg: instantiating guest module: %w", err)
	}

	mainFn := guest.ExportedFunction("main")
	if mainFn == nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("texsvg: guest module does not export main")
	}

	return &Runner{
		logger:   cfg.logger,
		fontDB:   cfg.fontDB,
		runtime:  rt,
		envMod:   envMod,
		libMod:   libMod,
		guestMod: guest,
		mainFn:   mainFn,
		vfs:      v,
	}, nil
}

// SetInput overwrites the VFS entry input.tex and clears the has-run flag,
// so the next Run re-executes the guest against the new input.
func (r *Runner) SetInput(input string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vfs.SetFile("input.tex", []byte(input))
	r.hasRun = false
}

// Run invokes the guest's main export at most once per (construct,
// SetInput) pair, then transcodes the resulting input.dvi into SVG.
// Calling Run again without an intervening SetInput returns the same SVG
// without re-running the guest.
func (r *Runner) Run(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasRun {
		if _, err := r.mainFn.Call(ctx); err != nil {
			return "", fmt.Errorf("texsvg: guest trap: %w\n--- log ---\n%s", err, r.logTail())
		}
		r.hasRun = true
	}

	dviID := vfs.NamedID("input.dvi")
	if !r.vfs.Exists(dviID) {
		return "", fmt.Errorf("texsvg: input.dvi missing after run\n--- log ---\n%s", r.logTail())
	}

	svg, err := renderDVI(r.vfs.ContentOf(dviID), r.fontDB, r.logger)
	if err != nil {
		return "", fmt.Errorf("texsvg: %w\n--- log ---\n%s", err, r.logTail())
	}
	return svg, nil
}

// GetMessages decodes the guest's stdout stream as lossy UTF-8.
func (r *Runner) GetMessages() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vfs.GetStdout(), nil
}

// GetLog decodes the guest's input.log entry as lossy UTF-8.
func (r *Runner) GetLog() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.ToValidUTF8(string(r.vfs.ContentOf(vfs.NamedID("input.log"))), "�"), nil
}

func (r *Runner) logTail() string {
	return string(r.vfs.ContentOf(vfs.NamedID("input.log")))
}

// Close releases the wazero runtime and everything instantiated in it.
func (r *Runner) Close(ctx context.Context) error {
	return r.runtime.Close(ctx)
}

// RenderToSVG is the one-shot convenience entry point: construct a Runner,
// render input, and tear it down. Named text2svg in the design notes; this
// is the symbol callers who don't want to manage a Runner's lifetime use.
func RenderToSVG(ctx context.Context, input string, opts ...Option) (string, error) {
	r, err := New(ctx, opts...)
	if err != nil {
		return "", err
	}
	defer r.Close(ctx)

	r.SetInput(input)
	return r.Run(ctx)
}

// seedRuntimeFiles extracts a gzipped tar of TeX-runtime files into v,
// trimming each entry's leading "./".
func seedRuntimeFiles(v *vfs.VFS, tarball []byte) error {
	gz, err := gzip.NewReader(bytes.NewReader(tarball))
	if err != nil {
		return fmt.Errorf("opening runtime tarball: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading runtime tarball: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := strings.TrimPrefix(hdr.Name, "./")
		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("reading %s from runtime tarball: %w", name, err)
		}
		v.SetFile(name, data)
	}
}
