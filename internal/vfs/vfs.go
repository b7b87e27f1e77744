// Package vfs implements the in-memory file system and descriptor table that
// stand in for the legacy compiler's operating system. Every file the guest
// opens, reads or writes lives here instead of on a real disk.
package vfs

import (
	"log"
	"strings"
	"sync"
)

// StreamKind distinguishes the two distinguished streams from ordinary named
// files.
type StreamKind int

const (
	Stdin StreamKind = iota
	Stdout
	Named
)

// StreamID identifies a stream: one of the two distinguished streams, or a
// named file in the VFS's file table.
type StreamID struct {
	Kind StreamKind
	Name string // only meaningful when Kind == Named
}

func StdinID() StreamID           { return StreamID{Kind: Stdin} }
func StdoutID() StreamID          { return StreamID{Kind: Stdout} }
func NamedID(name string) StreamID { return StreamID{Kind: Named, Name: name} }

// ReadMode selects which of a FilePointer's two cursors a Read call
// advances. Byte-oriented reads (get/put) and line-oriented reads
// (input_ln) progress independently through the same stream.
type ReadMode int

const (
	Bytes ReadMode = iota
	Text
)

// FilePointer is the state behind one descriptor: which stream it names, how
// far each of its two cursors has progressed, and its error status.
type FilePointer struct {
	Stream     StreamID
	ByteCursor uint32
	TextCursor uint32
	Erstat     int32
}

// VFS is the in-memory file store plus the append-only descriptor table
// layered on top of it. A VFS is owned exclusively by one Runner; all
// methods assume single-threaded guest-call-ordered access, matching the
// synchronous host-import contract described in the design (host callbacks
// run on the guest's call thread and borrow the VFS for the duration of one
// call), but the mutex still guards against accidental concurrent use from
// Go code driving the Runner.
type VFS struct {
	mu          sync.Mutex
	data        map[string][]byte
	stdin       []byte
	stdout      []byte
	descriptors []FilePointer
	logger      *log.Logger
}

// New creates an empty VFS. Callers typically seed it immediately afterward
// (extracting a bundled tarball, setting stdin).
func New(logger *log.Logger) *VFS {
	if logger == nil {
		logger = log.Default()
	}
	return &VFS{
		data:   make(map[string][]byte),
		logger: logger,
	}
}

// Open creates a new descriptor for the given stream. For a Named stream
// that does not yet exist, an empty entry is inserted first; erstat is set
// to 1 iff the file was newly created and errIfNew holds. Always succeeds,
// and never reuses a descriptor index within the VFS's lifetime.
func (v *VFS) Open(id StreamID, errIfNew bool) int32 {
	v.mu.Lock()
	defer v.mu.Unlock()

	fp := FilePointer{Stream: id}
	if id.Kind == Named {
		if _, ok := v.data[id.Name]; !ok {
			v.data[id.Name] = nil
			if errIfNew {
				fp.Erstat = 1
			}
		}
	}
	v.descriptors = append(v.descriptors, fp)
	return int32(len(v.descriptors) - 1)
}

// pointer returns the file pointer for fd, or nil if fd is out of range.
// Callers must hold v.mu.
func (v *VFS) pointer(fd int32) *FilePointer {
	if fd < 0 || int(fd) >= len(v.descriptors) {
		return nil
	}
	return &v.descriptors[fd]
}

// buffer returns the backing byte slice for a stream. Callers must hold v.mu.
func (v *VFS) buffer(id StreamID) *[]byte {
	switch id.Kind {
	case Stdin:
		return &v.stdin
	case Stdout:
		return &v.stdout
	default:
		b := v.data[id.Name]
		return &b
	}
}

// storeBuffer writes back a possibly-grown buffer for a stream.
// Callers must hold v.mu.
func (v *VFS) storeBuffer(id StreamID, b []byte) {
	switch id.Kind {
	case Stdin:
		v.stdin = b
	case Stdout:
		v.stdout = b
	default:
		v.data[id.Name] = b
	}
}

// Read reads up to length bytes from fd starting at the cursor selected by
// mode, advancing only that cursor. Returns empty on a negative/unknown fd,
// an empty stream, or a cursor already at end.
func (v *VFS) Read(fd int32, length int, mode ReadMode) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()

	fp := v.pointer(fd)
	if fp == nil {
		v.logger.Printf("vfs: read from invalid descriptor %d", fd)
		return nil
	}
	buf := *v.buffer(fp.Stream)
	cursor := fp.ByteCursor
	if mode == Text {
		cursor = fp.TextCursor
	}
	if int(cursor) >= len(buf) {
		return nil
	}
	end := int(cursor) + length
	if end > len(buf) {
		end = len(buf)
	}
	out := append([]byte(nil), buf[cursor:end]...)
	if mode == Text {
		fp.TextCursor += uint32(len(out))
	} else {
		fp.ByteCursor += uint32(len(out))
	}
	return out
}

// Write appends or overwrites bytes at fd's byte cursor, resizing the
// backing buffer if needed, and advances the byte cursor. A negative fd is
// a logged no-op.
func (v *VFS) Write(fd int32, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fp := v.pointer(fd)
	if fp == nil {
		v.logger.Printf("vfs: write to invalid descriptor %d", fd)
		return
	}
	buf := *v.buffer(fp.Stream)
	end := int(fp.ByteCursor) + len(data)
	if end > len(buf) {
		grown := make([]byte, end)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[fp.ByteCursor:end], data)
	v.storeBuffer(fp.Stream, buf)
	fp.ByteCursor += uint32(len(data))
}

// AtEOF reports whether fd's byte cursor — the one advanced by get/put — is
// at or beyond the stream's length. Stdout is never at EOF; an empty Stdin
// is always at EOF.
func (v *VFS) AtEOF(fd int32) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	fp := v.pointer(fd)
	if fp == nil {
		return true
	}
	return v.atEOFCursor(fp, fp.ByteCursor)
}

// atEOFText reports whether fd's text cursor is at or beyond the stream's
// length. Callers must hold v.mu.
func (v *VFS) atEOFText(fp *FilePointer) bool {
	return v.atEOFCursor(fp, fp.TextCursor)
}

func (v *VFS) atEOFCursor(fp *FilePointer, cursor uint32) bool {
	if fp.Stream.Kind == Stdout {
		return false
	}
	buf := *v.buffer(fp.Stream)
	if fp.Stream.Kind == Stdin && len(buf) == 0 {
		return true
	}
	return int(cursor) >= len(buf)
}

// AtEOLN reports whether fd is at end of file (per its text cursor) or the
// byte at the text cursor is a line feed.
func (v *VFS) AtEOLN(fd int32) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	fp := v.pointer(fd)
	if fp == nil {
		return true
	}
	if v.atEOFText(fp) {
		return true
	}
	buf := *v.buffer(fp.Stream)
	return buf[fp.TextCursor] == '\n'
}

// SkipNewline advances the text cursor past a line feed at the current text
// cursor position; a no-op otherwise (including at EOF).
func (v *VFS) SkipNewline(fd int32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fp := v.pointer(fd)
	if fp == nil {
		return
	}
	if v.atEOFText(fp) {
		return
	}
	buf := *v.buffer(fp.Stream)
	if buf[fp.TextCursor] == '\n' {
		fp.TextCursor++
	}
}

// ReadLine returns the bytes from the text cursor up to (but not including)
// the next line feed or end of stream, advancing the text cursor past the
// line feed (or to end). Returns ok=false iff the text cursor was already at
// or past end before the call.
func (v *VFS) ReadLine(fd int32) (line []byte, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fp := v.pointer(fd)
	if fp == nil {
		return nil, false
	}
	if v.atEOFText(fp) {
		return nil, false
	}
	buf := *v.buffer(fp.Stream)
	start := int(fp.TextCursor)
	idx := -1
	for i := start; i < len(buf); i++ {
		if buf[i] == '\n' {
			idx = i
			break
		}
	}
	if idx < 0 {
		line = append([]byte(nil), buf[start:]...)
		fp.TextCursor = uint32(len(buf))
		return line, true
	}
	line = append([]byte(nil), buf[start:idx]...)
	fp.TextCursor = uint32(idx + 1)
	return line, true
}

// Erstat returns fd's error-status flag, read-only after the descriptor is
// created.
func (v *VFS) Erstat(fd int32) int32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	fp := v.pointer(fd)
	if fp == nil {
		return 0
	}
	return fp.Erstat
}

// ContentOf returns the full current contents of a stream.
func (v *VFS) ContentOf(id StreamID) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), (*v.buffer(id))...)
}

// SetStdin overwrites the contents of the stdin stream. Existing
// descriptors pointed at stdin keep their cursors — mirroring the Runner's
// reuse model, where descriptors from a prior run are never re-referenced
// because the guest reopens everything at the start of main.
func (v *VFS) SetStdin(data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stdin = append([]byte(nil), data...)
}

// GetStdout decodes the stdout stream as lossy UTF-8.
func (v *VFS) GetStdout() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return strings.ToValidUTF8(string(v.stdout), "�")
}

// Exists reports whether a named stream has an entry in the VFS. Stdin and
// Stdout always exist.
func (v *VFS) Exists(id StreamID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if id.Kind != Named {
		return true
	}
	_, ok := v.data[id.Name]
	return ok
}

// SetFile overwrites (or creates) a named file's contents outright, used by
// the Runner to seed the bundled tarball and to apply SetInput.
func (v *VFS) SetFile(name string, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data[name] = append([]byte(nil), data...)
}

// NormalizeFilename applies the filename cleanup rules: trim whitespace,
// strip surrounding quotes, then surrounding braces, trim again (repeating
// while the result is still wrapped), then rewrite the legacy alias
// TeXformats:TEX.POOL to tex.pool. TTY: is returned unchanged; the caller
// maps it to Stdin or Stdout. Idempotent: normalizing an already-normalized
// name is a no-op.
func NormalizeFilename(raw string) string {
	name := strings.TrimSpace(raw)

	if strings.HasPrefix(name, `"`) {
		first := strings.Index(name, `"`)
		last := strings.LastIndex(name, `"`)
		if last > first {
			name = name[first+1 : last]
		} else {
			name = name[first+1:]
		}
	}

	if strings.HasPrefix(name, "{") {
		first := strings.Index(name, "{")
		if last := strings.LastIndex(name, "}"); last > first {
			name = name[first+1 : last]
		} else {
			name = name[first+1:]
		}
	}

	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, `"`) || strings.HasPrefix(name, "{") {
		return NormalizeFilename(name)
	}

	if name == "TeXformats:TEX.POOL" {
		return "tex.pool"
	}
	return name
}
