// Package assets bundles the three opaque build-time blobs the Runner
// needs: the compiled guest module, a memory snapshot of a loaded format,
// and a gzipped tar of the TeX-runtime files the VFS is seeded from. All
// three are supplied at build time and never generated by this module;
// the checked-in files here are placeholders until the real assets are
// dropped in.
package assets

import _ "embed"

//go:embed tex.wasm
var WASMModule []byte

// MemorySnapshot must be written into the guest's linear memory at offset
// 0 before instantiation; its size and the runtime's fixed page count are
// a matched pair.
//
//go:embed memory.snapshot
var MemorySnapshot []byte

//go:embed texlive.tar.gz
var RuntimeTarball []byte
