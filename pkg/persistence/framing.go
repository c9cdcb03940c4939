// Package persistence implements the binary framing primitives shared by
// every index and storage codec: length-prefixed reads/writes, magic and
// version checking, and an atomic write-to-temp-then-rename file swap.
//
// Every numeric field is written in platform-native byte order; this
// module assumes save and load run on machines of the same endianness.
package persistence

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/natefinch/atomic"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
)

var nativeOrder = binary.NativeEndian

// Writer is a buffered, length-prefix-aware binary writer.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter wraps w in a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Err returns the first error encountered by any Write call.
func (w *Writer) Err() error { return w.err }

// Flush flushes the underlying buffer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

// WriteMagicVersion writes a 4-byte magic (as a uint32) and 4-byte
// version, the header of every persisted record.
func (w *Writer) WriteMagicVersion(magic, version uint32) {
	w.WriteU32(magic)
	w.WriteU32(version)
}

// WriteRaw writes b with no length prefix, used for fixed-width ASCII
// magics that aren't exactly 4 bytes (e.g. "GVSNAP", "GV_JPI").
func (w *Writer) WriteRaw(b []byte) { w.write(b) }

// WriteU32 writes a little/native-order uint32.
func (w *Writer) WriteU32(v uint32) {
	var buf [4]byte
	nativeOrder.PutUint32(buf[:], v)
	w.write(buf[:])
}

// WriteU64 writes a native-order uint64.
func (w *Writer) WriteU64(v uint64) {
	var buf [8]byte
	nativeOrder.PutUint64(buf[:], v)
	w.write(buf[:])
}

// WriteU8 writes a single byte.
func (w *Writer) WriteU8(v uint8) {
	w.write([]byte{v})
}

// WriteF32 writes a native-order float32.
func (w *Writer) WriteF32(v float32) {
	w.WriteU32(math.Float32bits(v))
}

// WriteF32Slice writes a slice of float32 values with no length prefix;
// callers that need the count to round-trip must write it separately.
func (w *Writer) WriteF32Slice(v []float32) {
	for _, f := range v {
		w.WriteF32(f)
	}
}

// WriteBytes writes a u32 length prefix followed by the raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteU32(uint32(len(b)))
	w.write(b)
}

// WriteString writes a u32 length prefix followed by the raw UTF-8 bytes.
func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

// Reader is a buffered, length-prefix-aware binary reader.
type Reader struct {
	r   *bufio.Reader
	err error
}

// NewReader wraps r in a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Err returns the first error encountered by any Read call.
func (r *Reader) Err() error { return r.err }

func (r *Reader) read(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = gverrors.Wrap("Read", gverrors.KindCorrupt, fmt.Errorf("%w: %v", gverrors.ErrCorrupt, err))
	}
	return buf
}

// ReadMagicVersion reads a 4-byte magic and 4-byte version.
func (r *Reader) ReadMagicVersion() (magic, version uint32) {
	magic = r.ReadU32()
	version = r.ReadU32()
	return
}

// ReadRaw reads exactly n bytes with no length prefix, the counterpart
// to WriteRaw for fixed-width ASCII magics.
func (r *Reader) ReadRaw(n int) []byte { return r.read(n) }

// ReadU32 reads a native-order uint32.
func (r *Reader) ReadU32() uint32 {
	return nativeOrder.Uint32(r.read(4))
}

// ReadU64 reads a native-order uint64.
func (r *Reader) ReadU64() uint64 {
	return nativeOrder.Uint64(r.read(8))
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() uint8 {
	b := r.read(1)
	return b[0]
}

// ReadF32 reads a native-order float32.
func (r *Reader) ReadF32() float32 {
	return math.Float32frombits(r.ReadU32())
}

// ReadF32Slice reads n float32 values.
func (r *Reader) ReadF32Slice(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = r.ReadF32()
	}
	return out
}

// ReadBytes reads a u32 length prefix followed by that many raw bytes.
func (r *Reader) ReadBytes() []byte {
	n := r.ReadU32()
	return r.read(int(n))
}

// ReadString reads a u32 length prefix followed by that many UTF-8 bytes.
func (r *Reader) ReadString() string {
	return string(r.ReadBytes())
}

// CheckMagicVersion verifies a record header against expectations,
// returning KindPreconditionFailed on a version mismatch and an
// "unsupported format" KindPreconditionFailed error on a magic mismatch.
func CheckMagicVersion(op string, gotMagic, wantMagic, gotVersion, wantVersion uint32) error {
	if gotMagic != wantMagic {
		return gverrors.New(op, gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed,
			"unsupported format: magic %#x != expected %#x", gotMagic, wantMagic)
	}
	if gotVersion != wantVersion {
		return gverrors.New(op, gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed,
			"unsupported version: %d != expected %d", gotVersion, wantVersion)
	}
	return nil
}

// AtomicReplace buffers the output of fn in memory, then swaps it onto
// path via a temp-file-then-rename, so readers never observe a partially
// written file. Built on github.com/natefinch/atomic's WriteFile, the
// same call calvinalkan-agent-task uses for its ticket cache.
func AtomicReplace(path string, fn func(w io.Writer) error) error {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return gverrors.Wrap("AtomicReplace", gverrors.KindIO, err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(buf.Bytes())); err != nil {
		return gverrors.Wrap("AtomicReplace", gverrors.KindIO, err)
	}
	return nil
}
