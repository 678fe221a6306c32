// Package bincodec decodes the fixed-layout little-endian structures used by
// SGX, TDX and SEV-SNP attestation evidence. Every read is bounds-checked
// against the remaining buffer; nothing here panics on short input.
package bincodec

import (
	"encoding/binary"
	"fmt"
)

// ErrShortBuffer is the error recorded for every bounds-check failure so
// callers can match on it with errors.As regardless of which field overran.
type ErrShortBuffer struct {
	Field    string
	Offset   int
	Expected int
	Got      int
}

func (e *ErrShortBuffer) Error() string {
	return fmt.Sprintf("malformed structure: field %q at offset %d wants %d bytes, got %d", e.Field, e.Offset, e.Expected, e.Got)
}

// Reader walks a borrowed byte slice field by field, recording the first
// bounds violation instead of panicking.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader wraps buf for sequential field reads starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Err returns the first error encountered by any read on this Reader.
func (r *Reader) Err() error {
	return r.err
}

// Offset returns the current read position.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	if r.off > len(r.buf) {
		return 0
	}
	return len(r.buf) - r.off
}

func (r *Reader) fail(field string, expected int) {
	if r.err == nil {
		r.err = &ErrShortBuffer{Field: field, Offset: r.off, Expected: expected, Got: r.Remaining()}
	}
}

// Bytes reads n raw bytes, returning a copy so callers never alias the
// caller-owned input buffer.
func (r *Reader) Bytes(field string, n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.Remaining() < n {
		r.fail(field, n)
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out
}

// FixedBytes reads n bytes into dst, which must have length n.
func (r *Reader) FixedBytes(field string, dst []byte) {
	if r.err != nil {
		return
	}
	n := len(dst)
	if r.Remaining() < n {
		r.fail(field, n)
		return
	}
	copy(dst, r.buf[r.off:r.off+n])
	r.off += n
}

// Skip advances the cursor by n bytes without copying (reserved fields).
func (r *Reader) Skip(field string, n int) {
	if r.err != nil {
		return
	}
	if r.Remaining() < n {
		r.fail(field, n)
		return
	}
	r.off += n
}

// U16 reads a little-endian uint16.
func (r *Reader) U16(field string) uint16 {
	if r.err != nil {
		return 0
	}
	if r.Remaining() < 2 {
		r.fail(field, 2)
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

// U32 reads a little-endian uint32.
func (r *Reader) U32(field string) uint32 {
	if r.err != nil {
		return 0
	}
	if r.Remaining() < 4 {
		r.fail(field, 4)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

// U64 reads a little-endian uint64.
func (r *Reader) U64(field string) uint64 {
	if r.err != nil {
		return 0
	}
	if r.Remaining() < 8 {
		r.fail(field, 8)
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

// Rest returns every remaining byte as a fresh copy, consuming the reader.
func (r *Reader) Rest(field string) []byte {
	if r.err != nil {
		return nil
	}
	out := make([]byte, r.Remaining())
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}

// RequireLenPrefixed checks that a size field read from the wire does not
// exceed the remaining buffer, recording an ErrShortBuffer (reported by Err)
// if it does. Variable length regions must call this before slicing.
func (r *Reader) RequireLenPrefixed(field string, n uint32) {
	if r.err != nil {
		return
	}
	if uint64(n) > uint64(r.Remaining()) {
		r.fail(field, int(n))
	}
}

// PutU16 appends a little-endian uint16 to buf.
func PutU16(buf []byte, v uint16) []byte {
	tmp := make([]byte, 2)
	binary.LittleEndian.PutUint16(tmp, v)
	return append(buf, tmp...)
}

// PutU32 appends a little-endian uint32 to buf.
func PutU32(buf []byte, v uint32) []byte {
	tmp := make([]byte, 4)
	binary.LittleEndian.PutUint32(tmp, v)
	return append(buf, tmp...)
}
