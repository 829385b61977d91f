package wire

// WordSize is the width of one ABI word in bytes.
const WordSize = 32

// Reader is a bounds-checked view over an argument buffer (the payload
// after the selector). Every accessor validates buffer length before
// reading, so malformed or adversarial payloads can never cause an
// out-of-bounds read; they surface as ok=false instead.
type Reader struct {
	buf []byte
}

// NewReader wraps an argument buffer. The buffer is not copied;
// callers must not mutate it while the Reader is in use.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Words returns the number of complete words in the buffer.
func (r *Reader) Words() int {
	return len(r.buf) / WordSize
}

// Word returns the i-th fixed word.
func (r *Reader) Word(i int) (Word, bool) {
	var w Word
	if i < 0 || (i+1)*WordSize > len(r.buf) {
		return w, false
	}
	copy(w[:], r.buf[i*WordSize:])
	return w, true
}

// AddressAt returns the address held in the low 20 bytes of word i.
func (r *Reader) AddressAt(i int) (Address, bool) {
	w, ok := r.Word(i)
	if !ok {
		return ZeroAddress, false
	}
	return w.Address(), true
}

// Uint64At returns word i as an unsigned integer. Fails on words that
// do not fit in 64 bits.
func (r *Reader) Uint64At(i int) (uint64, bool) {
	w, ok := r.Word(i)
	if !ok {
		return 0, false
	}
	return w.Uint64()
}

// BytesAt follows the dynamic offset stored in word i and returns the
// length-prefixed byte payload it points to.
//
// Layout: word i holds an offset relative to the start of the buffer;
// at that offset sits a length word, followed by the payload padded to
// a word boundary. Every step is length-checked.
func (r *Reader) BytesAt(i int) ([]byte, bool) {
	off, ok := r.Uint64At(i)
	if !ok {
		return nil, false
	}
	return r.bytesAtOffset(off)
}

// bytesAtOffset reads a length-prefixed payload at an absolute offset.
func (r *Reader) bytesAtOffset(off uint64) ([]byte, bool) {
	if off > uint64(len(r.buf)) || off+WordSize > uint64(len(r.buf)) {
		return nil, false
	}
	var lw Word
	copy(lw[:], r.buf[off:])
	n, ok := lw.Uint64()
	if !ok {
		return nil, false
	}
	start := off + WordSize
	if start+n < start || start+n > uint64(len(r.buf)) {
		return nil, false
	}
	return r.buf[start : start+n], true
}

// TupleSlice follows the dynamic offset in word i to an array of
// dynamic tuples and returns one Reader per element.
//
// Layout: word i holds the array offset; at the offset sits the
// element count, then one offset word per element (relative to the
// start of the element offsets), each pointing at a tuple region.
// Tuple regions extend to the end of the buffer; the per-field checks
// inside each element Reader keep reads in bounds.
func (r *Reader) TupleSlice(i int) ([]*Reader, bool) {
	arrOff, ok := r.Uint64At(i)
	if !ok || arrOff > uint64(len(r.buf)) || arrOff+WordSize > uint64(len(r.buf)) {
		return nil, false
	}
	var cw Word
	copy(cw[:], r.buf[arrOff:])
	count, ok := cw.Uint64()
	if !ok {
		return nil, false
	}
	// Cap element count by what could possibly fit: one offset word per
	// element must be present.
	base := arrOff + WordSize
	if count > uint64(len(r.buf))/WordSize {
		return nil, false
	}
	if base+count*WordSize > uint64(len(r.buf)) {
		return nil, false
	}
	elems := make([]*Reader, 0, count)
	for e := uint64(0); e < count; e++ {
		var ow Word
		copy(ow[:], r.buf[base+e*WordSize:])
		elemOff, ok := ow.Uint64()
		if !ok {
			return nil, false
		}
		abs := base + elemOff
		if abs < base || abs > uint64(len(r.buf)) {
			return nil, false
		}
		elems = append(elems, NewReader(r.buf[abs:]))
	}
	return elems, true
}
