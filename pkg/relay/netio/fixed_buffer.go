package netio

// FixedBuffer is a byte container whose storage is allocated once and reused
// for the life of a connection. It never reallocates.
//
// Invariant: Len() < Cap() after every successful operation. Content whose
// size would reach or exceed the capacity is rejected and the buffer is left
// cleared (zeroed), never partially overwritten.
type FixedBuffer struct {
	block  []byte
	length int
}

// NewFixedBuffer allocates a buffer holding up to capacity-1 bytes.
func NewFixedBuffer(capacity int) *FixedBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &FixedBuffer{block: make([]byte, capacity)}
}

// Cap returns the fixed capacity.
func (b *FixedBuffer) Cap() int {
	return len(b.block)
}

// Len returns the occupied length.
func (b *FixedBuffer) Len() int {
	return b.length
}

// Bytes returns the occupied region. The slice aliases the buffer and is
// valid until the next mutating call.
func (b *FixedBuffer) Bytes() []byte {
	return b.block[:b.length]
}

// String returns a copy of the occupied region.
func (b *FixedBuffer) String() string {
	return string(b.block[:b.length])
}

// At returns the byte at pos within the occupied region.
func (b *FixedBuffer) At(pos int) (byte, bool) {
	if pos < 0 || pos >= b.length {
		return 0, false
	}
	return b.block[pos], true
}

// Clear zeroes the whole block and resets the length.
func (b *FixedBuffer) Clear() {
	clear(b.block)
	b.length = 0
}

// Load replaces the content with p.
func (b *FixedBuffer) Load(p []byte) error {
	if len(p) >= len(b.block) {
		b.Clear()
		return ErrCapacityExceeded
	}
	b.Clear()
	b.length = copy(b.block, p)
	return nil
}

// LoadString is Load for string content.
func (b *FixedBuffer) LoadString(s string) error {
	if len(s) >= len(b.block) {
		b.Clear()
		return ErrCapacityExceeded
	}
	b.Clear()
	b.length = copy(b.block, s)
	return nil
}

// AppendByte adds one byte after the occupied region.
func (b *FixedBuffer) AppendByte(c byte) error {
	if b.length+1 >= len(b.block) {
		b.Clear()
		return ErrCapacityExceeded
	}
	b.block[b.length] = c
	b.length++
	return nil
}

// tail exposes the writable region after the occupied bytes, capped so that
// the capacity invariant survives filling it completely.
func (b *FixedBuffer) tail(n int) ([]byte, error) {
	if b.length+n >= len(b.block) {
		b.Clear()
		return nil, ErrCapacityExceeded
	}
	return b.block[b.length : b.length+n], nil
}
