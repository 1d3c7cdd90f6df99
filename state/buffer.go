package state

// LiveBuffer is the on-chain Buffer variant: a shared-mutable view directly
// into a live host account's data, so mutations are visible to the host
// immediately.
type LiveBuffer struct {
	data     []byte
	lamports *uint64
}

// NewLiveBuffer wraps data/lamports without copying; the caller retains
// ownership of both slices/pointers for the lifetime of the Backend.
func NewLiveBuffer(data []byte, lamports *uint64) *LiveBuffer {
	return &LiveBuffer{data: data, lamports: lamports}
}

func (b *LiveBuffer) Data() []byte       { return b.data }
func (b *LiveBuffer) Lamports() uint64   { return *b.lamports }
func (b *LiveBuffer) SetLamports(v uint64) { *b.lamports = v }
func (b *LiveBuffer) Writable() bool     { return true }

// ClonedBuffer is the emulator's Buffer variant: a private copy of a
// remote-fetched account, with no writeback path.
type ClonedBuffer struct {
	data     []byte
	lamports uint64
}

// NewClonedBuffer copies data into a private buffer.
func NewClonedBuffer(data []byte, lamports uint64) *ClonedBuffer {
	out := make([]byte, len(data))
	copy(out, data)
	return &ClonedBuffer{data: out, lamports: lamports}
}

func (b *ClonedBuffer) Data() []byte       { return b.data }
func (b *ClonedBuffer) Lamports() uint64   { return b.lamports }
func (b *ClonedBuffer) SetLamports(v uint64) { b.lamports = v }
func (b *ClonedBuffer) Writable() bool     { return false }
