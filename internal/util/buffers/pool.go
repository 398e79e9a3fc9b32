package buffers

import (
	"sync"
	"sync/atomic"

	"github.com/dualpane/rc/internal/constants"
)

// Pool of reusable copy buffers. Every transfer worker copies in
// constants.CopyBufferSize chunks; pooling keeps concurrent jobs from
// allocating a fresh buffer per file.

var (
	copyAllocations atomic.Int64 // New buffers created by the pool
	copyGets        atomic.Int64 // Total GetCopyBuffer calls
)

var copyPool = &sync.Pool{
	New: func() interface{} {
		copyAllocations.Add(1)
		buf := make([]byte, constants.CopyBufferSize)
		return &buf
	},
}

// GetCopyBuffer retrieves a 64KB buffer from the pool.
// The buffer must be returned with PutCopyBuffer when done.
//
// Usage:
//
//	buf := buffers.GetCopyBuffer()
//	defer buffers.PutCopyBuffer(buf)
//	n, err := src.Read(*buf)
//	// Use (*buf)[:n] for actual data
func GetCopyBuffer() *[]byte {
	copyGets.Add(1)
	return copyPool.Get().(*[]byte)
}

// PutCopyBuffer returns a buffer to the pool for reuse.
// Only buffers of the correct size are pooled.
func PutCopyBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.CopyBufferSize {
		copyPool.Put(buf)
	}
}

// Stats holds buffer pool counters.
type Stats struct {
	CopyBufferSize  int   // Size of copy buffers (bytes)
	CopyAllocations int64 // Buffers created by the pool
	CopyGets        int64 // Buffers handed out
}

// GetStats returns current buffer pool statistics.
func GetStats() Stats {
	return Stats{
		CopyBufferSize:  constants.CopyBufferSize,
		CopyAllocations: copyAllocations.Load(),
		CopyGets:        copyGets.Load(),
	}
}
