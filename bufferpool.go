package socket

import "github.com/valyala/bytebufferpool"

// pooledBuffer is the backing type for reusable outbound frame buffers.
type pooledBuffer = bytebufferpool.ByteBuffer

// framePool supplies the byte buffers Conn copies encoded frames into
// before queueing them for send. Pooling them here is the concrete form
// of the "buffer reuse heuristics" this library cares about: a buffer is
// acquired when a message is queued, and returned to the pool by the
// send-completion path once the write of it has returned and the frame
// has been popped (outside the queue lock, before the next frame is
// written), so a buffer is never reused while a write of it is in flight.
var framePool bytebufferpool.Pool

// acquirePooledBuffer returns a pooled buffer with at least size bytes
// of spare capacity.
func acquirePooledBuffer(size int) *pooledBuffer {
	buf := framePool.Get()
	buf.B = buf.B[:0]
	if cap(buf.B) < size {
		buf.B = make([]byte, 0, size)
	}
	return buf
}

// releasePooledBuffer returns buf to the pool. Safe to call with nil.
func releasePooledBuffer(buf *pooledBuffer) {
	if buf != nil {
		framePool.Put(buf)
	}
}
