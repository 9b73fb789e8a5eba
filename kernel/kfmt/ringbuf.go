package kfmt

import "io"

// ringBufferSize is large enough for a complete exception report (message,
// register dump and a full stack trace). It must be a power of 2.
const ringBufferSize = 4096

// ringBuffer keeps the most recent ringBufferSize bytes written to it. Older
// bytes are silently dropped.
type ringBuffer struct {
	buffer [ringBufferSize]byte
	head   int // index of the oldest byte
	count  int
}

// Write appends p, overwriting the oldest data once the buffer is full.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[(rb.head+rb.count)&(ringBufferSize-1)] = b
		if rb.count == ringBufferSize {
			rb.head = (rb.head + 1) & (ringBufferSize - 1)
		} else {
			rb.count++
		}
	}

	return len(p), nil
}

// Read drains up to len(p) of the oldest buffered bytes into p.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.count == 0 {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && rb.count > 0 {
		// copy the contiguous run that starts at head
		run := ringBufferSize - rb.head
		if run > rb.count {
			run = rb.count
		}
		c := copy(p[n:], rb.buffer[rb.head:rb.head+run])
		n += c
		rb.head = (rb.head + c) & (ringBufferSize - 1)
		rb.count -= c
	}

	return n, nil
}
