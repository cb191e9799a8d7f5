package httprange

import (
	"io"
)

const ChunkSize = 1 << 20

// A lazy sequence of chunks covering a byte window of a resource. The
// sequence can be consumed only once.
type Chunks struct {
	r         io.ReaderAt
	offset    int64
	remaining int64
	buf       []byte
}

func NewChunks(r io.ReaderAt, br ByteRange) *Chunks {
	return NewChunksSize(r, br, ChunkSize)
}

func NewChunksSize(r io.ReaderAt, br ByteRange, size int) *Chunks {
	if size <= 0 {
		size = ChunkSize
	}
	n := br.Length()
	if int64(size) > n && n > 0 {
		size = int(n)
	}
	return &Chunks{r: r, offset: br.Start, remaining: n, buf: make([]byte, size)}
}

// Get the next chunk. The returned slice is only valid until the next call.
// Returns io.EOF when the window is exhausted or the resource ended early.
func (c *Chunks) Next() ([]byte, error) {
	if c.remaining <= 0 {
		return nil, io.EOF
	}
	p := c.buf
	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}
	n, err := c.r.ReadAt(p, c.offset)
	c.offset += int64(n)
	c.remaining -= int64(n)
	if err == io.EOF || (err == nil && n == 0) {
		// Truncated resource, end early without padding.
		c.remaining = 0
		if n > 0 {
			return p[:n], nil
		}
		return nil, io.EOF
	}
	if err != nil {
		c.remaining = 0
		return nil, err
	}
	return p[:n], nil
}

// Write the remaining chunks to w.
func (c *Chunks) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for {
		p, err := c.Next()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		n, err := w.Write(p)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
}
