package httprange

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}

func TestChunksWindow(t *testing.T) {
	data := randomBytes(10_000)
	r := bytes.NewReader(data)
	var tests = []ByteRange{
		{0, 9999, 10000},
		{0, 0, 10000},
		{9999, 9999, 10000},
		{123, 4567, 10000},
		{5000, 9999, 10000},
	}
	for _, br := range tests {
		for _, size := range []int{1, 7, 1000, ChunkSize} {
			var out bytes.Buffer
			n, err := NewChunksSize(r, br, size).WriteTo(&out)
			if err != nil {
				t.Fatalf("WriteTo(%+v, %d) returned error %v", br, size, err)
			}
			if n != br.Length() {
				t.Errorf("WriteTo(%+v, %d) wrote %d bytes, want %d", br, size, n, br.Length())
			}
			if !bytes.Equal(out.Bytes(), data[br.Start:br.End+1]) {
				t.Errorf("WriteTo(%+v, %d) produced different bytes", br, size)
			}
		}
	}
}

func TestChunksBounded(t *testing.T) {
	data := randomBytes(2*ChunkSize + 10)
	c := NewChunks(bytes.NewReader(data), ByteRange{0, int64(len(data)) - 1, int64(len(data))})
	var sizes []int
	for {
		p, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		sizes = append(sizes, len(p))
	}
	want := []int{ChunkSize, ChunkSize, 10}
	if len(sizes) != len(want) {
		t.Fatalf("chunk sizes = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("chunk %d size = %d, want %d", i, sizes[i], want[i])
		}
	}
	// Not restartable.
	if _, err := c.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after exhaustion, got %v", err)
	}
}

func TestChunksPrematureEOF(t *testing.T) {
	// The resource shrank after its size was taken.
	data := randomBytes(100)
	var out bytes.Buffer
	n, err := NewChunksSize(bytes.NewReader(data), ByteRange{50, 199, 200}, 16).WriteTo(&out)
	if err != nil {
		t.Fatalf("expected early end without error, got %v", err)
	}
	if n != 50 || !bytes.Equal(out.Bytes(), data[50:]) {
		t.Errorf("wrote %d bytes, want the 50 available bytes", n)
	}
}

type failingWriter struct{ after int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("connection reset by peer")
	}
	w.after--
	return len(p), nil
}

func TestChunksWriterGone(t *testing.T) {
	data := randomBytes(1000)
	n, err := NewChunksSize(bytes.NewReader(data), ByteRange{0, 999, 1000}, 100).WriteTo(&failingWriter{after: 2})
	if err == nil {
		t.Fatal("expected the writer error to surface")
	}
	if n != 200 {
		t.Errorf("wrote %d bytes before failure, want 200", n)
	}
}
