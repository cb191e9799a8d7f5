// Package storage implements the blob backends videos are stored in.
package storage

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/molpadia/molpalearn/internal/domain/apperr"
)

// Buffer size used to move content into a backend.
const chunkSize = 1 << 20

// Generate a unique storage name keeping the lower-cased extension of the
// original filename, which is never used as a key itself.
func GenerateName(original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if !validExt(ext) {
		ext = ""
	}
	return uuid.NewString() + ext
}

func validExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 16 {
		return false
	}
	for _, c := range ext[1:] {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// Determine whether the name is a plain generated name, not a path.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

func errTooLarge(max int64) error {
	return apperr.Newf(apperr.KindPayloadTooLarge, "file too large, max size is %d bytes", max)
}

// A reader which counts the bytes read and fails once more than max bytes
// were read. Failures of the source are kept in err so that a broken client
// body is not mistaken for a failing backend.
type limitedReader struct {
	r   io.Reader
	max int64
	n   int64
	err error
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.max {
		l.err = errTooLarge(l.max)
		return n, l.err
	}
	if err != nil && err != io.EOF {
		l.err = apperr.Wrap(apperr.KindValidation, err, "upload body is incomplete")
		return n, l.err
	}
	return n, err
}
