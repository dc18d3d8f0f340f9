// Package chunkproto implements the chunk wire format shared by the client,
// the storage node, and manager-facing tooling: a single JSON header line
// terminated by '\n', followed by the raw chunk bytes.
package chunkproto

import (
	"bufio"
	"crypto/md5" //nolint:gosec // content digest, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxHeaderLine bounds the header line length so a malformed or hostile
// stream cannot exhaust memory scanning for the newline delimiter.
const MaxHeaderLine = 4096

// Header is the per-chunk metadata carried in-band ahead of the chunk body.
type Header struct {
	ChunkIndex  int    `json:"chunk_index"`
	Filename    string `json:"filename"`
	TotalChunks int    `json:"total_chunks"`
	MD5         string `json:"md5"`
}

// ErrHeaderTooLong is returned when no '\n' is found within MaxHeaderLine bytes.
var ErrHeaderTooLong = errors.New("chunkproto: header line exceeds maximum length")

// NewBodyReader wraps r in a *bufio.Reader sized so ReadHeader cannot scan
// past MaxHeaderLine bytes looking for the delimiter.
func NewBodyReader(r io.Reader) *bufio.Reader {
	return bufio.NewReaderSize(r, MaxHeaderLine)
}

// WriteHeader serializes h as one JSON line terminated by '\n'.
func WriteHeader(w io.Writer, h Header) error {
	b, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("chunkproto: marshal header: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// ReadHeader reads and parses the leading header line from r, leaving the
// reader positioned at the start of the chunk body. br must be a *bufio.Reader
// so the line scan and the body read share one buffer.
func ReadHeader(br *bufio.Reader) (Header, error) {
	line, err := br.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return Header{}, ErrHeaderTooLong
		}
		return Header{}, fmt.Errorf("chunkproto: read header: %w", err)
	}
	if len(line) > MaxHeaderLine {
		return Header{}, ErrHeaderTooLong
	}

	var h Header
	if err := json.Unmarshal(line[:len(line)-1], &h); err != nil {
		return Header{}, fmt.Errorf("chunkproto: decode header: %w", err)
	}
	return h, nil
}

// Digest returns the lowercase hex MD5 digest of body.
func Digest(body []byte) string {
	sum := md5.Sum(body) //nolint:gosec // content digest, not a security boundary
	return hex.EncodeToString(sum[:])
}
