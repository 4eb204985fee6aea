package respio

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/pzhenzhou/respd/pkg/common"
)

var (
	logger = common.InitLogger().WithName("resp")

	ErrTooLarge   = errors.New("value too large")
	ErrBadCRLFEnd = errors.New("bad CRLF end")
)

// RespReader cuts a byte stream into complete RESP value frames, so every frame
// can be handed to a Decoder as one self-contained buffer.
type RespReader struct {
	reader  *bufio.Reader
	decoder *Decoder
}

func NewRespReader(r io.Reader) *RespReader {
	return &RespReader{
		reader:  bufio.NewReaderSize(r, DefaultBufferSize),
		decoder: defaultDecoder,
	}
}

// WithDecoder replaces the decoder used by Read.
func (r *RespReader) WithDecoder(d *Decoder) *RespReader {
	r.decoder = d
	return r
}

// Read reads one frame and decodes it.
func (r *RespReader) Read() (Value, error) {
	frame, err := r.ReadFrame()
	if err != nil {
		return Value{}, err
	}
	return r.decoder.Decode(frame)
}

// ReadFrame returns the bytes of the next complete value, tag and trailing CRLF
// included. Bulk strings span two lines; every other tag is a single line, so
// unknown tags still come back whole and fail later in the decoder.
func (r *RespReader) ReadFrame() ([]byte, error) {
	line, err := r.readLine()
	if err != nil {
		return nil, err
	}
	if line[0] != RespString {
		return line, nil
	}

	length, err := parseInt64(line[1 : len(line)-len(CRLF)])
	if err != nil || length < 0 {
		// not a bulk string we can frame; let the decoder report it
		return line, nil
	}
	if length > MaxBufferSize {
		return nil, ErrTooLarge
	}

	frame := make([]byte, len(line), len(line)+int(length)+len(CRLF))
	copy(frame, line)
	frame = frame[:len(frame)+int(length)+len(CRLF)]
	if _, err := io.ReadFull(r.reader, frame[len(line):]); err != nil {
		return nil, err
	}
	if !hasTerminatorSuffix(frame) {
		return nil, ErrBadCRLFEnd
	}
	return frame, nil
}

// readLine returns a copy of the next line including its CRLF.
func (r *RespReader) readLine() ([]byte, error) {
	// ReadSlice stops after finding '\n' but returns the entire slice including that '\n'.
	line, err := r.reader.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, ErrTooLarge
		}
		return nil, err
	}
	if len(line) < minValueLen || line[len(line)-2] != '\r' {
		return nil, ErrBadCRLFEnd
	}
	return bytes.Clone(line), nil
}
