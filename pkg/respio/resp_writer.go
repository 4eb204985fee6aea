package respio

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pzhenzhou/respd/pkg/common"
)

const (
	DefaultBufferSize = 8 * common.KB // 8KB
	MaxBufferSize     = 512 * common.MB
)

type RespWriter struct {
	writer *bufio.Writer
}

// NewRespWriterSize is used where many writers live at once, e.g. one per session.
func NewRespWriterSize(w io.Writer, size int) *RespWriter {
	return &RespWriter{
		writer: bufio.NewWriterSize(w, size),
	}
}

// WriteStatus writes a status response (e.g., "OK")
func (w *RespWriter) WriteStatus(status string) error {
	if err := w.writer.WriteByte(RespStatus); err != nil {
		return err
	}
	if _, err := w.writer.WriteString(status); err != nil {
		return err
	}
	return w.writeCRLF()
}

// WriteError writes an error response
func (w *RespWriter) WriteError(msg string) error {
	if err := w.writer.WriteByte(RespError); err != nil {
		return err
	}
	if _, err := w.writer.WriteString(msg); err != nil {
		return err
	}
	return w.writeCRLF()
}

func (w *RespWriter) WriteInt64(n int64) error {
	if err := w.writer.WriteByte(RespInt); err != nil {
		return err
	}
	if _, err := w.writer.WriteString(strconv.FormatInt(n, 10)); err != nil {
		return err
	}
	return w.writeCRLF()
}

// WriteBulkString writes a bulk string
func (w *RespWriter) WriteBulkString(s string) error {
	if err := w.writer.WriteByte(RespString); err != nil {
		return err
	}
	if _, err := w.writer.WriteString(strconv.Itoa(len(s))); err != nil {
		return err
	}
	if err := w.writeCRLF(); err != nil {
		return err
	}
	if _, err := w.writer.WriteString(s); err != nil {
		return err
	}
	return w.writeCRLF()
}

// Write writes a complete RESP value to the underlying bufio.Writer.
func (w *RespWriter) Write(v Value) error {
	switch v.Type {
	case RespStatus:
		return w.WriteStatus(v.Str)
	case RespError:
		return w.WriteError(v.Str)
	case RespInt:
		return w.WriteInt64(v.Int)
	case RespString:
		return w.WriteBulkString(v.Str)
	default:
		logger.Info("RespWriter Unknown value type", "type", v.Type)
		return decodeErr(ErrUnsupportedType, v.Type, nil)
	}
}

func (w *RespWriter) writeCRLF() error {
	_, err := w.writer.WriteString(CRLF)
	return err
}

// Flush writes any buffered data to the underlying io.Writer
func (w *RespWriter) Flush() error {
	return w.writer.Flush()
}

// AppendValue appends the wire form of v to dst. Unknown types append nothing.
func AppendValue(dst []byte, v Value) []byte {
	switch v.Type {
	case RespStatus, RespError:
		dst = append(dst, v.Type)
		dst = append(dst, v.Str...)
	case RespInt:
		dst = append(dst, RespInt)
		dst = strconv.AppendInt(dst, v.Int, 10)
	case RespString:
		dst = append(dst, RespString)
		dst = strconv.AppendInt(dst, int64(len(v.Str)), 10)
		dst = append(dst, CRLF...)
		dst = append(dst, v.Str...)
	default:
		return dst
	}
	return append(dst, CRLF...)
}
