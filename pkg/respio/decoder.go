package respio

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

var (
	ErrEmpty              = errors.New("empty RESP buffer")
	ErrBadTermination     = errors.New("bad CRLF termination")
	ErrInvalidEncoding    = errors.New("payload is not valid UTF-8")
	ErrInvalidInteger     = errors.New("invalid RESP integer")
	ErrMissingLengthField = errors.New("bulk string has no length field")
	ErrUnsupportedType    = errors.New("unsupported RESP type")
	ErrInvalidLength      = errors.New("invalid bulk string length")
	ErrLengthMismatch     = errors.New("bulk string length mismatch")
)

// minValueLen is a tag byte followed by CRLF.
const minValueLen = 1 + len(CRLF)

// DecodeError reports why a buffer could not be decoded. Kind is one of the
// Err* sentinels above, so callers match with errors.Is(err, ErrInvalidInteger).
type DecodeError struct {
	Kind  error
	Tag   byte
	Cause error
}

func (e *DecodeError) Error() string {
	msg := e.Kind.Error()
	if errors.Is(e.Kind, ErrUnsupportedType) {
		msg = fmt.Sprintf("%s %q", msg, e.Tag)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func decodeErr(kind error, tag byte, cause error) error {
	return &DecodeError{Kind: kind, Tag: tag, Cause: cause}
}

// ErrorKind maps a decode failure to a short label for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmpty):
		return "empty"
	case errors.Is(err, ErrBadTermination):
		return "bad_termination"
	case errors.Is(err, ErrInvalidEncoding):
		return "invalid_encoding"
	case errors.Is(err, ErrInvalidInteger):
		return "invalid_integer"
	case errors.Is(err, ErrMissingLengthField):
		return "missing_length_field"
	case errors.Is(err, ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, ErrInvalidLength):
		return "invalid_length"
	case errors.Is(err, ErrLengthMismatch):
		return "length_mismatch"
	default:
		return "other"
	}
}

type DecoderOption func(d *Decoder)

// WithLenientBulkLength makes the decoder use a bulk string's length field only to
// find where the content starts. The declared length is not checked against the
// content.
func WithLenientBulkLength() DecoderOption {
	return func(d *Decoder) {
		d.lenientBulkLength = true
	}
}

// Decoder decodes a single RESP value spanning a whole buffer. It holds no
// state between calls and is safe for concurrent use.
type Decoder struct {
	lenientBulkLength bool
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDecoder = NewDecoder()

// DecodeOne decodes buf as exactly one RESP value with the strict default decoder.
func DecodeOne(buf []byte) (Value, error) {
	return defaultDecoder.Decode(buf)
}

// Decode decodes buf, which must hold exactly one complete value: a tag byte, a
// body, and a trailing CRLF.
func (d *Decoder) Decode(buf []byte) (Value, error) {
	if len(buf) == 0 {
		return Value{}, decodeErr(ErrEmpty, 0, nil)
	}
	tag := buf[0]
	if len(buf) < minValueLen || !hasTerminatorSuffix(buf) {
		return Value{}, decodeErr(ErrBadTermination, tag, nil)
	}
	body := buf[1 : len(buf)-len(CRLF)]

	switch tag {
	case RespStatus:
		s, err := decodeText(tag, body)
		if err != nil {
			return Value{}, err
		}
		return SimpleString(s), nil
	case RespError:
		s, err := decodeText(tag, body)
		if err != nil {
			return Value{}, err
		}
		return SimpleError(s), nil
	case RespInt:
		n, err := decodeInteger(body)
		if err != nil {
			return Value{}, err
		}
		return Integer(n), nil
	case RespString:
		return d.decodeBulkString(body)
	default:
		return Value{}, decodeErr(ErrUnsupportedType, tag, nil)
	}
}

func decodeText(tag byte, body []byte) (string, error) {
	if !utf8.Valid(body) {
		return "", decodeErr(ErrInvalidEncoding, tag, nil)
	}
	return string(body), nil
}

func decodeInteger(body []byte) (int64, error) {
	if !utf8.Valid(body) {
		return 0, decodeErr(ErrInvalidEncoding, RespInt, nil)
	}
	n, err := parseInt64(body)
	if err != nil {
		return 0, decodeErr(ErrInvalidInteger, RespInt, err)
	}
	return n, nil
}

// decodeBulkString splits "<length>\r\n<content>" at the first CRLF.
func (d *Decoder) decodeBulkString(body []byte) (Value, error) {
	idx, ok := FindTerminator(body)
	if !ok {
		return Value{}, decodeErr(ErrMissingLengthField, RespString, nil)
	}
	lengthField := body[:idx]
	content := body[idx+len(CRLF):]

	if !d.lenientBulkLength {
		declared, err := parseInt64(lengthField)
		if err != nil || declared < 0 {
			return Value{}, decodeErr(ErrInvalidLength, RespString, err)
		}
		if declared != int64(len(content)) {
			return Value{}, decodeErr(ErrLengthMismatch, RespString,
				fmt.Errorf("declared %d, got %d bytes", declared, len(content)))
		}
	}

	s, err := decodeText(RespString, content)
	if err != nil {
		return Value{}, err
	}
	return BulkString(s), nil
}

// parseInt64 parses an optionally signed decimal. Short inputs take a
// hand-rolled path; everything else goes through strconv for overflow checks.
func parseInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}
	if len(b) < 10 { // Fast path for small numbers
		var neg, i = false, 0
		switch b[0] {
		case '-':
			neg = true
			fallthrough
		case '+':
			i++
		}
		if len(b) != i {
			var n int64
			for ; i < len(b) && b[i] >= '0' && b[i] <= '9'; i++ {
				n = int64(b[i]-'0') + n*10
			}
			if len(b) == i {
				if neg {
					n = -n
				}
				return n, nil
			}
		}
	}
	return strconv.ParseInt(string(b), 10, 64)
}
