package respio

import "fmt"

// Value is one decoded RESP value. Type holds the wire tag and selects which
// payload field is meaningful: Str for status, error and bulk strings, Int for
// integers. Values are plain comparable structs.
type Value struct {
	Type byte
	Str  string
	Int  int64
}

// Pong is the reply the server sends for every read.
var Pong = SimpleString("PONG")

func SimpleString(s string) Value {
	return Value{Type: RespStatus, Str: s}
}

func SimpleError(s string) Value {
	return Value{Type: RespError, Str: s}
}

func Integer(n int64) Value {
	return Value{Type: RespInt, Int: n}
}

func BulkString(s string) Value {
	return Value{Type: RespString, Str: s}
}

// Kind returns a short lower-case name of the value type, used for log fields and
// metric labels.
func (v Value) Kind() string {
	return kindName(v.Type)
}

func kindName(tag byte) string {
	switch tag {
	case RespStatus:
		return "simple_string"
	case RespError:
		return "simple_error"
	case RespInt:
		return "integer"
	case RespString:
		return "bulk_string"
	default:
		return "unknown"
	}
}

// String returns a string representation of the Value.
// Only for debugging purposes
func (v Value) String() string {
	switch v.Type {
	case RespStatus:
		return fmt.Sprintf("Status: \"%s\"", v.Str)
	case RespError:
		return fmt.Sprintf("Error: %s", v.Str)
	case RespInt:
		return fmt.Sprintf("Integer: %d", v.Int)
	case RespString:
		return fmt.Sprintf("String: \"%s\"", v.Str)
	default:
		return fmt.Sprintf("(unknown type: %c)", v.Type)
	}
}
