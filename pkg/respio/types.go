package respio

const (
	CRLF = "\r\n"
)

var terminator = [2]byte{'\r', '\n'}

const (
	RespStatus = byte('+') // +<string>\r\n
	RespError  = byte('-') // -<string>\r\n
	RespInt    = byte(':') // :<number>\r\n
	RespString = byte('$') // $<length>\r\n<bytes>\r\n
)

// Tags of the RESP3 types that are recognized on the wire but not decoded yet.
// Seeing one of them yields an UnsupportedType error.
const (
	RespArray     = byte('*') // *<len>\r\n...
	RespNil       = byte('_') // _\r\n
	RespBool      = byte('#') // #t\r\n or #f\r\n
	RespFloat     = byte(',') // ,<floating-point-number>\r\n
	RespBigInt    = byte('(') // (<big number>\r\n
	RespBlobError = byte('!') // !<length>\r\n<bytes>\r\n
	RespVerbatim  = byte('=') // =<length>\r\nFORMAT:<bytes>\r\n
	RespMap       = byte('%') // %<len>\r\n(key)(value)...
	RespSet       = byte('~') // ~<len>\r\n...
	RespPush      = byte('>') // ><len>\r\n...
)
