package web_service

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pzhenzhou/respd/pkg/respio"
)

const (
	DecodePath = "/decode"

	maxDecodeBody = 64 * 1024
)

var _ WebHandler = (*DecodeHandler)(nil)

// DecodeHandler decodes the raw request body as one RESP value.
type DecodeHandler struct {
	decoder *respio.Decoder
}

type DecodeResult struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type DecodeFailure struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func (d *DecodeHandler) Path() string {
	return DecodePath
}

func (d *DecodeHandler) Method() HttpMethod {
	return POST
}

func (d *DecodeHandler) Handler(ctx *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxDecodeBody))
	if err != nil {
		code := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		ctx.JSON(code, ApiResponse{Code: code, Message: err.Error()})
		return
	}
	decoder := d.decoder
	if decoder == nil {
		decoder = respio.NewDecoder()
	}
	v, err := decoder.Decode(body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ApiResponse{
			Code:    http.StatusBadRequest,
			Message: "decode failed",
			Data: DecodeFailure{
				Kind:  respio.ErrorKind(err),
				Error: err.Error(),
			},
		})
		return
	}
	var value any = v.Str
	if v.Type == respio.RespInt {
		value = v.Int
	}
	ctx.JSON(http.StatusOK, ApiResponse{
		Code:    http.StatusOK,
		Message: "success",
		Data: DecodeResult{
			Type:  v.Kind(),
			Value: value,
		},
	})
}
