package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/fault"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/types"
	"github.com/BrandonDHaskell/geowatch/internal/wire"
)

// maxRequestBody caps the request body for both encodings.  A full batch
// of samples is well under this in JSON.
const maxRequestBody = 1 << 20

const protobufType = "application/x-protobuf"

// isProtobuf reports whether ct names a protobuf payload.  Devices send
// "application/x-protobuf".
func isProtobuf(ct string) bool {
	ct, _, _ = strings.Cut(ct, ";")
	switch strings.TrimSpace(ct) {
	case protobufType, "application/protobuf", "application/octet-stream":
		return true
	}
	return false
}

// wantsProtobuf answers in protobuf when the client sent protobuf or
// asked for it explicitly.
func wantsProtobuf(r *http.Request) bool {
	return isProtobuf(r.Header.Get("Content-Type")) || isProtobuf(r.Header.Get("Accept"))
}

// bind decodes the body into v.  An empty body leaves v zero.  On failure
// it has already written a 400.
func (s *Server) bind(c *gin.Context, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.write(c, http.StatusRequestEntityTooLarge, types.ErrorBody{Error: "too_large", Message: "request body too large"})
			return false
		}
		s.write(c, http.StatusBadRequest, types.ErrorBody{Error: "bad_body", Message: "could not read request body"})
		return false
	}
	if len(body) == 0 {
		return true
	}

	if isProtobuf(c.GetHeader("Content-Type")) {
		var st structpb.Struct
		if err := proto.Unmarshal(body, &st); err != nil {
			s.write(c, http.StatusBadRequest, types.ErrorBody{Error: "bad_protobuf", Message: "invalid protobuf body"})
			return false
		}
		if err := wire.FromStruct(&st, v); err != nil {
			s.write(c, http.StatusBadRequest, types.ErrorBody{Error: "bad_protobuf", Message: err.Error()})
			return false
		}
		return true
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.write(c, http.StatusBadRequest, types.ErrorBody{Error: "bad_json", Message: "invalid JSON body"})
		return false
	}
	return true
}

// respond writes v in the encoding the client used.
func (s *Server) respond(c *gin.Context, status int, v any) {
	if !wantsProtobuf(c.Request) {
		c.JSON(status, v)
		return
	}
	st, err := wire.ToStruct(v)
	if err == nil {
		var data []byte
		if data, err = proto.Marshal(st); err == nil {
			c.Data(status, protobufType, data)
			return
		}
	}
	s.logger.Error("protobuf encode failed", zap.Error(err))
	c.String(http.StatusInternalServerError, "proto marshal error")
}

func (s *Server) write(c *gin.Context, status int, body types.ErrorBody) {
	s.respond(c, status, body)
	c.Abort()
}

// fail maps err onto a status code and error body.
func (s *Server) fail(c *gin.Context, err error) {
	kind := wire.Classify(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	s.write(c, status, wire.Error(err))
}

func statusFor(k wire.Kind) int {
	switch k {
	case wire.KindValidation:
		return http.StatusBadRequest
	case wire.KindNotFound:
		return http.StatusNotFound
	case wire.KindPolicy:
		return http.StatusConflict
	case wire.KindUnavailable, wire.KindTimeout:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ── Parameters ───────────────────────────────────────────────────────────────

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fault.Validation("id", "must be a positive integer")
	}
	return id, nil
}

// maxSeconds keeps second-based query durations inside time.Duration.
const maxSeconds = int64(math.MaxInt64 / time.Second)

func durationSeconds(c *gin.Context, name string, def time.Duration) (time.Duration, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fault.Validation(name, "must be an integer number of seconds")
	}
	if n > maxSeconds {
		n = maxSeconds
	}
	return time.Duration(n) * time.Second, nil
}
