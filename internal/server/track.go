package server

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/insights/internal/telemetry"
)

// MaxBodyBytes bounds a request body as received.
const MaxBodyBytes = 8 << 20

var gzipMagic = []byte{0x1f, 0x8b}

func (s *Server) track(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxBodyBytes+1))
	if err != nil {
		s.fail(c, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) > MaxBodyBytes {
		s.fail(c, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	compressed := strings.EqualFold(c.GetHeader("Content-Encoding"), "gzip") || bytes.HasPrefix(body, gzipMagic)
	envelopes, err := telemetry.Decode(body, compressed)
	if err != nil {
		s.logger.Debug("Rejected batch", zap.Error(err))
		s.fail(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, accepted := Validate(envelopes)
	for _, sink := range s.sinks {
		sink.Accept(accepted)
	}
	s.metrics.RecordEnvelopes(resp.ItemsAccepted, len(resp.Errors))

	status := http.StatusOK
	if len(resp.Errors) > 0 {
		status = http.StatusPartialContent
	}
	s.reply(c, status, resp)
}

// Validate checks each envelope and returns the ingestion response plus the
// accepted envelopes in order.
func Validate(envelopes []telemetry.Envelope) (telemetry.TrackResponse, []telemetry.Envelope) {
	resp := telemetry.TrackResponse{
		ItemsReceived: len(envelopes),
		Errors:        []telemetry.TrackError{},
	}
	accepted := make([]telemetry.Envelope, 0, len(envelopes))

	for i, env := range envelopes {
		switch {
		case env.IKey == "":
			resp.Errors = append(resp.Errors, telemetry.TrackError{
				Index:      i,
				StatusCode: http.StatusBadRequest,
				Message:    "Field 'iKey' on type 'Envelope' is required but missing or empty.",
			})
		case env.Name == "":
			resp.Errors = append(resp.Errors, telemetry.TrackError{
				Index:      i,
				StatusCode: http.StatusBadRequest,
				Message:    "Field 'name' on type 'Envelope' is required but missing or empty.",
			})
		default:
			accepted = append(accepted, env)
		}
	}
	resp.ItemsAccepted = len(accepted)
	return resp, accepted
}

func (s *Server) reply(c *gin.Context, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}

func (s *Server) fail(c *gin.Context, status int, message string) {
	s.reply(c, status, gin.H{"error": message})
}
