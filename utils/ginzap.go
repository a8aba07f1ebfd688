package utils

import (
	"net/http"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// AccessLog logs every request once the handler chain has finished, tagged
// with the request id.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return ginzap.GinzapWithConfig(logger, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		Context: func(c *gin.Context) []zapcore.Field {
			if id := c.GetString(RequestIDKey); id != "" {
				return []zapcore.Field{zap.String(RequestIDKey, id)}
			}
			return nil
		},
	})
}

// Recovery turns panics into a 500 envelope. The request dump logged with the
// panic never carries the caller's credential.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return ginzap.CustomRecoveryWithZap(RedactRequests(logger), false, func(c *gin.Context, _ any) {
		Error(c, http.StatusInternalServerError, 50000, "internal server error")
		c.Abort()
	})
}

// RedactRequests wraps logger so that "request" dumps have their
// Authorization header blanked.
func RedactRequests(logger *zap.Logger) *zap.Logger {
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return redactCore{core}
	}))
}

type redactCore struct{ zapcore.Core }

func (c redactCore) With(fields []zapcore.Field) zapcore.Core {
	return redactCore{c.Core.With(redactFields(fields))}
}

func (c redactCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c redactCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(e, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	var out []zapcore.Field
	for i, f := range fields {
		if f.Key != "request" || f.Type != zapcore.StringType {
			continue
		}
		// callers own fields, rewrite a copy
		if out == nil {
			out = append([]zapcore.Field(nil), fields...)
		}
		out[i].String = redactAuthorization(f.String)
	}
	if out == nil {
		return fields
	}
	return out
}

func redactAuthorization(dump string) string {
	lines := strings.Split(dump, "\r\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(line), "authorization:") {
			lines[i] = "Authorization: [redacted]"
		}
	}
	return strings.Join(lines, "\r\n")
}
