package factory

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.WithField("module", module)
}

// LoggerWithContext tags the logger with the request id, falling back to the
// id the RequestID middleware generated for the response.
func LoggerWithContext(logger logrus.FieldLogger, ctx echo.Context) logrus.FieldLogger {
	requestID := ctx.Request().Header.Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = ctx.Response().Header().Get(echo.HeaderXRequestID)
	}
	fields := logrus.Fields{"request_id": requestID}
	if ip := ctx.RealIP(); ip != "" {
		fields["remote_ip"] = ip
	}
	return logger.WithFields(fields)
}
