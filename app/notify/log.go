package notify

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
)

// LogDispatcher is used when no broker is configured.
type LogDispatcher struct {
	logger logrus.FieldLogger
}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{logger: factory.NewModuleLogger("notify-log")}
}

func (d *LogDispatcher) Notify(_ context.Context, userID, kind string, payload []byte) error {
	d.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"kind":    kind,
		"payload": string(payload),
	}).Info("notification dispatched")
	return nil
}
