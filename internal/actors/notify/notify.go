package notify

import (
	"context"

	"github.com/rbroggi/parcelhub/internal/core/model"
	log "github.com/sirupsen/logrus"
)

// LogNotifier delivers notifications to the structured log. It stands in for a mail gateway.
type LogNotifier struct {
	logger log.FieldLogger
}

// NewLogNotifier creates a new LogNotifier writing to logger.
func NewLogNotifier(logger log.FieldLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notification model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.WithFields(log.Fields{
		"to":      notification.To,
		"name":    notification.Name,
		"subject": notification.Subject,
	}).Info(notification.Body)
	return nil
}
