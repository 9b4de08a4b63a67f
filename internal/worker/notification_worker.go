package worker

import (
	"go.uber.org/zap"

	"github.com/opsguardian/ticket-triage/internal/config"
	"github.com/opsguardian/ticket-triage/internal/events"
	"github.com/opsguardian/ticket-triage/internal/service"
)

// StartNotificationWorker builds the notification service and subscribes it
// to triage events. It returns nil when there is no dispatcher.
func StartNotificationWorker(dispatcher events.Dispatcher, cfg config.NotificationConfig, logger *zap.Logger) *service.NotificationService {
	if dispatcher == nil {
		return nil
	}
	notifications := service.NewNotificationService(dispatcher, logger, cfg)
	notifications.RegisterHandlers()
	return notifications
}
