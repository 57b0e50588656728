package worker

import (
	"github.com/bookwell/penalty-service/internal/service"
)

// StartNotificationWorker subscribes the notification fan-out to penalty events.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
