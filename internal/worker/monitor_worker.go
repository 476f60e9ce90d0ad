package worker

import (
	"context"

	"github.com/helpdesk-kit/ticketd/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartSLAMonitor launches the sweep loop; it stops with ctx.
func StartSLAMonitor(ctx context.Context, monitor *service.SLAMonitor) {
	if monitor == nil {
		return
	}
	go monitor.Run(ctx)
}
