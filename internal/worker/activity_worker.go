package worker

import (
	"github.com/spec-kit/helpdesk/internal/service"
)

// StartActivityWorker registers the activity subscribers.
func StartActivityWorker(activity *service.ActivityService) {
	if activity == nil {
		return
	}
	activity.RegisterHandlers()
}
