package shared

// Checker queue permissions.
const (
	PermQueueView     = "queue:view"
	PermQueueApprove  = "queue:approve"
	PermQueueReject   = "queue:reject"
	PermQueueSendBack = "queue:send_back"
	PermQueueComplete = "queue:complete"
)

// QueueScopes lists all permissions related to the checker queue.
func QueueScopes() []string {
	return []string{
		PermQueueView,
		PermQueueApprove,
		PermQueueReject,
		PermQueueSendBack,
		PermQueueComplete,
	}
}

// CheckerScopes lists the decision permissions a checker needs on top of view.
func CheckerScopes() []string {
	return []string{
		PermQueueView,
		PermQueueApprove,
		PermQueueReject,
		PermQueueSendBack,
	}
}
