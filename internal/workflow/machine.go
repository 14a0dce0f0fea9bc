package workflow

// Event is a workflow intent applied to a transaction.
type Event string

const (
	EventCreate   Event = "create"
	EventEdit     Event = "edit"
	EventApprove  Event = "approve"
	EventReject   Event = "reject"
	EventSendBack Event = "send_back"
	EventResubmit Event = "resubmit"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
	EventDelete   Event = "delete"
)

// transitions is the explicit lifecycle table. An event missing for a source
// status is illegal from that status. Edit keeps the status unchanged;
// cancel and delete are handled through the guard helpers below because they
// apply to status sets rather than single sources. under_review is a legal
// decision source but nothing in this package drives a transaction into it;
// a deployment adding a supervisor pre-check step supplies that transition.
var transitions = map[Status]map[Event]Status{
	StatusDraft: {
		EventEdit: StatusDraft,
	},
	StatusPending: {
		EventEdit:     StatusPending,
		EventApprove:  StatusApproved,
		EventReject:   StatusRejected,
		EventSendBack: StatusSentBack,
	},
	StatusUnderReview: {
		EventApprove:  StatusApproved,
		EventReject:   StatusRejected,
		EventSendBack: StatusSentBack,
	},
	StatusSentBack: {
		EventEdit:     StatusSentBack,
		EventResubmit: StatusPending,
	},
	StatusApproved: {
		EventComplete: StatusCompleted,
	},
}

// deletableStatuses lists the sources from which a transaction may be
// physically removed.
var deletableStatuses = map[Status]bool{
	StatusPending:  true,
	StatusDraft:    true,
	StatusSentBack: true,
	StatusRejected: true,
}

// NextStatus resolves the target status for an event from the given source.
func NextStatus(from Status, event Event) (Status, bool) {
	if event == EventCancel {
		if IsTerminal(from) {
			return "", false
		}
		return StatusCancelled, true
	}
	targets, ok := transitions[from]
	if !ok {
		return "", false
	}
	to, ok := targets[event]
	return to, ok
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// CanDelete reports whether a transaction in this status may be removed.
func CanDelete(s Status) bool {
	return deletableStatuses[s]
}

// CanDuplicate reports whether a transaction in this status may be cloned
// into a new draft. Duplication never mutates the source.
func CanDuplicate(s Status) bool {
	return !IsTerminal(s)
}

// decisionEvents maps checker decisions onto lifecycle events.
var decisionEvents = map[Decision]Event{
	DecisionApprove:  EventApprove,
	DecisionReject:   EventReject,
	DecisionSendBack: EventSendBack,
}

// decisionQueueStatus maps checker decisions onto the queue item's status,
// keeping the queue and the transaction in paired states.
var decisionQueueStatus = map[Decision]QueueStatus{
	DecisionApprove:  QueueApproved,
	DecisionReject:   QueueRejected,
	DecisionSendBack: QueueSentBack,
}
