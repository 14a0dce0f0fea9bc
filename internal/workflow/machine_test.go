package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	cases := []struct {
		from   Status
		event  Event
		target Status
		ok     bool
	}{
		{StatusDraft, EventEdit, StatusDraft, true},
		{StatusDraft, EventApprove, "", false},
		{StatusPending, EventEdit, StatusPending, true},
		{StatusPending, EventApprove, StatusApproved, true},
		{StatusPending, EventReject, StatusRejected, true},
		{StatusPending, EventSendBack, StatusSentBack, true},
		{StatusPending, EventResubmit, "", false},
		{StatusUnderReview, EventApprove, StatusApproved, true},
		{StatusUnderReview, EventReject, StatusRejected, true},
		{StatusUnderReview, EventSendBack, StatusSentBack, true},
		{StatusUnderReview, EventEdit, "", false},
		{StatusSentBack, EventEdit, StatusSentBack, true},
		{StatusSentBack, EventResubmit, StatusPending, true},
		{StatusSentBack, EventApprove, "", false},
		{StatusApproved, EventComplete, StatusCompleted, true},
		{StatusApproved, EventEdit, "", false},
		{StatusApproved, EventApprove, "", false},
	}
	for _, tc := range cases {
		target, ok := NextStatus(tc.from, tc.event)
		require.Equal(t, tc.ok, ok, "%s + %s", tc.from, tc.event)
		if tc.ok {
			require.Equal(t, tc.target, target, "%s + %s", tc.from, tc.event)
		}
	}
}

func TestTerminalStatusesAdmitNoEvents(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusRejected, StatusCancelled}
	events := []Event{EventEdit, EventApprove, EventReject, EventSendBack, EventResubmit, EventComplete, EventCancel}
	for _, status := range terminal {
		require.True(t, IsTerminal(status))
		for _, event := range events {
			_, ok := NextStatus(status, event)
			require.False(t, ok, "%s must not accept %s", status, event)
		}
	}
}

func TestCancelFromAnyNonTerminalStatus(t *testing.T) {
	for _, status := range []Status{StatusDraft, StatusPending, StatusUnderReview, StatusSentBack, StatusApproved} {
		target, ok := NextStatus(status, EventCancel)
		require.True(t, ok, "cancel from %s", status)
		require.Equal(t, StatusCancelled, target)
	}
}

func TestCanDelete(t *testing.T) {
	for _, status := range []Status{StatusDraft, StatusPending, StatusSentBack, StatusRejected} {
		require.True(t, CanDelete(status), "%s", status)
	}
	for _, status := range []Status{StatusUnderReview, StatusApproved, StatusCompleted, StatusCancelled} {
		require.False(t, CanDelete(status), "%s", status)
	}
}

func TestCanDuplicate(t *testing.T) {
	for _, status := range []Status{StatusDraft, StatusPending, StatusUnderReview, StatusSentBack, StatusApproved} {
		require.True(t, CanDuplicate(status), "%s", status)
	}
	for _, status := range []Status{StatusCompleted, StatusRejected, StatusCancelled} {
		require.False(t, CanDuplicate(status), "%s", status)
	}
}

func TestDecisionMappingsAgree(t *testing.T) {
	require.Len(t, decisionEvents, 3)
	require.Len(t, decisionQueueStatus, 3)
	for decision := range decisionEvents {
		_, ok := decisionQueueStatus[decision]
		require.True(t, ok, "decision %s lacks a queue status", decision)
	}
}
