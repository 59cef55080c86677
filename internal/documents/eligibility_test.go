package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	ierr "sop-portal/portal-backend/internal/errors"
)

var someReviewers = People{{ID: "r1", Name: "Rita", Email: "rita@example.com"}}

func TestApproveAndRejectEligibility(t *testing.T) {
	tests := []struct {
		name string
		role Role
		doc  Document
		want bool
	}{
		{"creator on pending creator approval", RoleDocumentCreator, Document{Status: StatusPendingCreatorApproval}, true},
		{"requester on pending requester approval", RoleRequester, Document{Status: StatusPendingRequesterApproval}, true},
		{"document requester on pending requester approval", RoleDocumentRequester, Document{Status: StatusPendingRequesterApproval}, true},
		{"owner on pending owner approval", RoleDocumentOwner, Document{Status: StatusPendingOwnerApproval}, true},
		{"owner on pending creator approval", RoleDocumentOwner, Document{Status: StatusPendingCreatorApproval}, false},
		{"creator on under review without reviewers", RoleDocumentCreator, Document{Status: StatusUnderReview}, true},
		{"creator on under review with reviewers", RoleDocumentCreator, Document{Status: StatusUnderReview, Reviewers: someReviewers}, false},
		{"reviewer on under review with reviewers", RoleReviewer, Document{Status: StatusUnderReview, Reviewers: someReviewers}, true},
		{"reviewer on under review without reviewers", RoleReviewer, Document{Status: StatusUnderReview}, false},
		{"requester on under review with reviewers", RoleRequester, Document{Status: StatusUnderReview, Reviewers: someReviewers}, true},
		{"requester alias label", RoleRequester, Document{Status: StatusUnderReview, PendingWith: PartyDocumentRequester}, true},
		{"reviewer alias label", RoleReviewer, Document{Status: StatusUnderReview, PendingWith: PartyDocumentRequester}, true},
		{"controller on under review", RoleDocumentController, Document{Status: StatusUnderReview, Reviewers: someReviewers}, false},
		{"creator on approved", RoleDocumentCreator, Document{Status: StatusApproved}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := EligibleActions(tt.role, &tt.doc)
			assert.Equal(t, tt.want, actions.Has(ActionApprove))
			assert.Equal(t, tt.want, actions.Has(ActionReject))
		})
	}
}

func TestQueryOnlyOnUnderReview(t *testing.T) {
	assert.True(t, EligibleActions(RoleReviewer, &Document{Status: StatusUnderReview, Reviewers: someReviewers}).Has(ActionQuery))
	assert.False(t, EligibleActions(RoleDocumentOwner, &Document{Status: StatusPendingOwnerApproval}).Has(ActionQuery))
}

func TestStartReviewVisibleButDisabledOnFirstLive(t *testing.T) {
	for _, role := range []Role{RoleDocumentOwner, RoleDocumentController} {
		first := EligibleActions(role, &Document{Status: StatusLive})
		assert.True(t, first.Visible(ActionStartReview), role)
		assert.False(t, first.Has(ActionStartReview), role)

		revised := EligibleActions(role, &Document{Status: StatusLive, ReviewCycle: 1})
		assert.True(t, revised.Has(ActionStartReview), role)
	}

	for _, role := range []Role{RoleDocumentCreator, RoleRequester, RoleReviewer, RoleAdmin} {
		assert.False(t, EligibleActions(role, &Document{Status: StatusLive, ReviewCycle: 2}).Visible(ActionStartReview), role)
	}
	assert.False(t, EligibleActions(RoleDocumentOwner, &Document{Status: StatusApproved}).Visible(ActionStartReview))
}

func TestSingleRoleActions(t *testing.T) {
	assert.True(t, EligibleActions(RoleReviewer, &Document{Status: StatusUnderReview}).Has(ActionReviewDocument))
	assert.False(t, EligibleActions(RoleDocumentOwner, &Document{Status: StatusUnderReview}).Has(ActionReviewDocument))

	assert.True(t, EligibleActions(RoleDocumentOwner, &Document{Status: StatusUnderRevision}).Has(ActionUploadRevised))
	assert.False(t, EligibleActions(RoleDocumentController, &Document{Status: StatusUnderRevision}).Has(ActionUploadRevised))

	assert.True(t, EligibleActions(RoleDocumentController, &Document{Status: StatusQueried}).Has(ActionAddressQuery))
	assert.False(t, EligibleActions(RoleDocumentController, &Document{Status: StatusApproved}).Has(ActionAddressQuery))

	assert.True(t, EligibleActions(RoleDocumentCreator, &Document{Status: StatusDraft}).Has(ActionSubmit))
	assert.True(t, EligibleActions(RoleDocumentCreator, &Document{Status: StatusRejected}).Has(ActionSubmit))
	assert.False(t, EligibleActions(RoleReviewer, &Document{Status: StatusDraft}).Has(ActionSubmit))
}

func TestChangeStatusPicker(t *testing.T) {
	approved := &Document{Status: StatusApproved}
	assert.True(t, EligibleActions(RoleDocumentController, approved).Has(ActionChangeStatus))
	assert.Equal(t, []Status{StatusLive}, StatusPickerTargets(RoleDocumentController, approved))
	assert.False(t, EligibleActions(RoleAdmin, approved).Has(ActionChangeStatus))
	assert.False(t, EligibleActions(RoleDocumentOwner, approved).Has(ActionChangeStatus))

	live := &Document{Status: StatusLive}
	targets := StatusPickerTargets(RoleAdmin, live)
	assert.Contains(t, targets, StatusLiveCR)
	assert.Contains(t, targets, StatusUnderRevision)
	assert.NotContains(t, targets, StatusLive)
	assert.NotContains(t, targets, StatusApproved)
	assert.NotContains(t, targets, StatusArchived)
	assert.NotContains(t, targets, StatusDeleted)

	assert.Empty(t, StatusPickerTargets(RoleDocumentController, &Document{Status: StatusArchived}))
	assert.Empty(t, StatusPickerTargets(RoleReviewer, live))
}

func TestControllerOnlyActions(t *testing.T) {
	for _, status := range AllStatuses {
		doc := &Document{Status: status, Reviewers: someReviewers, ReviewCycle: 1}
		for _, role := range AllRoles {
			if role == RoleDocumentController {
				continue
			}
			actions := EligibleActions(role, doc)
			assert.False(t, actions.Visible(ActionArchive), "%s/%s", role, status)
			assert.False(t, actions.Visible(ActionDelete), "%s/%s", role, status)
			assert.False(t, actions.Visible(ActionSendReminder), "%s/%s", role, status)
		}
	}
}

func TestControllerArchiveDeleteReminder(t *testing.T) {
	approved := EligibleActions(RoleDocumentController, &Document{Status: StatusApproved})
	assert.True(t, approved.Has(ActionArchive))
	assert.True(t, approved.Has(ActionDelete))
	assert.False(t, approved.Has(ActionSendReminder))

	live := EligibleActions(RoleDocumentController, &Document{Status: StatusLive})
	assert.True(t, live.Has(ActionSendReminder))

	archived := EligibleActions(RoleDocumentController, &Document{Status: StatusArchived})
	assert.False(t, archived.Has(ActionArchive))
	assert.True(t, archived.Has(ActionDelete))

	deleted := EligibleActions(RoleDocumentController, &Document{Status: StatusDeleted})
	assert.False(t, deleted.Has(ActionDelete))
}

func TestRestoreForAnyRoleOnInactive(t *testing.T) {
	for _, role := range AllRoles {
		assert.True(t, EligibleActions(role, &Document{Status: StatusArchived}).Has(ActionRestore), role)
		assert.True(t, EligibleActions(role, &Document{Status: StatusDeleted}).Has(ActionRestore), role)
		assert.False(t, EligibleActions(role, &Document{Status: StatusLive}).Has(ActionRestore), role)
	}
}

func TestRestoreOnlyOnInactive(t *testing.T) {
	for _, status := range AllStatuses {
		for _, role := range AllRoles {
			doc := &Document{Status: status, Reviewers: someReviewers}
			assert.Equal(t, status.IsInactive(), EligibleActions(role, doc).Has(ActionRestore), "%s %s", role, status)

			if !status.IsInactive() {
				_, err := ApplyTransition(doc, ActionRestore, role, Payload{}, fixedNow)
				assert.True(t, ierr.IsInvalidTransition(err), "%s %s", role, status)
			}
		}
	}
}

func TestCapabilitiesOrderAndJSON(t *testing.T) {
	actions := EligibleActions(RoleDocumentController, &Document{Status: StatusLive})

	caps := actions.Capabilities()
	assert.Equal(t, Capability{Action: ActionStartReview, Enabled: false}, caps[0])
	assert.Equal(t, []Action{ActionChangeStatus, ActionArchive, ActionDelete, ActionSendReminder}, actions.Enabled())

	raw, err := actions.MarshalJSON()
	assert.NoError(t, err)
	assert.JSONEq(t, `[
		{"action":"startReview","enabled":false},
		{"action":"changeStatus","enabled":true},
		{"action":"archive","enabled":true},
		{"action":"delete","enabled":true},
		{"action":"sendReminder","enabled":true}
	]`, string(raw))
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("Document-Reviewer")
	assert.True(t, ok)
	assert.Equal(t, RoleReviewer, role)

	role, ok = ParseRole(" document-controller ")
	assert.True(t, ok)
	assert.Equal(t, RoleDocumentController, role)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
}
