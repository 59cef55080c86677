package documents

import (
	"encoding/json"

	"github.com/samber/lo"
)

// Capability is one action exposed to a role. A visible but disabled capability is
// rendered inert and is rejected by the executor.
type Capability struct {
	Action  Action `json:"action"`
	Enabled bool   `json:"enabled"`
}

// ActionSet maps each visible action to whether it is enabled.
type ActionSet map[Action]bool

// Has reports whether a is visible and enabled.
func (s ActionSet) Has(a Action) bool {
	return s[a]
}

// Visible reports whether a is rendered at all.
func (s ActionSet) Visible(a Action) bool {
	_, ok := s[a]
	return ok
}

// Enabled lists the enabled actions in vocabulary order.
func (s ActionSet) Enabled() []Action {
	return lo.Filter(AllActions, func(a Action, _ int) bool {
		return s.Has(a)
	})
}

// Capabilities lists every visible action in vocabulary order.
func (s ActionSet) Capabilities() []Capability {
	caps := make([]Capability, 0, len(s))
	for _, a := range AllActions {
		if enabled, ok := s[a]; ok {
			caps = append(caps, Capability{Action: a, Enabled: enabled})
		}
	}
	return caps
}

func (s ActionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Capabilities())
}

func (s ActionSet) add(a Action, enabled bool) {
	s[a] = enabled
}

// EligibleActions evaluates every rule independently for the (role, document) pair.
// Results are never cached; callers re-evaluate before each transition.
func EligibleActions(role Role, doc *Document) ActionSet {
	set := ActionSet{}
	status := doc.Status
	party := ResolvePendingWith(doc)

	if canApprove(role, status, party) {
		set.add(ActionApprove, true)
		set.add(ActionReject, true)
		if status == StatusUnderReview {
			set.add(ActionQuery, true)
		}
	}

	if (role == RoleDocumentCreator || role == RoleDocumentController) &&
		(status == StatusDraft || status == StatusRejected) {
		set.add(ActionSubmit, true)
	}

	if role == RoleReviewer && status == StatusUnderReview {
		set.add(ActionReviewDocument, true)
	}

	if (role == RoleDocumentOwner || role == RoleDocumentController) && status == StatusLive {
		set.add(ActionStartReview, !startReviewDisabled(role, doc))
	}

	if role == RoleDocumentOwner && status == StatusUnderRevision {
		set.add(ActionUploadRevised, true)
	}

	if len(StatusPickerTargets(role, doc)) > 0 {
		set.add(ActionChangeStatus, true)
	}

	if role == RoleDocumentController && status == StatusQueried {
		set.add(ActionAddressQuery, true)
	}

	addControllerActions(set, role, status)

	if status.IsInactive() {
		set.add(ActionRestore, true)
	}

	return set
}

// canApprove covers approve and reject. On under-review the role must match the
// resolved pending-with party.
func canApprove(role Role, status Status, party string) bool {
	switch status {
	case StatusPendingCreatorApproval:
		return role == RoleDocumentCreator
	case StatusPendingRequesterApproval:
		return role.isRequester()
	case StatusPendingOwnerApproval:
		return role == RoleDocumentOwner
	case StatusUnderReview:
		return lo.Contains(partiesFor(role), party)
	default:
		return false
	}
}

// startReviewDisabled keeps Start Review rendered but inert on a live document that has
// never been through a review cycle.
func startReviewDisabled(role Role, doc *Document) bool {
	switch role {
	case RoleDocumentOwner, RoleRequester, RoleDocumentRequester, RoleDocumentCreator, RoleDocumentController:
		return doc.Status == StatusLive && doc.ReviewCycle == 0
	}
	return false
}

func addControllerActions(set ActionSet, role Role, status Status) {
	// creators and requesters never archive, delete or remind, whatever the status
	if role == RoleDocumentCreator || role.isRequester() {
		return
	}
	if role != RoleDocumentController {
		return
	}

	if !status.IsInactive() {
		set.add(ActionArchive, true)
	}
	if status != StatusDeleted {
		set.add(ActionDelete, true)
	}
	if status != StatusApproved {
		set.add(ActionSendReminder, true)
	}
}

// StatusPickerTargets lists the statuses role may pick for changeStatus. An approved
// document can only be pushed live, and only by the document controller.
func StatusPickerTargets(role Role, doc *Document) []Status {
	status := doc.Status
	if status.IsInactive() {
		return nil
	}

	switch role {
	case RoleDocumentController:
		if status == StatusApproved {
			return []Status{StatusLive}
		}
	case RoleAdmin:
		if status == StatusApproved {
			return nil
		}
	default:
		return nil
	}

	return lo.Filter(AllStatuses, func(s Status, _ int) bool {
		return s != status && s != StatusApproved && !s.IsInactive()
	})
}
