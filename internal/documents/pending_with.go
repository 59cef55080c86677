package documents

import "strings"

// ResolvePendingWith returns the party whose action is required next.
// An explicit override wins; otherwise the party is derived from the status.
func ResolvePendingWith(doc *Document) string {
	if override := strings.TrimSpace(doc.PendingWith); override != "" {
		return doc.PendingWith
	}

	switch doc.Status {
	case StatusDraft:
		return PartyDocumentCreator
	case StatusUnderReview:
		if len(doc.Reviewers) > 0 {
			return PartyReviewers
		}
		return PartyDocumentCreator
	case StatusUnderRevision:
		return PartyDocumentOwner
	case StatusPendingCreatorApproval:
		return PartyDocumentCreator
	case StatusPendingRequesterApproval:
		return PartyDocumentRequester
	case StatusPendingOwnerApproval:
		return PartyDocumentOwner
	case StatusApproved:
		return PartyComplete
	case StatusRejected:
		return PartyDocumentCreator
	case StatusQueried:
		return PartyDocumentController
	default:
		return PartyNone
	}
}

// ResolvePendingWithDisplay is the listing variant: reviewer names instead of the
// Reviewers label while a document is under review.
func ResolvePendingWithDisplay(doc *Document) string {
	party := ResolvePendingWith(doc)
	if party == PartyReviewers && strings.TrimSpace(doc.PendingWith) == "" {
		if names := doc.Reviewers.Names(); len(names) > 0 {
			return strings.Join(names, ", ")
		}
	}
	return party
}

// PartyRole maps a party label to the role that should be notified about it.
// Complete and unknown parties fall back to the document controller.
func PartyRole(party string) Role {
	switch party {
	case PartyDocumentCreator:
		return RoleDocumentCreator
	case PartyReviewers:
		return RoleReviewer
	case PartyDocumentRequester:
		return RoleRequester
	case PartyDocumentOwner:
		return RoleDocumentOwner
	default:
		return RoleDocumentController
	}
}

// partiesFor lists the pending-with labels under which role acts on an under-review
// document. Reviewers and Document Requester are aliases of one another.
func partiesFor(role Role) []string {
	switch {
	case role == RoleDocumentCreator:
		return []string{PartyDocumentCreator}
	case role == RoleReviewer, role.isRequester():
		return []string{PartyReviewers, PartyDocumentRequester}
	default:
		return nil
	}
}
