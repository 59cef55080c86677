package documents

import "strings"

type Status string

const (
	StatusDraft                    Status = "draft"
	StatusUnderReview              Status = "under-review"
	StatusPendingCreatorApproval   Status = "pending-creator-approval"
	StatusPendingRequesterApproval Status = "pending-requester-approval"
	StatusUnderRevision            Status = "under-revision"
	StatusPendingOwnerApproval     Status = "pending-owner-approval"
	StatusApproved                 Status = "approved"
	StatusRejected                 Status = "rejected"
	StatusLive                     Status = "live"
	StatusLiveCR                   Status = "live-cr"
	StatusArchived                 Status = "archived"
	StatusDeleted                  Status = "deleted"
	StatusQueried                  Status = "queried"
	StatusReviewed                 Status = "reviewed"
)

var AllStatuses = []Status{
	StatusDraft,
	StatusUnderReview,
	StatusPendingCreatorApproval,
	StatusPendingRequesterApproval,
	StatusUnderRevision,
	StatusPendingOwnerApproval,
	StatusApproved,
	StatusRejected,
	StatusLive,
	StatusLiveCR,
	StatusArchived,
	StatusDeleted,
	StatusQueried,
	StatusReviewed,
}

func (s Status) IsValid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsInactive reports whether the status hides the document from active listings.
func (s Status) IsInactive() bool {
	return s == StatusArchived || s == StatusDeleted
}

func (s Status) String() string {
	return string(s)
}

type Role string

const (
	RoleAdmin              Role = "admin"
	RoleDocumentController Role = "document-controller"
	RoleDocumentCreator    Role = "document-creator"
	RoleRequester          Role = "requester"
	RoleDocumentRequester  Role = "document-requester"
	RoleReviewer           Role = "reviewer"
	RoleDocumentOwner      Role = "document-owner"
)

var AllRoles = []Role{
	RoleAdmin,
	RoleDocumentController,
	RoleDocumentCreator,
	RoleRequester,
	RoleDocumentRequester,
	RoleReviewer,
	RoleDocumentOwner,
}

// ParseRole normalises a role string. document-reviewer is accepted as an alias of reviewer.
func ParseRole(s string) (Role, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "document-reviewer" {
		return RoleReviewer, true
	}
	for _, role := range AllRoles {
		if Role(s) == role {
			return role, true
		}
	}
	return "", false
}

// isRequester treats requester and document-requester as one workflow party.
func (r Role) isRequester() bool {
	return r == RoleRequester || r == RoleDocumentRequester
}

type Action string

const (
	ActionSubmit         Action = "submit"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionQuery          Action = "query"
	ActionReviewDocument Action = "reviewDocument"
	ActionStartReview    Action = "startReview"
	ActionChangeStatus   Action = "changeStatus"
	ActionUploadRevised  Action = "uploadRevised"
	ActionArchive        Action = "archive"
	ActionDelete         Action = "delete"
	ActionRestore        Action = "restore"
	ActionSendReminder   Action = "sendReminder"
	ActionAddressQuery   Action = "addressQuery"
)

var AllActions = []Action{
	ActionSubmit,
	ActionApprove,
	ActionReject,
	ActionQuery,
	ActionReviewDocument,
	ActionStartReview,
	ActionChangeStatus,
	ActionUploadRevised,
	ActionArchive,
	ActionDelete,
	ActionRestore,
	ActionSendReminder,
	ActionAddressQuery,
}

func (a Action) IsValid() bool {
	for _, action := range AllActions {
		if a == action {
			return true
		}
	}
	return false
}

// Party labels returned by the pending-with resolver.
const (
	PartyDocumentCreator    = "Document Creator"
	PartyReviewers          = "Reviewers"
	PartyDocumentRequester  = "Document Requester"
	PartyDocumentOwner      = "Document Owner"
	PartyDocumentController = "Document Controller"
	PartyComplete           = "Complete"
	PartyNone               = "—"
)
