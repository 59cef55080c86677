package documents

import (
	"strings"
	"time"

	"github.com/samber/lo"

	ierr "sop-portal/portal-backend/internal/errors"
	"sop-portal/portal-backend/pkg/workflows"
)

// Fixed edges. Approve out of under-review, archive, delete and the status picker are
// resolved in code because their destination depends on more than the status.
var transitionTable = workflows.NewStateMachine([]workflows.Transition{
	{Action: string(ActionSubmit), From: string(StatusDraft), To: string(StatusUnderReview)},
	{Action: string(ActionSubmit), From: string(StatusRejected), To: string(StatusUnderReview)},
	{Action: string(ActionApprove), From: string(StatusPendingCreatorApproval), To: string(StatusPendingRequesterApproval)},
	{Action: string(ActionApprove), From: string(StatusPendingRequesterApproval), To: string(StatusPendingOwnerApproval)},
	{Action: string(ActionApprove), From: string(StatusPendingOwnerApproval), To: string(StatusApproved)},
	{Action: string(ActionReject), From: string(StatusUnderReview), To: string(StatusRejected)},
	{Action: string(ActionReject), From: string(StatusPendingCreatorApproval), To: string(StatusRejected)},
	{Action: string(ActionReject), From: string(StatusPendingRequesterApproval), To: string(StatusRejected)},
	{Action: string(ActionReject), From: string(StatusPendingOwnerApproval), To: string(StatusRejected)},
	{Action: string(ActionQuery), From: string(StatusUnderReview), To: string(StatusQueried)},
	{Action: string(ActionAddressQuery), From: string(StatusQueried), To: string(StatusUnderReview)},
	{Action: string(ActionStartReview), From: string(StatusLive), To: string(StatusLiveCR)},
	{Action: string(ActionUploadRevised), From: string(StatusUnderRevision), To: string(StatusUnderReview)},
	{Action: string(ActionRestore), From: string(StatusArchived), To: string(StatusLive)},
	{Action: string(ActionRestore), From: string(StatusDeleted), To: string(StatusDraft)},
})

// AllowedTransitions lists the fixed edges leaving status.
func AllowedTransitions(status Status) []workflows.Transition {
	return transitionTable.GetAllowedTransitions(string(status))
}

// ApplyTransition validates action against EligibleActions and returns the new document
// state plus the effects the caller must dispatch. doc is never modified.
func ApplyTransition(doc *Document, action Action, role Role, payload Payload, now time.Time) (*Result, error) {
	actions := EligibleActions(role, doc)
	if !actions.Has(action) {
		return nil, invalidTransition(doc, action, role, actions.Visible(action))
	}

	t := &transition{
		prev:    doc,
		next:    doc.Clone(),
		action:  action,
		role:    role,
		payload: payload,
		now:     now,
	}

	var err error
	switch action {
	case ActionSubmit:
		err = t.submit()
	case ActionApprove:
		err = t.approve()
	case ActionReject:
		err = t.reject()
	case ActionQuery:
		err = t.query()
	case ActionReviewDocument:
		t.reviewDocument()
	case ActionStartReview:
		err = t.startReview()
	case ActionChangeStatus:
		err = t.changeStatus()
	case ActionUploadRevised:
		err = t.uploadRevised()
	case ActionAddressQuery:
		err = t.follow(LogStatusChange)
	case ActionArchive:
		t.moveTo(StatusArchived)
		t.log(LogStatusChange, nil)
	case ActionDelete:
		t.moveTo(StatusDeleted)
		t.log(LogStatusChange, nil)
	case ActionRestore:
		err = t.restore()
	case ActionSendReminder:
		t.sendReminder()
	default:
		return nil, invalidTransition(doc, action, role, false)
	}
	if err != nil {
		return nil, err
	}

	t.next.UpdatedAt = now
	return &Result{Document: t.next, Effects: t.effects}, nil
}

func invalidTransition(doc *Document, action Action, role Role, disabled bool) error {
	hint := "This action is not available for your role at the document's current status"
	if disabled {
		hint = "This action is currently disabled for this document"
	}
	return ierr.NewErrorf("action %s not eligible for role %s on status %s", action, role, doc.Status).
		WithHint(hint).
		WithReportableDetails(map[string]any{
			"action": action,
			"role":   role,
			"status": doc.Status,
		}).
		Mark(ierr.ErrInvalidTransition)
}

type transition struct {
	prev    *Document
	next    *Document
	action  Action
	role    Role
	payload Payload
	now     time.Time
	effects []Effect
}

// moveTo changes status and drops any pending-with override left by the previous step.
func (t *transition) moveTo(status Status) {
	t.next.Status = status
	t.next.PendingWith = ""
}

// follow moves along the fixed edge for (status, action).
func (t *transition) follow(logAction string) error {
	to, ok := transitionTable.Next(string(t.prev.Status), string(t.action))
	if !ok {
		return invalidTransition(t.prev, t.action, t.role, false)
	}
	t.moveTo(Status(to))
	t.log(logAction, nil)
	t.notify()
	return nil
}

func (t *transition) log(action string, extra map[string]any) {
	details := map[string]any{
		"action": t.action,
		"role":   t.role,
		"from":   t.prev.Status,
		"to":     t.next.Status,
	}
	for k, v := range extra {
		details[k] = v
	}
	t.effects = append(t.effects, Effect{Kind: EffectLog, LogAction: action, Details: details})
}

// notify addresses the party that now holds the document.
func (t *transition) notify() {
	status := t.next.Status
	if status.IsInactive() {
		return
	}

	recipient := PartyRole(ResolvePendingWith(t.next))
	if status == StatusLive {
		recipient = RoleDocumentOwner
	}
	t.effects = append(t.effects, Effect{
		Kind:          EffectNotify,
		RecipientRole: recipient,
		TemplateKey:   TemplateKeyFor(status),
	})
}

func (t *transition) stamp(field string, value string) {
	t.effects = append(t.effects, Effect{Kind: EffectStamp, Field: field, Value: value})
}

func (t *transition) requireReason() (string, error) {
	reason := strings.TrimSpace(t.payload.Reason)
	if reason == "" {
		return "", ierr.NewErrorf("%s requires a reason", t.action).
			WithHintf("Please provide a reason to %s this document", t.action).
			Mark(ierr.ErrValidation)
	}
	return reason, nil
}

func (t *transition) addComment(kind CommentKind, text string) {
	t.next.Comments = append(t.next.Comments, Comment{
		Kind:      kind,
		Role:      t.role,
		Text:      text,
		CreatedAt: t.now,
	})
}

func (t *transition) submit() error {
	t.next.CurrentReviewers = clonePeople(t.next.Reviewers)
	if t.prev.Status == StatusDraft {
		return t.follow(LogCreate)
	}
	return t.follow(LogStatusChange)
}

// approve on under-review branches on the party that held the document when the call
// was made: the creator hands over to the requester, reviewers and requesters hand
// over to the owner.
func (t *transition) approve() error {
	if t.prev.Status != StatusUnderReview {
		logAction := LogStatusChange
		if t.prev.Status == StatusPendingOwnerApproval {
			logAction = LogApprove
		}
		return t.follow(logAction)
	}

	party := ResolvePendingWith(t.prev)
	if party == PartyDocumentCreator {
		t.moveTo(StatusPendingRequesterApproval)
	} else {
		t.moveTo(StatusPendingOwnerApproval)
		t.next.PendingWith = PartyDocumentOwner
	}
	t.log(LogStatusChange, map[string]any{"approved_as": party})
	t.notify()
	return nil
}

func (t *transition) reject() error {
	reason, err := t.requireReason()
	if err != nil {
		return err
	}
	t.addComment(CommentReject, reason)
	to, _ := transitionTable.Next(string(t.prev.Status), string(ActionReject))
	t.moveTo(Status(to))
	t.log(LogStatusChange, map[string]any{"reason": reason})
	t.notify()
	return nil
}

func (t *transition) query() error {
	reason, err := t.requireReason()
	if err != nil {
		return err
	}
	t.addComment(CommentQuery, reason)
	t.moveTo(StatusQueried)
	t.log(LogQuery, map[string]any{"reason": reason})
	t.notify()
	return nil
}

func (t *transition) reviewDocument() {
	var extra map[string]any
	if text := strings.TrimSpace(t.payload.Reason); text != "" {
		t.addComment(CommentReview, text)
		extra = map[string]any{"comment": text}
	}
	t.log(LogReview, extra)
}

func (t *transition) startReview() error {
	t.moveTo(StatusLiveCR)
	t.next.PendingWith = PartyDocumentOwner
	t.log(LogStatusChange, map[string]any{"review_cycle": t.next.ReviewCycle})
	t.notify()
	return nil
}

func (t *transition) changeStatus() error {
	target := t.payload.TargetStatus
	if target == "" && t.prev.Status == StatusApproved {
		target = StatusLive
	}
	if !target.IsValid() {
		return ierr.NewErrorf("unknown target status %q", target).
			WithHint("Please choose a valid status").
			Mark(ierr.ErrValidation)
	}
	if !lo.Contains(StatusPickerTargets(t.role, t.prev), target) {
		return invalidTransition(t.prev, t.action, t.role, false)
	}

	if t.payload.Reviewers != nil {
		t.next.Reviewers = t.payload.Reviewers.Unique()
	}
	if t.payload.DocumentOwners != nil {
		t.next.DocumentOwners = t.payload.DocumentOwners.Unique()
	}

	t.moveTo(target)
	extra := map[string]any{}

	switch target {
	case StatusLive:
		if err := t.stampLive(extra); err != nil {
			return err
		}
	case StatusUnderReview:
		t.next.CurrentReviewers = clonePeople(t.next.Reviewers)
	}

	t.log(LogStatusChange, extra)
	t.notify()
	return nil
}

// stampLive captures the upload date (now when none was given) and fills in missing
// revision dates.
func (t *transition) stampLive(extra map[string]any) error {
	uploadDate := t.now
	if t.payload.UploadDate != nil {
		uploadDate = *t.payload.UploadDate
	}
	extra["upload_date"] = uploadDate.Format(time.RFC3339)

	if t.next.UploadDate == nil {
		t.next.UploadDate = &uploadDate
		t.stamp("upload_date", uploadDate.Format(time.RFC3339))
	}

	if t.next.LastRevisionDate == nil {
		last := truncateDay(uploadDate)
		t.next.LastRevisionDate = &last
		t.stamp("last_revision_date", last.Format(DateLayout))
	}
	return t.stampNextRevision()
}

func (t *transition) stampNextRevision() error {
	last := t.next.LastRevisionDate
	if t.payload.NextRevisionDate != nil {
		next := truncateDay(*t.payload.NextRevisionDate)
		if err := ValidateRevisionDates(last, &next); err != nil {
			return err
		}
		t.next.NextRevisionDate = &next
		t.stamp("next_revision_date", next.Format(DateLayout))
		return nil
	}

	if last == nil {
		return nil
	}
	if t.next.NextRevisionDate == nil || !IsValidRevisionGap(*last, *t.next.NextRevisionDate) {
		floor := MinNextRevisionDate(*last)
		t.next.NextRevisionDate = &floor
		t.stamp("next_revision_date", floor.Format(DateLayout))
	}
	return nil
}

// uploadRevised opens a new review cycle with the next version of the document.
func (t *transition) uploadRevised() error {
	last := truncateDay(t.now)
	t.next.LastRevisionDate = &last
	t.stamp("last_revision_date", last.Format(DateLayout))
	if err := t.stampNextRevision(); err != nil {
		return err
	}

	t.next.VersionNumber = IncrementVersion(t.prev.VersionNumber)
	t.next.ReviewCycle++
	if t.payload.FileKey != "" {
		t.next.FileKey = t.payload.FileKey
	}
	t.next.CurrentReviewers = clonePeople(t.next.Reviewers)
	t.stamp("version_number", t.next.VersionNumber)

	t.moveTo(StatusUnderReview)
	t.log(LogStatusChange, map[string]any{
		"version_number": t.next.VersionNumber,
		"review_cycle":   t.next.ReviewCycle,
	})
	t.notify()
	return nil
}

func (t *transition) restore() error {
	to, ok := transitionTable.Next(string(t.prev.Status), string(ActionRestore))
	if !ok {
		return invalidTransition(t.prev, t.action, t.role, false)
	}
	t.moveTo(Status(to))
	return nil
}

func (t *transition) sendReminder() {
	party := ResolvePendingWith(t.prev)
	text := strings.TrimSpace(t.payload.Reason)
	if text == "" {
		text = "Reminder sent to " + party
	}
	t.addComment(CommentReminder, text)
	t.log(LogReminder, map[string]any{"pending_with": party})
	t.effects = append(t.effects, Effect{
		Kind:          EffectNotify,
		RecipientRole: PartyRole(party),
		TemplateKey:   TemplateReminder,
	})
}
