package documents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "sop-portal/portal-backend/internal/errors"
)

var fixedNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func effectsOf(res *Result, kind EffectKind) []Effect {
	var out []Effect
	for _, e := range res.Effects {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestApplyTransition_ApprovedToLiveStampsUploadDate(t *testing.T) {
	doc := &Document{Status: StatusApproved, VersionNumber: "1.0"}

	res, err := ApplyTransition(doc, ActionChangeStatus, RoleDocumentController, Payload{}, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, StatusLive, res.Document.Status)
	require.NotNil(t, res.Document.UploadDate)
	assert.Equal(t, fixedNow, *res.Document.UploadDate)
	assert.Equal(t, date(2024, time.March, 15), res.Document.LastRevisionDate)
	assert.Equal(t, date(2024, time.June, 15), res.Document.NextRevisionDate)

	notify := effectsOf(res, EffectNotify)
	require.Len(t, notify, 1)
	assert.Equal(t, RoleDocumentOwner, notify[0].RecipientRole)
	assert.Equal(t, "document_live", notify[0].TemplateKey)

	_, err = ApplyTransition(doc, ActionAddressQuery, RoleDocumentController, Payload{}, fixedNow)
	assert.True(t, ierr.IsInvalidTransition(err))
}

func TestApplyTransition_ApprovedOnlyGoesLive(t *testing.T) {
	doc := &Document{Status: StatusApproved}

	_, err := ApplyTransition(doc, ActionChangeStatus, RoleDocumentController, Payload{TargetStatus: StatusDraft}, fixedNow)
	assert.True(t, ierr.IsInvalidTransition(err))

	_, err = ApplyTransition(doc, ActionChangeStatus, RoleDocumentController, Payload{TargetStatus: "bogus"}, fixedNow)
	assert.True(t, ierr.IsValidation(err))
}

func TestApplyTransition_LiveKeepsExistingDates(t *testing.T) {
	uploaded := time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC)
	doc := &Document{
		Status:           StatusApproved,
		UploadDate:       &uploaded,
		LastRevisionDate: date(2024, time.January, 31),
		NextRevisionDate: date(2024, time.May, 1),
	}

	res, err := ApplyTransition(doc, ActionChangeStatus, RoleDocumentController, Payload{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, uploaded, *res.Document.UploadDate)
	assert.Equal(t, date(2024, time.May, 1), res.Document.NextRevisionDate)
	assert.Empty(t, effectsOf(res, EffectStamp))
}

func TestApplyTransition_LiveRejectsShortRevisionGap(t *testing.T) {
	doc := &Document{Status: StatusApproved, LastRevisionDate: date(2024, time.January, 31)}

	_, err := ApplyTransition(doc, ActionChangeStatus, RoleDocumentController,
		Payload{NextRevisionDate: date(2024, time.April, 29)}, fixedNow)
	assert.True(t, ierr.IsPreconditionFailed(err))

	res, err := ApplyTransition(doc, ActionChangeStatus, RoleDocumentController,
		Payload{NextRevisionDate: date(2024, time.April, 30)}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.April, 30), res.Document.NextRevisionDate)
}

func TestApplyTransition_RejectRequiresReason(t *testing.T) {
	doc := &Document{Status: StatusUnderReview, Reviewers: someReviewers}

	for _, reason := range []string{"", "   "} {
		res, err := ApplyTransition(doc, ActionReject, RoleReviewer, Payload{Reason: reason}, fixedNow)
		assert.Nil(t, res)
		assert.True(t, ierr.IsValidation(err))
	}
	assert.Equal(t, StatusUnderReview, doc.Status)
	assert.Empty(t, doc.Comments)

	res, err := ApplyTransition(doc, ActionReject, RoleReviewer, Payload{Reason: " wrong scope "}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Document.Status)
	require.Len(t, res.Document.Comments, 1)
	assert.Equal(t, Comment{Kind: CommentReject, Role: RoleReviewer, Text: "wrong scope", CreatedAt: fixedNow}, res.Document.Comments[0])

	notify := effectsOf(res, EffectNotify)
	require.Len(t, notify, 1)
	assert.Equal(t, RoleDocumentCreator, notify[0].RecipientRole)
	assert.Equal(t, "document_rejected", notify[0].TemplateKey)
}

func TestApplyTransition_QueryAndAddress(t *testing.T) {
	doc := &Document{Status: StatusUnderReview, Reviewers: someReviewers}

	_, err := ApplyTransition(doc, ActionQuery, RoleReviewer, Payload{}, fixedNow)
	assert.True(t, ierr.IsValidation(err))

	res, err := ApplyTransition(doc, ActionQuery, RoleReviewer, Payload{Reason: "which site?"}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusQueried, res.Document.Status)
	assert.Equal(t, LogQuery, effectsOf(res, EffectLog)[0].LogAction)
	assert.Equal(t, PartyDocumentController, ResolvePendingWith(res.Document))

	res, err = ApplyTransition(res.Document, ActionAddressQuery, RoleDocumentController, Payload{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, res.Document.Status)
}

func TestApplyTransition_InvalidLeavesInputUntouched(t *testing.T) {
	doc := &Document{
		Status:         StatusDraft,
		PendingWith:    PartyDocumentOwner,
		DocumentOwners: People{{ID: "o1", Name: "Olga"}},
	}
	before := doc.Clone()

	res, err := ApplyTransition(doc, ActionApprove, RoleReviewer, Payload{}, fixedNow)
	assert.Nil(t, res)
	assert.True(t, ierr.IsInvalidTransition(err))
	assert.Equal(t, before, doc)
}

func TestApplyTransition_SuccessDoesNotMutateInput(t *testing.T) {
	doc := &Document{Status: StatusUnderReview, Reviewers: someReviewers}
	before := doc.Clone()

	res, err := ApplyTransition(doc, ActionReject, RoleReviewer, Payload{Reason: "no"}, fixedNow)
	require.NoError(t, err)
	assert.NotSame(t, doc, res.Document)
	assert.Equal(t, before, doc)
}

func TestApplyTransition_SubmitDraft(t *testing.T) {
	doc := &Document{Status: StatusDraft, Reviewers: someReviewers}

	res, err := ApplyTransition(doc, ActionSubmit, RoleDocumentCreator, Payload{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, res.Document.Status)
	assert.Equal(t, someReviewers, res.Document.CurrentReviewers)
	assert.Equal(t, fixedNow, res.Document.UpdatedAt)

	logs := effectsOf(res, EffectLog)
	require.Len(t, logs, 1)
	assert.Equal(t, LogCreate, logs[0].LogAction)

	notify := effectsOf(res, EffectNotify)
	require.Len(t, notify, 1)
	assert.Equal(t, RoleReviewer, notify[0].RecipientRole)
	assert.Equal(t, "document_under_review", notify[0].TemplateKey)
}

func TestApplyTransition_ApproveFromUnderReview(t *testing.T) {
	t.Run("creator hands over to requester", func(t *testing.T) {
		doc := &Document{Status: StatusUnderReview}
		res, err := ApplyTransition(doc, ActionApprove, RoleDocumentCreator, Payload{}, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, StatusPendingRequesterApproval, res.Document.Status)
		assert.Equal(t, PartyDocumentRequester, ResolvePendingWith(res.Document))
	})

	t.Run("reviewer hands over to owner", func(t *testing.T) {
		doc := &Document{Status: StatusUnderReview, Reviewers: someReviewers}
		res, err := ApplyTransition(doc, ActionApprove, RoleReviewer, Payload{}, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, StatusPendingOwnerApproval, res.Document.Status)
		assert.Equal(t, PartyDocumentOwner, res.Document.PendingWith)
	})

	t.Run("requester acts under the requester label", func(t *testing.T) {
		doc := &Document{Status: StatusUnderReview, PendingWith: PartyDocumentRequester}
		res, err := ApplyTransition(doc, ActionApprove, RoleDocumentRequester, Payload{}, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, StatusPendingOwnerApproval, res.Document.Status)
	})
}

func TestApplyTransition_ApprovalChain(t *testing.T) {
	doc := &Document{Status: StatusPendingCreatorApproval, PendingWith: PartyDocumentCreator}

	res, err := ApplyTransition(doc, ActionApprove, RoleDocumentCreator, Payload{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingRequesterApproval, res.Document.Status)
	assert.Empty(t, res.Document.PendingWith)

	res, err = ApplyTransition(res.Document, ActionApprove, RoleRequester, Payload{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingOwnerApproval, res.Document.Status)

	res, err = ApplyTransition(res.Document, ActionApprove, RoleDocumentOwner, Payload{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, res.Document.Status)
	assert.Equal(t, PartyComplete, ResolvePendingWith(res.Document))
	assert.Equal(t, LogApprove, effectsOf(res, EffectLog)[0].LogAction)
}

func TestApplyTransition_StartReview(t *testing.T) {
	first := &Document{Status: StatusLive}
	_, err := ApplyTransition(first, ActionStartReview, RoleDocumentOwner, Payload{}, fixedNow)
	require.Error(t, err)
	assert.True(t, ierr.IsInvalidTransition(err))
	assert.Equal(t, "This action is currently disabled for this document", ierr.DisplayMessage(err))

	revised := &Document{Status: StatusLive, ReviewCycle: 1}
	res, err := ApplyTransition(revised, ActionStartReview, RoleDocumentController, Payload{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusLiveCR, res.Document.Status)
	assert.Equal(t, PartyDocumentOwner, ResolvePendingWith(res.Document))
}

func TestApplyTransition_UploadRevised(t *testing.T) {
	doc := &Document{
		Status:           StatusUnderRevision,
		VersionNumber:    "1.2",
		Reviewers:        someReviewers,
		LastRevisionDate: date(2023, time.June, 1),
		NextRevisionDate: date(2024, time.March, 1),
	}

	res, err := ApplyTransition(doc, ActionUploadRevised, RoleDocumentOwner, Payload{FileKey: "docs/x/1.3.pdf"}, fixedNow)
	require.NoError(t, err)

	got := res.Document
	assert.Equal(t, StatusUnderReview, got.Status)
	assert.Equal(t, "1.3", got.VersionNumber)
	assert.Equal(t, 1, got.ReviewCycle)
	assert.Equal(t, "docs/x/1.3.pdf", got.FileKey)
	assert.Equal(t, date(2024, time.March, 15), got.LastRevisionDate)
	assert.Equal(t, date(2024, time.June, 15), got.NextRevisionDate)
	assert.Equal(t, someReviewers, got.CurrentReviewers)
	assert.Equal(t, "1.2", doc.VersionNumber)

	stamps := effectsOf(res, EffectStamp)
	assert.Contains(t, stamps, Effect{Kind: EffectStamp, Field: "version_number", Value: "1.3"})
}

func TestApplyTransition_UploadRevisedRejectsShortGap(t *testing.T) {
	doc := &Document{Status: StatusUnderRevision, VersionNumber: "1.0"}

	_, err := ApplyTransition(doc, ActionUploadRevised, RoleDocumentOwner,
		Payload{NextRevisionDate: date(2024, time.May, 1)}, fixedNow)
	require.Error(t, err)
	assert.True(t, ierr.IsPreconditionFailed(err))
	assert.Equal(t, "2024-06-15", ierr.SafeDetails(err)["min_next_revision_date"])
	assert.Equal(t, StatusUnderRevision, doc.Status)
}

func TestApplyTransition_ChangeStatusPicker(t *testing.T) {
	owners := People{{ID: "o1", Name: "Olga"}, {ID: "o1", Name: "Olga again"}, {ID: "o2", Name: "Omar"}}
	doc := &Document{Status: StatusLive, PendingWith: PartyDocumentOwner}

	res, err := ApplyTransition(doc, ActionChangeStatus, RoleAdmin,
		Payload{TargetStatus: StatusUnderRevision, DocumentOwners: owners}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusUnderRevision, res.Document.Status)
	assert.Empty(t, res.Document.PendingWith)
	assert.Equal(t, []string{"Olga", "Omar"}, res.Document.DocumentOwners.Names())

	_, err = ApplyTransition(doc, ActionChangeStatus, RoleAdmin, Payload{TargetStatus: StatusArchived}, fixedNow)
	assert.True(t, ierr.IsInvalidTransition(err))
}

func TestApplyTransition_ArchiveDeleteRestore(t *testing.T) {
	live := &Document{Status: StatusLive}

	res, err := ApplyTransition(live, ActionArchive, RoleDocumentController, Payload{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, res.Document.Status)
	assert.Empty(t, effectsOf(res, EffectNotify))

	res, err = ApplyTransition(res.Document, ActionRestore, RoleReviewer, Payload{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusLive, res.Document.Status)
	assert.Empty(t, res.Effects)

	res, err = ApplyTransition(live, ActionDelete, RoleDocumentController, Payload{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusDeleted, res.Document.Status)

	res, err = ApplyTransition(res.Document, ActionRestore, RoleDocumentCreator, Payload{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, res.Document.Status)

	_, err = ApplyTransition(live, ActionArchive, RoleDocumentOwner, Payload{}, fixedNow)
	assert.True(t, ierr.IsInvalidTransition(err))
}

func TestApplyTransition_SendReminder(t *testing.T) {
	doc := &Document{Status: StatusPendingOwnerApproval}

	res, err := ApplyTransition(doc, ActionSendReminder, RoleDocumentController, Payload{}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingOwnerApproval, res.Document.Status)
	assert.Equal(t, LogReminder, effectsOf(res, EffectLog)[0].LogAction)

	notify := effectsOf(res, EffectNotify)
	require.Len(t, notify, 1)
	assert.Equal(t, RoleDocumentOwner, notify[0].RecipientRole)
	assert.Equal(t, TemplateReminder, notify[0].TemplateKey)

	_, err = ApplyTransition(doc, ActionSendReminder, RoleRequester, Payload{}, fixedNow)
	assert.True(t, ierr.IsInvalidTransition(err))
}

func TestApplyTransition_SendReminderRecordsComment(t *testing.T) {
	doc := &Document{Status: StatusPendingOwnerApproval, DocumentOwners: People{{ID: "o1", Name: "Olga"}}}

	res, err := ApplyTransition(doc, ActionSendReminder, RoleDocumentController, Payload{}, fixedNow)
	require.NoError(t, err)
	require.Len(t, res.Document.Comments, 1)
	assert.Equal(t, Comment{
		Kind:      CommentReminder,
		Role:      RoleDocumentController,
		Text:      "Reminder sent to " + ResolvePendingWith(doc),
		CreatedAt: fixedNow,
	}, res.Document.Comments[0])
	assert.Empty(t, doc.Comments)

	res, err = ApplyTransition(res.Document, ActionSendReminder, RoleDocumentController, Payload{Reason: " second chase "}, fixedNow)
	require.NoError(t, err)
	require.Len(t, res.Document.Comments, 2)
	assert.Equal(t, "second chase", res.Document.Comments[1].Text)
}

func TestApplyTransition_ReviewDocument(t *testing.T) {
	doc := &Document{Status: StatusUnderReview, Reviewers: someReviewers}

	res, err := ApplyTransition(doc, ActionReviewDocument, RoleReviewer, Payload{Reason: "looks fine"}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, res.Document.Status)
	require.Len(t, res.Document.Comments, 1)
	assert.Equal(t, CommentReview, res.Document.Comments[0].Kind)
	assert.Equal(t, LogReview, effectsOf(res, EffectLog)[0].LogAction)
}

func TestAllowedTransitions(t *testing.T) {
	edges := AllowedTransitions(StatusUnderReview)
	actions := make([]string, 0, len(edges))
	for _, e := range edges {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"query", "reject"}, actions)
}
