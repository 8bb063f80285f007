package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"school_notification_bot/internal/domain/feed"
	"school_notification_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// ReviewService applies administrator decisions to submissions.
type ReviewService struct {
	store      feed.DocumentStore
	collection string
	admins     *AdminService
	tracked    *TrackedSet
	clock      func() time.Time
	log        *logrus.Entry
}

// NewReviewService creates a review service. tracked is the submissions
// listener's tracked set and may be nil.
func NewReviewService(store feed.DocumentStore, collection string, admins *AdminService, tracked *TrackedSet, log *logrus.Entry) *ReviewService {
	return &ReviewService{
		store:      store,
		collection: collection,
		admins:     admins,
		tracked:    tracked,
		clock:      time.Now,
		log:        log,
	}
}

// Apply performs action on behalf of performingAdminID and returns the
// submission as it was before the change.
func (s *ReviewService) Apply(ctx context.Context, performingAdminID int64, action notification.Action) (Submission, error) {
	if s.store == nil {
		return Submission{}, ErrFeedUnavailable
	}
	ok, err := s.admins.IsAdmin(ctx, performingAdminID)
	if err != nil {
		return Submission{}, err
	}
	if !ok {
		return Submission{}, ErrAdminNotAuthorized
	}

	doc, err := s.store.Get(ctx, s.collection, action.Target)
	if err != nil {
		if errors.Is(err, feed.ErrDocumentNotFound) {
			return Submission{}, ErrSubmissionNotFound
		}
		return Submission{}, fmt.Errorf("failed to load submission %s: %w", action.Target, err)
	}
	sub, err := DecodeSubmission(doc)
	if err != nil {
		return Submission{}, err
	}

	actionLog := s.log.WithFields(logrus.Fields{
		"submission": sub.ID,
		"action":     string(action.Kind),
		"admin":      performingAdminID,
	})

	switch action.Kind {
	case notification.ActionAccept:
		err = s.setStatus(ctx, sub.ID, SubmissionStatusAccepted)
	case notification.ActionReject:
		err = s.setStatus(ctx, sub.ID, SubmissionStatusRejected)
	case notification.ActionDelete:
		err = s.store.Delete(ctx, s.collection, sub.ID)
		if err == nil && s.tracked != nil {
			s.tracked.Forget(sub.ID)
		}
	default:
		return sub, fmt.Errorf("unknown review action %q", action.Kind)
	}
	if err != nil {
		if errors.Is(err, feed.ErrDocumentNotFound) {
			return sub, ErrSubmissionNotFound
		}
		return sub, fmt.Errorf("failed to %s submission %s: %w", action.Kind, sub.ID, err)
	}

	actionLog.Info("Submission reviewed")
	if action.Kind != notification.ActionDelete && sub.Email != "" {
		// Applicant e-mail is not sent from this process.
		actionLog.WithField("email", sub.Email).Info("Applicant notification skipped")
	}
	return sub, nil
}

func (s *ReviewService) setStatus(ctx context.Context, id, status string) error {
	return s.store.Update(ctx, s.collection, id, map[string]any{
		"status":     status,
		"updated_at": s.clock(),
	})
}
