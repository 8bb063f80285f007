// internal/infra/telegram/review_handlers.go
package telegram

import (
	"context"
	"errors"
	"fmt"

	"school_notification_bot/internal/app"
	"school_notification_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

var reviewOutcomes = map[notification.ActionKind]string{
	notification.ActionAccept: "✅ Submission accepted",
	notification.ActionReject: "❌ Submission rejected",
	notification.ActionDelete: "🗑️ Submission deleted",
}

// RegisterReviewHandlers wires the Accept / Reject / Delete buttons of submission cards.
func RegisterReviewHandlers(ctx context.Context, b *telebot.Bot, reviewService *app.ReviewService, baseLogger *logrus.Entry) {
	handlers := map[string]notification.ActionKind{
		UniqueAccept: notification.ActionAccept,
		UniqueReject: notification.ActionReject,
		UniqueDelete: notification.ActionDelete,
	}
	for unique, kind := range handlers {
		b.Handle(&telebot.Btn{Unique: unique}, reviewHandler(ctx, reviewService, kind, baseLogger))
	}
}

func reviewHandler(ctx context.Context, reviewService *app.ReviewService, kind notification.ActionKind, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		target := c.Callback().Data
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":    "review",
			"action":     string(kind),
			"submission": target,
			"sender_id":  c.Sender().ID,
		})
		if target == "" {
			handlerLogger.Warn("Callback without submission id")
			return c.Respond(&telebot.CallbackResponse{Text: "Invalid action."})
		}

		sub, err := reviewService.Apply(ctx, c.Sender().ID, notification.Action{Kind: kind, Target: target})
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Unauthorized review attempt")
				return c.Respond(&telebot.CallbackResponse{Text: "You are not allowed to do this.", ShowAlert: true})
			case errors.Is(err, app.ErrSubmissionNotFound):
				logWithError.Warn("Submission no longer exists")
				_ = c.EditReplyMarkup(nil)
				return c.Respond(&telebot.CallbackResponse{Text: "Submission not found."})
			case errors.Is(err, app.ErrFeedUnavailable):
				logWithError.Error("Review store unavailable")
				return c.Respond(&telebot.CallbackResponse{Text: "Submissions are unavailable right now."})
			default:
				logWithError.Error("Failed to apply review action")
				return c.Respond(&telebot.CallbackResponse{Text: "An error occurred."})
			}
		}

		handlerLogger.Info("Review action applied")
		outcome := reviewOutcomes[kind]
		if err := c.EditReplyMarkup(nil); err != nil {
			handlerLogger.WithError(err).Debug("Failed to remove review buttons")
		}
		if err := c.Send(fmt.Sprintf("%s: %s (%s)", outcome, orDash(sub.Name), sub.ID)); err != nil {
			handlerLogger.WithError(err).Warn("Failed to confirm review action")
		}
		return c.Respond(&telebot.CallbackResponse{Text: outcome})
	}
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
