// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"school_notification_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const msgUnknownUser = "Hi! I send lesson reminders and school news. Please ask an administrator to add you to the system."

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	adminService *app.AdminService,
	subscriptions *app.SubscriptionService,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		sub, err := subscriptions.Get(ctx, senderID)
		if err != nil && !errors.Is(err, app.ErrNotRegistered) {
			logCtx.WithError(err).Error("Error checking subscriber status for /start command")
			return c.Send("An error occurred while checking your status. Please try again later.")
		}

		isAdmin, err := adminService.IsAdmin(ctx, senderID)
		if err != nil {
			logCtx.WithError(err).Error("Error checking admin status for /start command")
		}
		if isAdmin {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hello, administrator %s! I am up and running. Use /help for the list of commands.", c.Sender().FirstName))
		}

		if sub == nil {
			logCtx.Info("User is unknown")
			return c.Send(msgUnknownUser)
		}
		logCtx.WithField("class", sub.ClassName).Info("User identified as Subscriber")
		return c.Send(fmt.Sprintf("Hello, %s! You are subscribed as class %s. Notifications are %s.\nUse /notifications to turn them %s.",
			c.Sender().FirstName, sub.ClassName, onOff(sub.NotificationsEnabled), onOff(!sub.NotificationsEnabled)))
	})

	b.Handle("/notifications", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/notifications").WithField("sender_id", senderID)

		enabled, err := subscriptions.Toggle(ctx, senderID)
		if err != nil {
			if errors.Is(err, app.ErrNotRegistered) {
				logCtx.Info("User is unknown")
				return c.Send(msgUnknownUser)
			}
			logCtx.WithError(err).Error("Failed to toggle notifications")
			return c.Send("An error occurred while updating your settings. Please try again later.")
		}

		logCtx.WithField("enabled", enabled).Info("Notifications toggled")
		if enabled {
			return c.Send("🔔 Notifications are on. You will receive lesson reminders and news.")
		}
		return c.Send("🔕 Notifications are off. Use /notifications to turn them back on.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		isAdmin, err := adminService.IsAdmin(ctx, senderID)
		if err != nil {
			logCtx.WithError(err).Error("Error checking admin status for /help command")
		}
		if isAdmin {
			logCtx.Info("User identified as Admin, sending admin help.")
			var helpText strings.Builder
			helpText.WriteString("Administrator commands:\n\n")
			helpText.WriteString("`/add_subscriber <TelegramID> <Class> [Name]`\n - Register a new subscriber.\n\n")
			helpText.WriteString("`/set_role <TelegramID> admin|student`\n - Change a subscriber's role.\n\n")
			helpText.WriteString("`/list_subscribers`\n - Show every subscriber.\n\n")
			helpText.WriteString("`/set_lesson <Class> <Day> <N> <HH:MM> <HH:MM> <Subject> <Teacher>`\n - Add or replace a lesson.\n\n")
			helpText.WriteString("`/announce [image URL] <text>`\n - Send an announcement to every subscriber.\n\n")
			helpText.WriteString("`/notifications`\n - Turn your notifications on or off.\n\n")
			helpText.WriteString("`/help`\n - Show this message.")
			return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}

		if _, err := subscriptions.Get(ctx, senderID); err != nil {
			if errors.Is(err, app.ErrNotRegistered) {
				logCtx.Info("User is unknown, sending restricted help.")
				return c.Send(msgUnknownUser)
			}
			logCtx.WithError(err).Error("Error checking subscriber status for /help command")
			return c.Send("An error occurred while checking your status. Please try again later.")
		}

		logCtx.Info("User identified as Subscriber, sending subscriber help.")
		return c.Send("I remind you about your next lesson shortly before it starts and send school news as it is published.\n\n" +
			"/notifications - turn notifications on or off.\n/help - show this message.")
	})
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
