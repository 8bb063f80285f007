package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"school_notification_bot/internal/app"
	"school_notification_bot/internal/domain/schedule"
	"school_notification_bot/internal/domain/subscriber"
	idb "school_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const msgUnauthorized = "Error: you are not allowed to run this command."

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, announcements *app.AnnouncementService, baseLogger *logrus.Entry) {
	b.Handle("/add_subscriber", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/add_subscriber",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		args := c.Args()
		// Expected format: /add_subscriber <TelegramID> <Class> [Name...]
		if len(args) < 2 {
			handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
			return c.Send("Invalid format. Use: /add_subscriber <TelegramID> <Class> [Name]")
		}

		telegramID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: Telegram ID must be a number.")
		}
		className := args[1]
		fullName := strings.Join(args[2:], " ")

		handlerLogger = handlerLogger.WithFields(logrus.Fields{
			"subscriber_telegram_id": telegramID,
			"class":                  className,
		})

		newSubscriber, err := adminService.AddSubscriber(ctx, c.Sender().ID, telegramID, className, fullName)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			case errors.Is(err, app.ErrSubscriberAlreadyExists):
				logWithError.Warn("Subscriber already exists")
				return c.Send(fmt.Sprintf("Error: subscriber with Telegram ID %d already exists.", telegramID))
			default:
				logWithError.Error("Failed to add subscriber")
				return c.Send(fmt.Sprintf("Failed to add subscriber: %s", err.Error()))
			}
		}

		handlerLogger.Info("Subscriber added successfully")
		return c.Send(fmt.Sprintf("Subscriber %s (ID: %d, class %s) added.",
			displayName(newSubscriber), newSubscriber.TelegramID, newSubscriber.ClassName))
	})

	b.Handle("/set_role", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/set_role",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		args := c.Args()
		// Expected format: /set_role <TelegramID> admin|student
		if len(args) != 2 {
			return c.Send("Invalid format. Use: /set_role <TelegramID> admin|student")
		}
		telegramID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			handlerLogger.WithField("arg", args[0]).Warn("Invalid Telegram ID format")
			return c.Send("Error: Telegram ID must be a number.")
		}
		role := subscriber.Role(strings.ToLower(args[1]))
		handlerLogger = handlerLogger.WithFields(logrus.Fields{
			"subscriber_telegram_id": telegramID,
			"role":                   string(role),
		})

		if err := adminService.SetRole(ctx, c.Sender().ID, telegramID, role); err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			case errors.Is(err, idb.ErrSubscriberNotFound):
				logWithError.Warn("Subscriber not found")
				return c.Send(fmt.Sprintf("Subscriber with Telegram ID %d not found.", telegramID))
			default:
				logWithError.Error("Failed to set role")
				return c.Send(fmt.Sprintf("Failed to set role: %s", err.Error()))
			}
		}

		handlerLogger.Info("Role updated")
		return c.Send(fmt.Sprintf("Subscriber %d is now %s.", telegramID, role))
	})

	b.Handle("/list_subscribers", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/list_subscribers",
			"sender_id": c.Sender().ID,
		})

		subs, err := adminService.ListSubscribers(ctx, c.Sender().ID)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			if errors.Is(err, app.ErrAdminNotAuthorized) {
				logWithError.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			}
			logWithError.Error("Failed to get list of subscribers")
			return c.Send(fmt.Sprintf("Failed to list subscribers: %s", err.Error()))
		}

		if len(subs) == 0 {
			handlerLogger.Info("No subscribers found")
			return c.Send("The subscriber list is empty.")
		}

		handlerLogger.WithField("subscribers_count", len(subs)).Info("Successfully retrieved subscriber list")

		var response strings.Builder
		response.WriteString("--- Subscribers ---\n")
		for _, s := range subs {
			notifications := "off"
			if s.NotificationsEnabled {
				notifications = "on"
			}
			response.WriteString(fmt.Sprintf("Telegram ID: %d, Name: %s, Class: %s, Role: %s, Notifications: %s\n",
				s.TelegramID,
				displayName(s),
				s.ClassName,
				s.Role,
				notifications))
		}
		return c.Send(response.String())
	})

	b.Handle("/set_lesson", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/set_lesson",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		args := c.Args()
		// Expected format: /set_lesson <Class> <Day> <N> <HH:MM> <HH:MM> <Subject> <Teacher...>
		if len(args) < 7 {
			return c.Send("Invalid format. Use: /set_lesson <Class> <Day> <N> <HH:MM> <HH:MM> <Subject> <Teacher>")
		}
		number, err := strconv.Atoi(args[2])
		if err != nil {
			return c.Send("Error: lesson number must be a number.")
		}
		lesson := schedule.Lesson{
			ClassName:    args[0],
			DayName:      args[1],
			LessonNumber: number,
			StartTime:    args[3],
			EndTime:      args[4],
			Subject:      args[5],
			Teacher:      strings.Join(args[6:], " "),
		}

		stored, err := adminService.SetLesson(ctx, c.Sender().ID, lesson)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			case errors.Is(err, app.ErrInvalidLesson):
				logWithError.Warn("Invalid lesson")
				return c.Send(fmt.Sprintf("Error: %s", err.Error()))
			default:
				logWithError.Error("Failed to store lesson")
				return c.Send(fmt.Sprintf("Failed to store lesson: %s", err.Error()))
			}
		}

		handlerLogger.WithFields(logrus.Fields{
			"class":  stored.ClassName,
			"day":    stored.DayName,
			"lesson": stored.LessonNumber,
		}).Info("Lesson stored")
		return c.Send(fmt.Sprintf("Lesson %d of %s on %s saved: %s, %s-%s, %s.",
			stored.LessonNumber, stored.ClassName, stored.DayName,
			stored.Subject, stored.StartTime, stored.EndTime, stored.Teacher))
	})

	b.Handle("/announce", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/announce",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		// Expected format: /announce [https://image.url] <Text...>
		announcement := ParseAnnouncement(c.Message().Payload)
		err := announcements.Announce(ctx, c.Sender().ID, announcement)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			case errors.Is(err, app.ErrEmptyAnnouncement):
				return c.Send("Invalid format. Use: /announce [image URL] <text>")
			default:
				logWithError.Error("Failed to queue announcement")
				return c.Send(fmt.Sprintf("Failed to send announcement: %s", err.Error()))
			}
		}

		handlerLogger.WithField("with_image", announcement.ImageURL != "").Info("Announcement queued")
		return c.Send("📢 Announcement is being sent. You will get a report when it is done.")
	})
}

// ParseAnnouncement splits an optional leading image URL from the announcement text.
func ParseAnnouncement(payload string) app.Announcement {
	payload = strings.TrimSpace(payload)
	i := strings.IndexFunc(payload, unicode.IsSpace)
	if i < 0 {
		return app.Announcement{Text: payload}
	}
	first, rest := payload[:i], strings.TrimSpace(payload[i:])
	if (strings.HasPrefix(first, "https://") || strings.HasPrefix(first, "http://")) && rest != "" {
		return app.Announcement{ImageURL: first, Text: rest}
	}
	return app.Announcement{Text: payload}
}

func displayName(s *subscriber.Subscriber) string {
	if s.FullName == "" {
		return "-"
	}
	return s.FullName
}
