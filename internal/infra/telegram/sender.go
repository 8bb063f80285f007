// internal/infra/telegram/sender.go
package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"

	"school_notification_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Callback uniques of the review buttons.
const (
	UniqueAccept = "sub_accept"
	UniqueReject = "sub_reject"
	UniqueDelete = "sub_delete"
)

const captionLimit = 1024

var actionButtons = map[notification.ActionKind]struct{ label, unique string }{
	notification.ActionAccept: {"✅ Accept", UniqueAccept},
	notification.ActionReject: {"❌ Reject", UniqueReject},
	notification.ActionDelete: {"🗑️ Delete", UniqueDelete},
}

// Messenger is the part of *telebot.Bot the sender uses.
type Messenger interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Sender implements notification.Sender over the Telegram Bot API.
type Sender struct {
	bot Messenger
	log *logrus.Entry
}

func NewSender(b Messenger, log *logrus.Entry) *Sender {
	return &Sender{bot: b, log: log}
}

// Send delivers p as a photo when it carries an image and as a text message
// otherwise, or when the photo is rejected.
func (s *Sender) Send(ctx context.Context, recipientChatID int64, p notification.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	recipient := &telebot.User{ID: recipientChatID}
	text := FormatHTML(p)
	options := &telebot.SendOptions{ParseMode: telebot.ModeHTML, ReplyMarkup: Markup(p)}

	if p.ImageURL != "" && len([]rune(text)) <= captionLimit {
		photo := &telebot.Photo{File: telebot.FromURL(p.ImageURL), Caption: text}
		_, err := s.bot.Send(recipient, photo, options)
		if err == nil {
			return nil
		}
		s.log.WithError(err).WithFields(logrus.Fields{
			"recipient": recipientChatID,
			"image":     p.ImageURL,
		}).Warn("Failed to send photo, falling back to text")
	}

	if _, err := s.bot.Send(recipient, text, options); err != nil {
		return fmt.Errorf("failed to send message to %d: %w", recipientChatID, err)
	}
	return nil
}

// FormatHTML renders the payload text with a bold subject.
func FormatHTML(p notification.Payload) string {
	var b strings.Builder
	if p.Subject != "" {
		b.WriteString("<b>")
		b.WriteString(html.EscapeString(p.Subject))
		b.WriteString("</b>")
		if p.Body != "" {
			b.WriteString("\n\n")
		}
	}
	b.WriteString(html.EscapeString(p.Body))
	return b.String()
}

// Markup builds the inline keyboard for the payload link and actions, or nil.
func Markup(p notification.Payload) *telebot.ReplyMarkup {
	if p.Link == "" && len(p.Actions) == 0 {
		return nil
	}
	markup := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	if p.Link != "" {
		label := p.LinkText
		if label == "" {
			label = "📖 Read more"
		}
		rows = append(rows, markup.Row(markup.URL(label, p.Link)))
	}
	var actions []telebot.Btn
	for _, a := range p.Actions {
		btn, ok := actionButtons[a.Kind]
		if !ok {
			continue
		}
		actions = append(actions, markup.Data(btn.label, btn.unique, a.Target))
	}
	if len(actions) > 0 {
		rows = append(rows, markup.Row(actions...))
	}
	markup.Inline(rows...)
	return markup
}
