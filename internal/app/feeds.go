package app

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"school_notification_bot/internal/domain/feed"
	"school_notification_bot/internal/domain/notification"

	"github.com/PuerkitoBio/goquery"
)

// Submission statuses stored in the submissions collection.
const (
	SubmissionStatusNew      = "new"
	SubmissionStatusAccepted = "accepted"
	SubmissionStatusRejected = "rejected"
)

const articlePreviewLength = 100

// Submission is a typed view of a submissions document.
type Submission struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Specialty string
	Message   string
	Timestamp string
	Status    string
}

// DecodeSubmission converts a raw document; missing fields are left empty.
func DecodeSubmission(doc feed.Document) (Submission, error) {
	if doc.ID == "" {
		return Submission{}, fmt.Errorf("submission without id")
	}
	if doc.Fields == nil {
		return Submission{}, fmt.Errorf("submission %s has no fields", doc.ID)
	}
	return Submission{
		ID:        doc.ID,
		Name:      stringField(doc.Fields, "name"),
		Email:     stringField(doc.Fields, "email"),
		Phone:     stringField(doc.Fields, "phone"),
		Specialty: stringField(doc.Fields, "specialty"),
		Message:   stringField(doc.Fields, "message"),
		Timestamp: stringField(doc.Fields, "timestamp"),
		Status:    stringField(doc.Fields, "status"),
	}, nil
}

// SubmissionRule notifies administrators about submissions entering the "new" status.
type SubmissionRule struct {
	collection string
}

func NewSubmissionRule(collection string) *SubmissionRule {
	return &SubmissionRule{collection: collection}
}

func (r *SubmissionRule) Name() string       { return "submissions" }
func (r *SubmissionRule) Collection() string { return r.collection }

// Seen treats every submission present at startup as handled.
func (r *SubmissionRule) Seen(feed.Document) bool { return true }

func (r *SubmissionRule) Qualify(doc feed.Document) (notification.Payload, bool, error) {
	s, err := DecodeSubmission(doc)
	if err != nil {
		return notification.Payload{}, false, err
	}
	if s.Status != SubmissionStatusNew {
		return notification.Payload{}, false, nil
	}
	return SubmissionPayload(s), true, nil
}

// SubmissionPayload renders the administrator card with review actions.
func SubmissionPayload(s Submission) notification.Payload {
	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s\n\n", s.ID)
	fmt.Fprintf(&b, "👤 Name: %s\n", orUnknown(s.Name))
	fmt.Fprintf(&b, "📧 E-mail: %s\n", orUnknown(s.Email))
	fmt.Fprintf(&b, "📱 Phone: %s\n", orUnknown(s.Phone))
	fmt.Fprintf(&b, "🎓 Specialty: %s\n\n", orUnknown(s.Specialty))
	message := s.Message
	if message == "" {
		message = "No message"
	}
	fmt.Fprintf(&b, "💬 Message:\n%s\n\n", message)
	fmt.Fprintf(&b, "⏰ Time: %s\n", orUnknown(s.Timestamp))
	fmt.Fprintf(&b, "✅ Status: %s", s.Status)

	return notification.Payload{
		Subject:  "🆕 New submission!",
		Body:     b.String(),
		Audience: notification.AudienceAdmins,
		Actions: []notification.Action{
			{Kind: notification.ActionAccept, Target: s.ID},
			{Kind: notification.ActionReject, Target: s.ID},
			{Kind: notification.ActionDelete, Target: s.ID},
		},
	}
}

// Article is a typed view of an articles document.
type Article struct {
	ID         string
	Title      string
	Content    string // HTML
	AuthorName string
	Category   string
	Image      string
	Published  bool
}

func DecodeArticle(doc feed.Document) (Article, error) {
	if doc.ID == "" {
		return Article{}, fmt.Errorf("article without id")
	}
	if doc.Fields == nil {
		return Article{}, fmt.Errorf("article %s has no fields", doc.ID)
	}
	a := Article{
		ID:         doc.ID,
		Title:      stringField(doc.Fields, "title"),
		Content:    stringField(doc.Fields, "content"),
		AuthorName: stringField(doc.Fields, "authorName"),
		Category:   stringField(doc.Fields, "category"),
		Image:      strings.TrimSpace(stringField(doc.Fields, "image")),
	}
	switch v := doc.Fields["published"].(type) {
	case nil:
	case bool:
		a.Published = v
	default:
		return Article{}, fmt.Errorf("article %s: published has type %T", doc.ID, v)
	}
	return a, nil
}

// ArticleRule notifies every opted-in subscriber about newly published articles.
type ArticleRule struct {
	collection string
	baseURL    string
}

func NewArticleRule(collection, baseURL string) *ArticleRule {
	return &ArticleRule{collection: collection, baseURL: strings.TrimRight(baseURL, "/")}
}

func (r *ArticleRule) Name() string       { return "articles" }
func (r *ArticleRule) Collection() string { return r.collection }

// Seen treats articles already published at startup as handled.
func (r *ArticleRule) Seen(doc feed.Document) bool {
	a, err := DecodeArticle(doc)
	return err == nil && a.Published
}

func (r *ArticleRule) Qualify(doc feed.Document) (notification.Payload, bool, error) {
	a, err := DecodeArticle(doc)
	if err != nil {
		return notification.Payload{}, false, err
	}
	if !a.Published {
		return notification.Payload{}, false, nil
	}
	return r.payload(a), true, nil
}

func (r *ArticleRule) payload(a Article) notification.Payload {
	title := a.Title
	if title == "" {
		title = "New article"
	}
	body := title
	if preview := Preview(a.Content, articlePreviewLength); preview != "" {
		body += "\n\n" + preview
	}
	if a.Category != "" {
		body += "\n\nCategory: " + a.Category
	}
	p := notification.Payload{
		Subject:  "📰 New article!",
		Body:     body,
		ImageURL: a.Image,
		Audience: notification.AudienceSubscribers,
	}
	if r.baseURL != "" {
		p.Link = r.baseURL + "/news/" + a.ID
	}
	return p
}

// Preview extracts the text of an HTML fragment and truncates it to limit runes.
func Preview(content string, limit int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	text := content
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "Unknown"
	}
	return v
}
