package subscriber

// Role separates administrators from regular subscribers.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Subscriber is a single notification recipient.
// TelegramID is the opaque channel address messages are delivered to.
type Subscriber struct {
	TelegramID           int64
	FullName             string
	ClassName            string
	Role                 Role
	NotificationsEnabled bool
}

// IsAdmin reports whether the subscriber receives administrative notifications.
func (s *Subscriber) IsAdmin() bool {
	return s.Role == RoleAdmin
}
