package notification

// Audience selects who receives a payload.
type Audience string

const (
	// AudienceSubscribers is every subscriber with notifications enabled.
	AudienceSubscribers Audience = "subscribers"
	// AudienceAdmins is every administrator, regardless of the opt-in flag.
	AudienceAdmins Audience = "admins"
	// AudienceAll is every registered subscriber, regardless of the opt-in flag.
	AudienceAll Audience = "all"
)

// ActionKind names an affordance attached to an administrative delivery.
type ActionKind string

const (
	ActionAccept ActionKind = "accept"
	ActionReject ActionKind = "reject"
	ActionDelete ActionKind = "delete"
)

// Action is a structured button consumed by the review handlers.
type Action struct {
	Kind   ActionKind
	Target string // document id the action applies to
}

// Payload is a transport independent notification.
type Payload struct {
	Subject  string
	Body     string
	Link     string // optional
	LinkText string // label of the link button; senders pick a default when empty
	ImageURL string // optional; senders fall back to text when the image fails
	Audience Audience
	Actions  []Action
}
