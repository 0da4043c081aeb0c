package gateway

import "context"

// Availability reports what the underlying model capability can offer right
// now, before any session exists.
type Availability int

const (
	AvailabilityUnsupported Availability = iota
	AvailabilityDownloadable
	AvailabilityReady
)

// Role tags a content block with its author.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Part is one role-tagged content block in a prompt. Exactly one of Text,
// Image or Audio should be set.
type Part struct {
	Role  Role
	Text  string
	Image []byte
	Audio []byte
}

// TextPart is shorthand for a user text block.
func TextPart(text string) Part { return Part{Role: RoleUser, Text: text} }

// ImagePart is shorthand for a user image block.
func ImagePart(data []byte) Part { return Part{Role: RoleUser, Image: data} }

// Runner is the in-process model capability the gateway wraps. It must never
// be backed by a remote model: all inference stays on the device.
type Runner interface {
	// Availability probes the capability without creating a session.
	Availability(ctx context.Context) (Availability, error)

	// Download fetches model assets when Availability reported
	// AvailabilityDownloadable. progress receives values in [0,100]; the
	// gateway clamps and monotonizes them before they reach callers.
	Download(ctx context.Context, progress func(pct float64)) error

	// NewSession creates a fresh conversational session primed with the
	// given system prompt. Prior sessions keep working until destroyed.
	NewSession(ctx context.Context, system string) (Session, error)
}

// Session is one conversation with the model. Generate is not required to
// be safe for concurrent use; the gateway serializes calls.
type Session interface {
	// Generate produces a completion for the ordered parts. When schema is
	// non-nil the output must be JSON conforming to it.
	Generate(ctx context.Context, parts []Part, schema map[string]any) (string, error)

	Destroy()
}
