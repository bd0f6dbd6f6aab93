// Package transport defines the contract between the bot core and the
// messaging network: a closed set of inbound event variants, the send
// operations the core may use, and the session lifecycle operations the
// connection manager drives.
package transport

import "context"

// DisconnectCause classifies why a session closed. The connection
// manager picks its retry policy from this.
type DisconnectCause int

const (
	CauseUnknown DisconnectCause = iota
	// CauseLoggedOut means the account was logged out remotely; the
	// local credentials are no longer valid.
	CauseLoggedOut
	// CauseSessionReplaced means another client took over the session.
	CauseSessionReplaced
	// CausePairingTimeout means the pairing artifact expired before it
	// was scanned.
	CausePairingTimeout
	// CauseServiceUnavailable means the upstream service rejected the
	// connection as temporarily unavailable.
	CauseServiceUnavailable
)

func (c DisconnectCause) String() string {
	switch c {
	case CauseLoggedOut:
		return "logged_out"
	case CauseSessionReplaced:
		return "session_replaced"
	case CausePairingTimeout:
		return "pairing_timeout"
	case CauseServiceUnavailable:
		return "service_unavailable"
	default:
		return "unknown"
	}
}

// MessageKind tags the variant carried by a Message. Resolved once at
// the transport boundary; handlers never look at raw payloads.
type MessageKind int

const (
	KindText MessageKind = iota
	KindButtonReply
	KindStaticLocation
	KindLiveLocation
)

// Message is one inbound message, already narrowed to its kind.
type Message struct {
	// Chat is the conversation identifier the message arrived on.
	Chat string
	// Sender is the raw sender identifier; may be an anonymized id.
	Sender string
	// SenderAlt carries the stable phone identifier when the network
	// provided one alongside an anonymized Sender.
	SenderAlt string
	PushName  string

	Kind MessageKind

	Text     string  // KindText
	ButtonID string  // KindButtonReply
	Lat      float64 // KindStaticLocation
	Lng      float64 // KindStaticLocation
}

// Contact is one entry of a contact-sync batch.
type Contact struct {
	// ID is the contact identifier as synced; may be a phone-style id
	// or an anonymized one.
	ID string
	// LID is the anonymized identifier, when the payload carries it
	// explicitly.
	LID string
	// Phone is a bare phone number needing reconstruction into a
	// phone-style identifier.
	Phone string
}

// Event is the closed set of inbound transport events.
type Event interface{ transportEvent() }

// QREvent carries a fresh pairing artifact.
type QREvent struct{ Code string }

// ConnectedEvent signals the session opened.
type ConnectedEvent struct{}

// DisconnectedEvent signals the session closed.
type DisconnectedEvent struct{ Cause DisconnectCause }

// ContactsSyncEvent carries a batch of synced contacts.
type ContactsSyncEvent struct{ Contacts []Contact }

// MessageEvent carries one inbound message.
type MessageEvent struct{ Message Message }

func (QREvent) transportEvent()           {}
func (ConnectedEvent) transportEvent()    {}
func (DisconnectedEvent) transportEvent() {}
func (ContactsSyncEvent) transportEvent() {}
func (MessageEvent) transportEvent()      {}

// Button is one option of a two-option prompt.
type Button struct {
	ID    string
	Label string
}

// ButtonPrompt is a text message with quick-reply buttons.
type ButtonPrompt struct {
	Text    string
	Footer  string
	Buttons []Button
}

// Sender is the outbound capability handlers use.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
	SendButtons(ctx context.Context, to string, prompt ButtonPrompt) error
}

// Transport is one logical session to the messaging network. Connect
// may be called again after a DisconnectedEvent; events for all
// sessions flow on the single Events channel.
type Transport interface {
	Sender

	Connect(ctx context.Context) error
	Disconnect()
	// Logout invalidates the session remotely and tears it down.
	Logout(ctx context.Context) error
	// ClearCredentials wipes the persisted credentials so the next
	// Connect starts a fresh pairing.
	ClearCredentials() error
	Events() <-chan Event
}
