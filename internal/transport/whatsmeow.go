package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// WhatsApp is the concrete Transport over whatsmeow. Session
// credentials live in a sqlite file; the library persists them on
// every update by itself. Automatic reconnection is disabled so the
// connection manager owns the retry policy.
type WhatsApp struct {
	dbPath string
	log    *zap.Logger
	events chan Event

	mu        sync.Mutex
	container *sqlstore.Container
	client    *whatsmeow.Client
}

var _ Transport = (*WhatsApp)(nil)

func NewWhatsApp(dbPath string, log *zap.Logger) *WhatsApp {
	return &WhatsApp{
		dbPath: dbPath,
		log:    log,
		events: make(chan Event, 64),
	}
}

func (w *WhatsApp) Events() <-chan Event { return w.events }

func (w *WhatsApp) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.client != nil && w.client.IsConnected() {
		return nil
	}

	if w.container == nil {
		container, err := sqlstore.New(ctx, "sqlite3",
			fmt.Sprintf("file:%s?_foreign_keys=on", w.dbPath), waLog.Noop)
		if err != nil {
			return fmt.Errorf("open credential store: %w", err)
		}
		w.container = container
	}

	device, err := w.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("load device: %w", err)
	}

	client := whatsmeow.NewClient(device, waLog.Noop)
	client.EnableAutoReconnect = false
	client.AddEventHandler(w.handleEvent)

	if client.Store.ID == nil {
		// Unauthenticated: a pairing QR must be surfaced. The channel
		// has to be requested before Connect.
		qrChan, err := client.GetQRChannel(context.Background())
		if err != nil {
			return fmt.Errorf("request pairing channel: %w", err)
		}
		go w.pumpQR(qrChan)
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	w.client = client
	return nil
}

func (w *WhatsApp) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		w.client.Disconnect()
	}
}

func (w *WhatsApp) Logout(ctx context.Context) error {
	w.mu.Lock()
	client := w.client
	w.mu.Unlock()
	if client == nil {
		return errors.New("no active session")
	}
	return client.Logout(ctx)
}

// ClearCredentials drops the sqlite credential file so the next
// Connect starts a fresh pairing.
func (w *WhatsApp) ClearCredentials() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.client != nil {
		w.client.Disconnect()
		w.client = nil
	}
	w.container = nil

	if err := os.Remove(w.dbPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential store: %w", err)
	}
	return nil
}

func (w *WhatsApp) SendText(ctx context.Context, to, text string) error {
	client, jid, err := w.target(to)
	if err != nil {
		return err
	}
	_, err = client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	return err
}

func (w *WhatsApp) SendButtons(ctx context.Context, to string, prompt ButtonPrompt) error {
	client, jid, err := w.target(to)
	if err != nil {
		return err
	}

	buttons := make([]*waE2E.ButtonsMessage_Button, 0, len(prompt.Buttons))
	for _, b := range prompt.Buttons {
		buttons = append(buttons, &waE2E.ButtonsMessage_Button{
			ButtonID: proto.String(b.ID),
			ButtonText: &waE2E.ButtonsMessage_Button_ButtonText{
				DisplayText: proto.String(b.Label),
			},
			Type: waE2E.ButtonsMessage_Button_RESPONSE.Enum(),
		})
	}

	msg := &waE2E.Message{
		ViewOnceMessage: &waE2E.FutureProofMessage{
			Message: &waE2E.Message{
				ButtonsMessage: &waE2E.ButtonsMessage{
					ContentText: proto.String(prompt.Text),
					FooterText:  proto.String(prompt.Footer),
					Buttons:     buttons,
					HeaderType:  waE2E.ButtonsMessage_EMPTY.Enum(),
				},
			},
		},
	}
	_, err = client.SendMessage(ctx, jid, msg)
	return err
}

func (w *WhatsApp) target(to string) (*whatsmeow.Client, types.JID, error) {
	w.mu.Lock()
	client := w.client
	w.mu.Unlock()
	if client == nil {
		return nil, types.JID{}, errors.New("no active session")
	}
	jid, err := types.ParseJID(to)
	if err != nil {
		return nil, types.JID{}, fmt.Errorf("parse jid %q: %w", to, err)
	}
	return client, jid, nil
}

func (w *WhatsApp) pumpQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
			w.emit(QREvent{Code: item.Code})
		case "timeout":
			w.emit(DisconnectedEvent{Cause: CausePairingTimeout})
		}
	}
}

func (w *WhatsApp) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Connected:
		w.emit(ConnectedEvent{})

	case *events.LoggedOut:
		w.emit(DisconnectedEvent{Cause: CauseLoggedOut})

	case *events.StreamReplaced:
		w.emit(DisconnectedEvent{Cause: CauseSessionReplaced})

	case *events.ConnectFailure:
		cause := CauseUnknown
		switch v.Reason {
		case events.ConnectFailureLoggedOut:
			cause = CauseLoggedOut
		case events.ConnectFailureServiceUnavailable:
			cause = CauseServiceUnavailable
		}
		w.emit(DisconnectedEvent{Cause: cause})

	case *events.Disconnected:
		w.emit(DisconnectedEvent{Cause: CauseUnknown})

	case *events.Contact:
		c := Contact{ID: v.JID.String()}
		if lid := v.Action.GetLidJID(); lid != "" {
			c.LID = lid
		}
		w.emit(ContactsSyncEvent{Contacts: []Contact{c}})

	case *events.Message:
		if v.Info.IsFromMe {
			return
		}
		w.emit(MessageEvent{Message: convertMessage(v)})
	}
}

func convertMessage(v *events.Message) Message {
	out := Message{
		Chat:     v.Info.Chat.String(),
		Sender:   v.Info.Sender.String(),
		PushName: v.Info.PushName,
	}
	if !v.Info.SenderAlt.IsEmpty() {
		out.SenderAlt = v.Info.SenderAlt.String()
	}

	msg := v.Message
	switch {
	case msg.GetLiveLocationMessage() != nil:
		out.Kind = KindLiveLocation

	case msg.GetLocationMessage() != nil:
		loc := msg.GetLocationMessage()
		out.Kind = KindStaticLocation
		out.Lat = loc.GetDegreesLatitude()
		out.Lng = loc.GetDegreesLongitude()

	case msg.GetButtonsResponseMessage() != nil:
		out.Kind = KindButtonReply
		out.ButtonID = msg.GetButtonsResponseMessage().GetSelectedButtonID()

	case msg.GetTemplateButtonReplyMessage() != nil:
		out.Kind = KindButtonReply
		out.ButtonID = msg.GetTemplateButtonReplyMessage().GetSelectedID()

	default:
		out.Kind = KindText
		out.Text = msg.GetConversation()
		if out.Text == "" {
			out.Text = msg.GetExtendedTextMessage().GetText()
		}
	}
	return out
}

// emit never blocks the library's event goroutine; if the consumer
// fell behind far enough to fill the buffer, the event is dropped.
func (w *WhatsApp) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
		w.log.Warn("event buffer full, dropping event")
	}
}
