// Package handlers interprets inbound messages and produces the chat
// replies of the attendance protocol. Every "ignore" branch is silent
// on purpose: replies must not reveal whether a phone number is
// registered.
package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"checador-bot/internal/database"
	"checador-bot/internal/identity"
	"checador-bot/internal/models"
	"checador-bot/internal/services"
	"checador-bot/internal/session"
	"checador-bot/internal/transport"
	"checador-bot/pkg/logger"
)

// Button ids of the two-option prompt.
const (
	buttonCheckIn  = "check-in"
	buttonCheckOut = "check-out"
)

// Router dispatches one inbound event to at most one reply and at most
// one state mutation.
type Router struct {
	store      database.Store
	resolver   *identity.Resolver
	sessions   *session.Store
	attendance *services.AttendanceService
	sender     transport.Sender
	loc        *time.Location
	now        func() time.Time
	log        *zap.Logger
}

func NewRouter(
	store database.Store,
	resolver *identity.Resolver,
	sessions *session.Store,
	attendance *services.AttendanceService,
	sender transport.Sender,
	loc *time.Location,
	log *zap.Logger,
) *Router {
	return &Router{
		store:      store,
		resolver:   resolver,
		sessions:   sessions,
		attendance: attendance,
		sender:     sender,
		loc:        loc,
		now:        time.Now,
		log:        log,
	}
}

// HandleContactsSync feeds a contact-sync batch to the identity
// resolver.
func (r *Router) HandleContactsSync(ctx context.Context, contacts []transport.Contact) {
	r.resolver.HandleContactsSync(contacts)
}

// HandleMessage processes one inbound message. Handling is serialized
// per contact key so two quick messages from the same phone cannot
// race the read-validate-commit sequence.
func (r *Router) HandleMessage(ctx context.Context, msg transport.Message) {
	jid := msg.Sender
	if identity.IsAnonymized(jid) {
		switch {
		case msg.SenderAlt != "":
			// The network sent the stable id alongside the anonymized
			// one; remember the pair.
			r.resolver.RegisterPair(jid, msg.SenderAlt)
			jid = msg.SenderAlt
		default:
			resolved, ok := r.resolver.Resolve(jid)
			if !ok {
				r.log.Warn("unresolvable sender, message dropped",
					zap.String(logger.FieldJID, msg.Sender))
				return
			}
			jid = resolved
		}
	}

	phone := identity.NormalizePhone(identity.PhoneFromJID(jid))
	replyTo := jid

	r.log.Debug("inbound message",
		zap.String(logger.FieldJID, msg.Sender),
		zap.String(logger.FieldPhone, phone),
		zap.String("push_name", msg.PushName))

	unlock := r.sessions.Acquire(phone)
	defer unlock()

	switch msg.Kind {
	case transport.KindLiveLocation:
		r.handleLiveLocation(ctx, replyTo, phone)
	case transport.KindStaticLocation:
		r.handleLocation(ctx, replyTo, phone, msg.Lat, msg.Lng)
	case transport.KindButtonReply:
		r.handleButtonReply(ctx, replyTo, phone, msg.ButtonID)
	case transport.KindText:
		r.handleText(ctx, replyTo, phone, msg.Text)
	}
}

// handleLiveLocation rejects continuous shares, but only speaks up when
// the contact actually has a pending action.
func (r *Router) handleLiveLocation(ctx context.Context, replyTo, phone string) {
	if _, ok := r.sessions.Get(phone); !ok {
		return
	}
	r.log.Info("live location rejected", zap.String(logger.FieldPhone, phone))
	r.send(ctx, replyTo, "❌ No aceptamos ubicación en tiempo real.\n\n"+
		"Por favor, envía tu *Ubicación actual*:\n"+
		"1. Toca el clip (📎)\n"+
		"2. Ubicación\n"+
		"3. *Enviar mi ubicación actual*")
}

func (r *Router) handleLocation(ctx context.Context, replyTo, phone string, lat, lng float64) {
	sess, ok := r.sessions.Get(phone)
	if !ok {
		r.log.Info("location ignored, no pending action", zap.String(logger.FieldPhone, phone))
		return
	}

	// Re-verify the user; the directory may have changed since the
	// session was armed.
	user, err := r.store.UserByPhone(ctx, phone)
	if err != nil {
		r.log.Warn("user vanished while pending", zap.String(logger.FieldPhone, phone))
		return
	}

	res, err := r.attendance.CheckGeofence(ctx, user, lat, lng)
	if err != nil {
		r.log.Error("geofence check failed", zap.Error(err), zap.String(logger.FieldPhone, phone))
		return
	}
	if !res.OK {
		// Session stays armed so the contact can move closer and retry.
		r.send(ctx, replyTo, fmt.Sprintf(
			"⚠️ *Ups! No estás en tu zona de trabajo.*\n\n"+
				"Hola %s, intentas registrarte en *%s*, pero tu ubicación actual está fuera del área permitida.\n\n"+
				"Por favor acércate a la zona de trabajo e inténtalo de nuevo. ¡Gracias!",
			user.Name, res.Location.Name))
		return
	}

	locationName := ""
	if res.Location != nil {
		locationName = res.Location.Name
	}

	entry, err := r.attendance.Commit(ctx, user, sess.Pending,
		&models.Coordinates{Lat: lat, Lng: lng}, locationName)
	if err != nil {
		r.log.Error("attendance commit failed", zap.Error(err), zap.String(logger.FieldUserID, user.ID))
		return
	}
	r.sessions.Clear(phone)

	r.log.Info("attendance registered",
		zap.String(logger.FieldUserID, user.ID),
		zap.String("type", string(entry.Type)),
		zap.String("location", locationName))

	hora := entry.Timestamp.In(r.loc).Format("15:04")
	r.send(ctx, replyTo, fmt.Sprintf(
		"✅ *¡%s REGISTRADA CON ÉXITO!*\n\n"+
			"Hola %s, hemos guardado tu registro a las *%s*.\n\n"+
			"¡Que tengas un excelente día! ✨",
		actionUpper(entry.Type), user.Name, hora))
}

func (r *Router) handleButtonReply(ctx context.Context, replyTo, phone, buttonID string) {
	user, err := r.store.UserByPhone(ctx, phone)
	if err != nil {
		return
	}
	if !user.Active {
		r.log.Info("inactive user ignored", zap.String(logger.FieldUserID, user.ID))
		return
	}

	action := models.CheckOut
	if buttonID == buttonCheckIn {
		action = models.CheckIn
	}
	r.approveAction(ctx, replyTo, phone, user, action, false)
}

func (r *Router) handleText(ctx context.Context, replyTo, phone, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	clean := strings.ToUpper(text)

	user, err := r.store.UserByPhone(ctx, phone)
	if err != nil || !user.Active {
		// Unknown or inactive phone: silent, whatever was typed.
		return
	}

	// Exact code match triggers the two-button prompt. No session is
	// armed yet; that happens on the button reply.
	if strings.ToUpper(user.Code) == clean {
		r.log.Info("code accepted, sending action prompt", zap.String(logger.FieldUserID, user.ID))
		prompt := transport.ButtonPrompt{
			Text: fmt.Sprintf("¡Hola %s! 👋\nEs un gusto saludarte. ¿Qué deseas registrar hoy?",
				user.Name),
			Footer: "Selecciona una opción abajo 👇",
			Buttons: []transport.Button{
				{ID: buttonCheckIn, Label: "📥 Entrada"},
				{ID: buttonCheckOut, Label: "📤 Salida"},
			},
		}
		if err := r.sender.SendButtons(ctx, replyTo, prompt); err != nil {
			r.log.Error("button prompt failed", zap.Error(err), zap.String(logger.FieldJID, replyTo))
		}
		return
	}

	prefix := clean[0]
	code := strings.TrimSpace(text[1:])

	switch prefix {
	case 'I':
		if !strings.EqualFold(code, user.Code) {
			r.log.Info("wrong code for report", zap.String(logger.FieldUserID, user.ID))
			return
		}
		r.sendMonthlyReport(ctx, replyTo, user)
	case 'E', 'S':
		if !strings.EqualFold(code, user.Code) {
			r.log.Info("wrong code", zap.String(logger.FieldUserID, user.ID))
			return
		}
		action := models.CheckOut
		if prefix == 'E' {
			action = models.CheckIn
		}
		r.approveAction(ctx, replyTo, phone, user, action, true)
	}
}

// approveAction runs the cycle rules and, when allowed, arms the
// pending action and prompts for a location.
func (r *Router) approveAction(ctx context.Context, replyTo, phone string, user *models.User, action models.LogType, legacy bool) {
	rejection, last, err := r.attendance.ValidateCycle(ctx, user, action)
	if err != nil {
		r.log.Error("cycle validation failed", zap.Error(err), zap.String(logger.FieldUserID, user.ID))
		return
	}
	if rejection != services.CycleOK {
		r.log.Info("cycle rejected",
			zap.String(logger.FieldUserID, user.ID),
			zap.String("type", string(action)))
		r.send(ctx, replyTo, r.cycleMessage(rejection, last))
		return
	}

	r.sessions.Arm(phone, action, user.Code)
	r.log.Info("pending action armed, waiting for location",
		zap.String(logger.FieldUserID, user.ID),
		zap.String("type", string(action)))

	label := actionLabel(action)
	if legacy {
		r.send(ctx, replyTo, fmt.Sprintf(
			"✅ Código aceptado, %s.\nVamos a registrar tu *%s*.\n\n"+
				"📍 Por favor envíame tu *Ubicación Actual* ahora.",
			user.Name, label))
		return
	}
	r.send(ctx, replyTo, fmt.Sprintf(
		"👍 Entendido %s, registremos tu *%s*.\n\n"+
			"📍 Por favor compárteme tu *Ubicación Actual* para confirmar que estás en zona.",
		user.Name, label))
}

func (r *Router) cycleMessage(rejection services.CycleRejection, last *models.AttendanceLog) string {
	lastTime := ""
	lastDate := ""
	if last != nil {
		lastTime = last.Timestamp.In(r.loc).Format("15:04")
		lastDate = last.Timestamp.In(r.loc).Format("2006-01-02")
	}

	switch rejection {
	case services.CycleAlreadyCheckedIn:
		return fmt.Sprintf("❌ *Ya tienes una ENTRADA hoy*.\n\n"+
			"Registrada a las: %s.\nDebes registrar tu *Salida* (S) primero.", lastTime)
	case services.CycleNoCheckIn:
		return "❌ *No tienes una Entrada registrada*.\n\nPrimero debes registrar tu *Entrada* (E)."
	case services.CycleAlreadyCheckedOut:
		return fmt.Sprintf("❌ *Ya registraste tu SALIDA de hoy*.\n\nRegistrada a las: %s.", lastTime)
	case services.CycleStaleCheckOut:
		return fmt.Sprintf("❌ *No tienes una Entrada activa hoy*.\n\n"+
			"Tu último registro fue una Salida el %s.\nRegistra tu *Entrada* (E) primero.", lastDate)
	default:
		return ""
	}
}

func (r *Router) sendMonthlyReport(ctx context.Context, replyTo string, user *models.User) {
	logs, err := r.store.Logs(ctx)
	if err != nil {
		r.log.Error("log collection read failed", zap.Error(err))
		return
	}

	report := services.UserMonthlyReport(logs, user.ID, r.now(), r.loc)
	if report.TotalHours == 0 {
		r.send(ctx, replyTo, fmt.Sprintf(
			"📅 *Reporte Mensual: %s*\n\nHola %s, aún no tienes horas registradas este mes.",
			report.MonthName, user.Name))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 *Reporte Mensual: %s*\n", report.MonthName)
	fmt.Fprintf(&b, "👤 %s\n\n", user.Name)
	b.WriteString("*Desglose por día:*\n")
	for _, day := range report.Days {
		fmt.Fprintf(&b, "• %s:  *%s hrs*\n", services.FormatReportDay(day.Date, r.loc), formatHours(day.Hours))
	}
	fmt.Fprintf(&b, "\n📊 *TOTAL MES: %s hrs*", formatHours(report.TotalHours))

	r.send(ctx, replyTo, b.String())
	r.log.Info("monthly report sent", zap.String(logger.FieldUserID, user.ID))
}

func (r *Router) send(ctx context.Context, to, text string) {
	if err := r.sender.SendText(ctx, to, text); err != nil {
		r.log.Error("send failed", zap.Error(err), zap.String(logger.FieldJID, to))
	}
}

func actionLabel(t models.LogType) string {
	if t == models.CheckIn {
		return "Entrada"
	}
	return "Salida"
}

func actionUpper(t models.LogType) string {
	if t == models.CheckIn {
		return "ENTRADA"
	}
	return "SALIDA"
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
