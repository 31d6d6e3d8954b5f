package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/bookline/internal/availability"
	"github.com/wolfman30/bookline/internal/booking"
	"github.com/wolfman30/bookline/internal/scheduling"
	"github.com/wolfman30/bookline/internal/settings"
	"github.com/wolfman30/bookline/pkg/logging"
)

// ConversationStore loads and persists per-phone conversations.
type ConversationStore interface {
	Load(ctx context.Context, phone string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
}

// BookingStore is the slice of the booking repository the engine needs.
type BookingStore interface {
	Create(ctx context.Context, b *booking.Booking) error
	ListForPhone(ctx context.Context, phone string, includeCancelled bool) ([]booking.Booking, error)
	UpdateStatus(ctx context.Context, id string, status booking.Status) (bool, error)
}

// TimeValidator checks a proposed slot against business hours and existing
// bookings.
type TimeValidator interface {
	Validate(ctx context.Context, start time.Time, durationMinutes int, avail *availability.Availability) error
}

// IntentSource produces structured intents from customer messages.
type IntentSource interface {
	Extract(ctx context.Context, history []Message, latest, businessContext string, persona *settings.Persona) (*ExtractedIntent, error)
}

// SettingsSource supplies the owner-configured availability and persona.
type SettingsSource interface {
	Availability(ctx context.Context) (*availability.Availability, error)
	Persona(ctx context.Context) (*settings.Persona, error)
}

// UsageCounter records monthly activity totals. Failures are non-fatal.
type UsageCounter interface {
	IncrBookings(ctx context.Context) error
	IncrCancelled(ctx context.Context) error
	IncrRescheduled(ctx context.Context) error
}

// OwnerNotifier pushes a heads-up to the business owner. Implementations
// swallow delivery failures.
type OwnerNotifier interface {
	NotifyOwner(ctx context.Context, message, aboutPhone string)
}

// EventRecorder appends to the per-phone inbox timeline.
type EventRecorder interface {
	Record(ctx context.Context, phone, kind, content string)
}

// Instrumentation exposes engine activity to monitoring. Optional.
type Instrumentation interface {
	ObserveLLMLatency(seconds float64)
	ObserveBookingAction(action string)
}

// EngineConfig carries the business identity the engine weaves into prompts
// and replies.
type EngineConfig struct {
	BusinessName  string
	BusinessPhone string
	OwnerPhone    string
	PublicBaseURL string
}

// Engine drives the SMS booking conversation. One inbound message in, one
// reply out, with all side effects (booking writes, notifications, inbox
// events) handled along the way.
type Engine struct {
	cfg       EngineConfig
	store     ConversationStore
	bookings  BookingStore
	validator TimeValidator
	intents   IntentSource
	settings  SettingsSource
	usage     UsageCounter
	notifier  OwnerNotifier
	recorder  EventRecorder
	instr     Instrumentation
	logger    *logging.Logger
	locks     *keyedMutex
}

// NewEngine wires up a conversation engine. The usage counter, notifier,
// recorder and instrumentation may be nil; the rest are required.
func NewEngine(cfg EngineConfig, store ConversationStore, bookings BookingStore, validator TimeValidator, intents IntentSource, settingsSrc SettingsSource, usage UsageCounter, notifier OwnerNotifier, recorder EventRecorder, instr Instrumentation, logger *logging.Logger) *Engine {
	if store == nil {
		panic("conversation: store cannot be nil")
	}
	if bookings == nil {
		panic("conversation: booking store cannot be nil")
	}
	if validator == nil {
		panic("conversation: validator cannot be nil")
	}
	if intents == nil {
		panic("conversation: intent source cannot be nil")
	}
	if settingsSrc == nil {
		panic("conversation: settings source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		cfg:       cfg,
		store:     store,
		bookings:  bookings,
		validator: validator,
		intents:   intents,
		settings:  settingsSrc,
		usage:     usage,
		notifier:  notifier,
		recorder:  recorder,
		instr:     instr,
		logger:    logger,
		locks:     newKeyedMutex(),
	}
}

// ProcessMessage handles one inbound customer message and returns the reply
// to send back. Messages from the same phone are serialized so concurrent
// texts cannot race a validate-then-book sequence into a double booking. On
// error nothing is persisted and no reply should be sent.
func (e *Engine) ProcessMessage(ctx context.Context, fromPhone, message string) (string, error) {
	fromPhone = strings.TrimSpace(fromPhone)
	if fromPhone == "" {
		return "", errors.New("conversation: from phone required")
	}

	e.locks.Lock(fromPhone)
	defer e.locks.Unlock(fromPhone)

	conv, err := e.store.Load(ctx, fromPhone)
	if err != nil {
		return "", err
	}
	if conv == nil {
		conv = NewConversation(fromPhone)
	}

	avail, err := e.settings.Availability(ctx)
	if err != nil {
		e.logger.Warn("failed to load availability, proceeding without hours", "error", err)
		avail = nil
	}
	persona, err := e.settings.Persona(ctx)
	if err != nil {
		e.logger.Warn("failed to load persona, proceeding with default", "error", err)
		persona = settings.DefaultPersona()
	}

	conv.Append(ChatRoleUser, message)
	e.record(ctx, fromPhone, "customer_message", message)

	llmStart := time.Now()
	extracted, err := e.intents.Extract(ctx, conv.Messages[:len(conv.Messages)-1], message, e.businessContext(avail), persona)
	if e.instr != nil {
		e.instr.ObserveLLMLatency(time.Since(llmStart).Seconds())
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("processing message",
		"phone", fromPhone,
		"intent", string(extracted.Intent),
		"state", string(conv.State),
	)

	reply, err := e.transition(ctx, conv, extracted, avail)
	if err != nil {
		return "", err
	}

	conv.Append(ChatRoleAssistant, reply)
	e.record(ctx, fromPhone, "ai_reply", reply)
	conv.Touch(time.Now().UTC())

	if err := e.store.Save(ctx, conv); err != nil {
		return "", err
	}
	return reply, nil
}

// InjectOwnerReply appends an owner-written message to the customer's
// transcript so the next extraction pass sees it as assistant context.
func (e *Engine) InjectOwnerReply(ctx context.Context, toPhone, message string) error {
	toPhone = strings.TrimSpace(toPhone)
	if toPhone == "" {
		return errors.New("conversation: to phone required")
	}

	e.locks.Lock(toPhone)
	defer e.locks.Unlock(toPhone)

	conv, err := e.store.Load(ctx, toPhone)
	if err != nil {
		return err
	}
	if conv == nil {
		conv = NewConversation(toPhone)
	}
	conv.Append(ChatRoleAssistant, message)
	conv.Touch(time.Now().UTC())
	return e.store.Save(ctx, conv)
}

func (e *Engine) businessContext(avail *availability.Availability) string {
	ctx := fmt.Sprintf("Business phone: %s. Owner phone: %s.", e.cfg.BusinessPhone, e.cfg.OwnerPhone)
	if avail != nil {
		if hours := avail.HumanReadable(); hours != "" {
			ctx += fmt.Sprintf(" Business hours: %s.", hours)
		}
	}
	return ctx
}

// transition applies one step of the state machine and returns the reply.
// Precedence mirrors how customers actually talk: an explicit new booking
// request restarts the flow from any state, and while collecting info every
// other intent just feeds the pending booking.
func (e *Engine) transition(ctx context.Context, conv *Conversation, extracted *ExtractedIntent, avail *availability.Availability) (string, error) {
	switch {
	case extracted.Intent == IntentBook:
		return e.handleBook(ctx, conv, extracted, avail)
	case conv.State == StateCollectingInfo:
		return e.handleCollecting(ctx, conv, extracted, avail)
	case conv.State == StateConfirming && extracted.Intent == IntentConfirm:
		return e.handleConfirm(ctx, conv, extracted, avail)
	case conv.State == StateConfirming && extracted.Intent == IntentDecline:
		conv.State = StateCollectingInfo
		return extracted.MessageToCustomer, nil
	case extracted.Intent == IntentCancel:
		return e.handleCancel(ctx, conv, extracted)
	case extracted.Intent == IntentReschedule:
		return e.handleReschedule(ctx, conv, extracted, avail)
	default:
		// General questions, unknowns, and stray confirms all pass the LLM
		// reply through with no state change.
		return extracted.MessageToCustomer, nil
	}
}

func (e *Engine) handleBook(ctx context.Context, conv *Conversation, extracted *ExtractedIntent, avail *availability.Availability) (string, error) {
	pending := &PendingBooking{
		Name:            extracted.CustomerName,
		Date:            extracted.RequestedDate,
		Time:            extracted.RequestedTime,
		DurationMinutes: extracted.DurationMinutes,
		Notes:           extracted.Notes,
	}
	conv.Pending = pending

	if !pending.Complete() {
		conv.State = StateCollectingInfo
		return extracted.MessageToCustomer, nil
	}

	start, ok := pending.ParseDateTime()
	if !ok {
		// Date or time fragment did not parse; keep collecting until the
		// LLM produces normalized values.
		conv.State = StateCollectingInfo
		return extracted.MessageToCustomer, nil
	}

	if reply, rejected, err := e.checkSlot(ctx, conv, start, pending.Duration(), avail); err != nil {
		return "", err
	} else if rejected {
		return reply, nil
	}

	conv.State = StateConfirming
	return extracted.MessageToCustomer, nil
}

func (e *Engine) handleCollecting(ctx context.Context, conv *Conversation, extracted *ExtractedIntent, avail *availability.Availability) (string, error) {
	if conv.Pending == nil {
		conv.Pending = &PendingBooking{}
	}
	pending := conv.Pending
	if extracted.CustomerName != "" {
		pending.Name = extracted.CustomerName
	}
	if extracted.RequestedDate != "" {
		pending.Date = extracted.RequestedDate
	}
	if extracted.RequestedTime != "" {
		pending.Time = extracted.RequestedTime
	}
	if extracted.DurationMinutes > 0 {
		pending.DurationMinutes = extracted.DurationMinutes
	}
	if extracted.Notes != "" {
		pending.Notes = extracted.Notes
	}

	advancing := extracted.Intent == IntentConfirm ||
		extracted.RequestedDate != "" ||
		extracted.RequestedTime != ""
	if !pending.Complete() || !advancing {
		return extracted.MessageToCustomer, nil
	}

	start, ok := pending.ParseDateTime()
	if !ok {
		return extracted.MessageToCustomer, nil
	}

	if reply, rejected, err := e.checkSlot(ctx, conv, start, pending.Duration(), avail); err != nil {
		return "", err
	} else if rejected {
		return reply, nil
	}

	conv.State = StateConfirming
	return extracted.MessageToCustomer, nil
}

func (e *Engine) handleConfirm(ctx context.Context, conv *Conversation, extracted *ExtractedIntent, avail *availability.Availability) (string, error) {
	pending := conv.Pending
	if pending == nil {
		conv.State = StateIdle
		return "I'm sorry, something went wrong. Could you start over?", nil
	}

	start, ok := pending.ParseDateTime()
	if !ok {
		conv.State = StateIdle
		conv.Pending = nil
		return "I'm sorry, something went wrong. Could you start over?", nil
	}

	// Re-validate inside the per-phone lock right before writing so a slot
	// taken since the proposal is caught here.
	if reply, rejected, err := e.checkSlot(ctx, conv, start, pending.Duration(), avail); err != nil {
		return "", err
	} else if rejected {
		return reply, nil
	}

	b := booking.New(conv.Phone, pending.Name, start, pending.Duration(), pending.Notes)
	if err := e.bookings.Create(ctx, b); err != nil {
		return "", err
	}
	if e.usage != nil {
		e.incrUsage(ctx, e.usage.IncrBookings)
	}
	e.observeAction("booked")

	reply := fmt.Sprintf("%s\n\nAdd to calendar: %s", extracted.MessageToCustomer, e.calendarLink(b.ID))

	name := pending.Name
	if name == "" {
		name = "Unknown"
	}
	when := pending.DateTimeString()
	if when == "" {
		when = "TBD"
	}
	e.notifyOwner(ctx, fmt.Sprintf("New booking: %s for %s at %s", name, when, conv.Phone), conv.Phone)

	conv.State = StateIdle
	conv.Pending = nil
	return reply, nil
}

func (e *Engine) handleCancel(ctx context.Context, conv *Conversation, extracted *ExtractedIntent) (string, error) {
	bookings, err := e.bookings.ListForPhone(ctx, conv.Phone, false)
	if err != nil {
		return "", err
	}

	conv.State = StateIdle
	conv.Pending = nil

	if len(bookings) == 0 {
		return "I don't see any upcoming bookings to cancel. Would you like to book an appointment instead?", nil
	}

	next := bookings[0]
	if _, err := e.bookings.UpdateStatus(ctx, next.ID, booking.StatusCancelled); err != nil {
		return "", err
	}
	if e.usage != nil {
		e.incrUsage(ctx, e.usage.IncrCancelled)
	}
	e.observeAction("cancelled")

	name := next.CustomerName
	if name == "" {
		name = "Unknown"
	}
	e.notifyOwner(ctx, fmt.Sprintf("Cancelled: %s for %s (%s) at %s",
		name, next.DateTime.Format("2006-01-02 15:04"), conv.Phone, next.ID), conv.Phone)

	return extracted.MessageToCustomer, nil
}

func (e *Engine) handleReschedule(ctx context.Context, conv *Conversation, extracted *ExtractedIntent, avail *availability.Availability) (string, error) {
	bookings, err := e.bookings.ListForPhone(ctx, conv.Phone, false)
	if err != nil {
		return "", err
	}
	if len(bookings) == 0 {
		conv.State = StateIdle
		conv.Pending = nil
		return extracted.MessageToCustomer, nil
	}

	next := bookings[0]
	if _, err := e.bookings.UpdateStatus(ctx, next.ID, booking.StatusCancelled); err != nil {
		return "", err
	}
	if e.usage != nil {
		e.incrUsage(ctx, e.usage.IncrRescheduled)
	}
	e.observeAction("rescheduled")

	pending := &PendingBooking{
		Name:            next.CustomerName,
		Date:            extracted.RequestedDate,
		Time:            extracted.RequestedTime,
		DurationMinutes: next.DurationMinutes,
		Notes:           next.Notes,
	}
	if pending.Name == "" {
		pending.Name = extracted.CustomerName
	}
	if extracted.DurationMinutes > 0 {
		pending.DurationMinutes = extracted.DurationMinutes
	}
	if extracted.Notes != "" {
		pending.Notes = extracted.Notes
	}
	conv.Pending = pending

	if pending.Date == "" || pending.Time == "" {
		conv.State = StateCollectingInfo
		return extracted.MessageToCustomer, nil
	}

	start, ok := pending.ParseDateTime()
	if !ok {
		conv.State = StateCollectingInfo
		return extracted.MessageToCustomer, nil
	}

	if reply, rejected, err := e.checkSlot(ctx, conv, start, pending.Duration(), avail); err != nil {
		return "", err
	} else if rejected {
		return reply, nil
	}

	conv.State = StateConfirming
	return extracted.MessageToCustomer, nil
}

// checkSlot validates a proposed slot. A rejection sends the customer back to
// collecting info with the rejection text as the reply; any other validator
// error aborts the turn.
func (e *Engine) checkSlot(ctx context.Context, conv *Conversation, start time.Time, durationMinutes int, avail *availability.Availability) (string, bool, error) {
	err := e.validator.Validate(ctx, start, durationMinutes, avail)
	if err == nil {
		return "", false, nil
	}
	var rejection *scheduling.RejectionError
	if errors.As(err, &rejection) {
		conv.State = StateCollectingInfo
		return rejection.Error(), true, nil
	}
	return "", false, err
}

func (e *Engine) calendarLink(id string) string {
	base := strings.TrimRight(e.cfg.PublicBaseURL, "/")
	return fmt.Sprintf("%s/calendar/%s.ics", base, id)
}

func (e *Engine) notifyOwner(ctx context.Context, message, aboutPhone string) {
	e.record(ctx, aboutPhone, "system", message)
	if e.notifier != nil {
		e.notifier.NotifyOwner(ctx, message, aboutPhone)
	}
}

func (e *Engine) record(ctx context.Context, phone, kind, content string) {
	if e.recorder != nil {
		e.recorder.Record(ctx, phone, kind, content)
	}
}

func (e *Engine) observeAction(action string) {
	if e.instr != nil {
		e.instr.ObserveBookingAction(action)
	}
}

func (e *Engine) incrUsage(ctx context.Context, incr func(context.Context) error) {
	if err := incr(ctx); err != nil {
		e.logger.Warn("failed to record usage", "error", err)
	}
}
