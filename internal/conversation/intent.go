package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/bookline/internal/settings"
	"github.com/wolfman30/bookline/pkg/logging"
)

// Intent is what the customer is trying to do in their latest message.
type Intent string

const (
	IntentBook            Intent = "book"
	IntentReschedule      Intent = "reschedule"
	IntentCancel          Intent = "cancel"
	IntentConfirm         Intent = "confirm"
	IntentDecline         Intent = "decline"
	IntentGeneralQuestion Intent = "general_question"
	IntentUnknown         Intent = "unknown"
)

// UnmarshalJSON rejects unrecognized intent values so a malformed LLM reply
// falls through to the raw-text fallback instead of half-parsing.
func (i *Intent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Intent(s) {
	case IntentBook, IntentReschedule, IntentCancel, IntentConfirm,
		IntentDecline, IntentGeneralQuestion, IntentUnknown:
		*i = Intent(s)
		return nil
	default:
		return fmt.Errorf("conversation: unrecognized intent %q", s)
	}
}

// ExtractedIntent is the structured result of a single extraction pass.
type ExtractedIntent struct {
	Intent            Intent `json:"intent"`
	CustomerName      string `json:"customer_name,omitempty"`
	RequestedDate     string `json:"requested_date,omitempty"`
	RequestedTime     string `json:"requested_time,omitempty"`
	DurationMinutes   int    `json:"duration_minutes,omitempty"`
	Notes             string `json:"notes,omitempty"`
	MessageToCustomer string `json:"message_to_customer"`
}

const intentSystemPrompt = `You are an intent extraction engine for an SMS booking assistant. Analyze the customer's latest message in context of the conversation history.

Return ONLY valid JSON (no markdown, no explanation) with this exact structure:
{
  "intent": "book|reschedule|cancel|confirm|decline|general_question|unknown",
  "customer_name": "extracted name or null",
  "requested_date": "extracted date like 2025-01-15 or null",
  "requested_time": "extracted time like 14:00 or null",
  "duration_minutes": 60,
  "notes": "any special requests or null",
  "message_to_customer": "Your friendly reply to the customer"
}

Intent rules:
- "book": Customer wants to schedule a new appointment
- "reschedule": Customer wants to change an existing appointment
- "cancel": Customer wants to cancel an existing appointment
- "confirm": Customer says yes/ok/confirmed/sounds good to a proposed time
- "decline": Customer says no/that doesn't work to a proposed time
- "general_question": Customer asks about services, hours, pricing, etc.
- "unknown": Can't determine intent

When booking, only suggest times within the business hours shown in the context.
If the customer requests a time outside business hours, politely suggest the nearest available time.

For the message_to_customer:
- Be friendly and professional
- If booking: ask for missing info (name, preferred date/time) or propose a time
- If confirming: acknowledge the booking is confirmed
- If cancelling: confirm what's being cancelled
- Keep messages concise (SMS-friendly, under 160 chars when possible)
`

// IntentExtractor turns customer messages into structured intents via an LLM.
type IntentExtractor struct {
	llm    LLMClient
	logger *logging.Logger
}

// NewIntentExtractor creates an extractor over the given LLM client.
func NewIntentExtractor(llm LLMClient, logger *logging.Logger) *IntentExtractor {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &IntentExtractor{llm: llm, logger: logger}
}

// Extract runs one extraction pass over the conversation history plus the
// latest customer message.
func (e *IntentExtractor) Extract(ctx context.Context, history []Message, latest, businessContext string, persona *settings.Persona) (*ExtractedIntent, error) {
	messages := make([]ChatMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, ChatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: latest})

	var personality string
	if persona != nil {
		personality = persona.ToPrompt()
	}
	system := fmt.Sprintf("%s%s\n\nBusiness context:\n%s", intentSystemPrompt, personality, businessContext)

	resp, err := e.llm.Complete(ctx, LLMRequest{
		System:   []string{system},
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: intent extraction failed: %w", err)
	}

	return e.parseIntentResponse(resp.Text), nil
}

// parseIntentResponse recovers structured intent from whatever the model
// returned. It never fails: unparsable output becomes an unknown intent with
// the raw text as the customer-facing reply.
func (e *IntentExtractor) parseIntentResponse(response string) *ExtractedIntent {
	if out, ok := tryParseIntent(response); ok {
		return out
	}

	// Strip markdown code fences.
	cleaned := strings.TrimSpace(response)
	if after, ok := strings.CutPrefix(cleaned, "```json"); ok {
		cleaned = after
	} else if after, ok := strings.CutPrefix(cleaned, "```"); ok {
		cleaned = after
	}
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))

	if out, ok := tryParseIntent(cleaned); ok {
		return out
	}

	// Last resort, look for a JSON object embedded in surrounding prose.
	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			if out, ok := tryParseIntent(cleaned[start : end+1]); ok {
				return out
			}
		}
	}

	e.logger.Warn("failed to parse LLM response as intent JSON, using fallback")
	return &ExtractedIntent{
		Intent:            IntentUnknown,
		MessageToCustomer: response,
	}
}

func tryParseIntent(s string) (*ExtractedIntent, bool) {
	var out ExtractedIntent
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false
	}
	if out.Intent == "" {
		return nil, false
	}
	return &out, true
}
