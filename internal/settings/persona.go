package settings

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Persona configures the assistant's voice and behavior for the business.
// Zero values are filled with sensible defaults on decode.
type Persona struct {
	Identity           Identity           `json:"identity"`
	Tone               string             `json:"tone"`
	Capabilities       Capabilities       `json:"capabilities"`
	ReturningCustomers ReturningCustomers `json:"returning_customers"`
	Boundaries         Boundaries         `json:"boundaries"`
	CustomInstructions string             `json:"custom_instructions"`
}

// Identity controls how the assistant presents itself.
type Identity struct {
	DiscloseAI    bool   `json:"disclose_ai"`
	AgentName     string `json:"agent_name"`
	ActAsBusiness bool   `json:"act_as_business"`
}

// Capabilities toggles which booking actions the assistant may perform.
type Capabilities struct {
	CanBook            bool `json:"can_book"`
	CanCancel          bool `json:"can_cancel"`
	CanReschedule      bool `json:"can_reschedule"`
	CanAnswerQuestions bool `json:"can_answer_questions"`
	CanSendReminders   bool `json:"can_send_reminders"`
}

// ReturningCustomers controls behavior toward customers seen before.
type ReturningCustomers struct {
	GreetByName         bool `json:"greet_by_name"`
	RememberPreferences bool `json:"remember_preferences"`
}

// Boundaries restricts what the assistant will discuss.
type Boundaries struct {
	BookingOnly  bool   `json:"booking_only"`
	SharePricing bool   `json:"share_pricing"`
	PricingInfo  string `json:"pricing_info"`
}

// DefaultPersona returns the persona used when none has been configured.
func DefaultPersona() *Persona {
	return &Persona{
		Identity: Identity{DiscloseAI: true},
		Tone:     "professional",
		Capabilities: Capabilities{
			CanBook:            true,
			CanCancel:          true,
			CanReschedule:      true,
			CanAnswerQuestions: true,
		},
		ReturningCustomers: ReturningCustomers{GreetByName: true},
		Boundaries:         Boundaries{SharePricing: true},
	}
}

// ParsePersona decodes a persona document. Omitted fields keep their defaults,
// so a partial document like {"tone":"casual"} is valid.
func ParsePersona(data []byte) (*Persona, error) {
	p := DefaultPersona()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("settings: decode persona: %w", err)
	}
	if p.Tone == "" {
		p.Tone = "professional"
	}
	return p, nil
}

// UnmarshalJSON keeps defaults for omitted nested objects while still letting
// any present field override them.
func (p *Persona) UnmarshalJSON(data []byte) error {
	type alias Persona
	def := DefaultPersona()
	tmp := alias(*def)
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*p = Persona(tmp)
	return nil
}

// ToPrompt renders the persona as directive lines appended to the intent
// extraction system prompt. An all-default persona yields only the
// greet-by-name line.
func (p *Persona) ToPrompt() string {
	var lines []string

	if p.Identity.AgentName != "" {
		lines = append(lines, fmt.Sprintf("Your name is %s.", p.Identity.AgentName))
	}
	if !p.Identity.DiscloseAI {
		lines = append(lines, "Never reveal that you are an AI. Act as a human representative of the business.")
	}
	if p.Identity.ActAsBusiness {
		lines = append(lines, `Speak in first person as the business owner (use "I", "my", "we").`)
	}

	switch p.Tone {
	case "friendly":
		lines = append(lines, "Use a warm, friendly tone. Be personable and approachable.")
	case "casual":
		lines = append(lines, "Use a casual, relaxed tone. Keep it conversational, like texting a friend.")
		// "professional" is the default and needs no extra instruction.
	}

	var disabled []string
	if !p.Capabilities.CanBook {
		disabled = append(disabled, "booking new appointments")
	}
	if !p.Capabilities.CanCancel {
		disabled = append(disabled, "cancelling appointments")
	}
	if !p.Capabilities.CanReschedule {
		disabled = append(disabled, "rescheduling appointments")
	}
	if !p.Capabilities.CanAnswerQuestions {
		disabled = append(disabled, "answering general questions")
	}
	if len(disabled) > 0 {
		lines = append(lines, fmt.Sprintf(
			"You are NOT able to help with: %s. Politely let the customer know and suggest they contact the business directly.",
			strings.Join(disabled, ", ")))
	}

	if p.ReturningCustomers.GreetByName {
		lines = append(lines, "If you know the customer's name from previous messages, greet them by name.")
	}
	if p.ReturningCustomers.RememberPreferences {
		lines = append(lines, "Remember and reference the customer's previous preferences when relevant.")
	}

	if p.Boundaries.BookingOnly {
		lines = append(lines, "Only discuss topics related to booking appointments. Politely redirect any other topics.")
	}
	if p.Boundaries.SharePricing && p.Boundaries.PricingInfo != "" {
		lines = append(lines, "You may share the following pricing information: "+p.Boundaries.PricingInfo)
	}

	if p.CustomInstructions != "" {
		lines = append(lines, p.CustomInstructions)
	}

	if len(lines) == 0 {
		return ""
	}
	return "\nPersonality and behavior:\n" + strings.Join(lines, "\n")
}
