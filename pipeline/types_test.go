package pipeline

import (
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/Sumitbhoyar/customer-support-copilot/errors"
)

func TestTicketValidateDefaults(t *testing.T) {
	ticket := TicketInput{Title: "  Invoice problem  ", Description: " billed twice "}
	if err := ticket.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.Title != "Invoice problem" || ticket.Description != "billed twice" {
		t.Errorf("fields not trimmed: %+v", ticket)
	}
	if ticket.Channel != "email" || ticket.Locale != "en-US" {
		t.Errorf("defaults not applied: %+v", ticket)
	}
}

func TestTicketValidateRejectsBlankFields(t *testing.T) {
	tests := []struct {
		name   string
		ticket TicketInput
		field  string
	}{
		{"blank title", TicketInput{Title: "   ", Description: "d"}, "title"},
		{"blank description", TicketInput{Title: "t", Description: ""}, "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ticket.Validate()
			if !stderrors.Is(err, errors.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var verr *errors.ValidationError
			if !stderrors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("expected field %s, got %v", tt.field, err)
			}
		})
	}
}

func TestGenerationResultWireFormat(t *testing.T) {
	result := GenerationResult{
		PrimaryDraft: ResponseDraft{
			Text:        "Hello",
			Citations:   []string{"kb://faq"},
			Confidence:  0.65,
			SafetyFlags: []SafetyFlag{FlagOffBrand},
		},
		SuggestedNextSteps: defaultNextSteps(),
		GuardrailTriggered: true,
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)
	for _, field := range []string{`"primary_draft"`, `"safety_flags"`, `"off_brand"`, `"guardrail_triggered":true`, `"suggested_next_steps"`} {
		if !strings.Contains(body, field) {
			t.Errorf("wire format missing %s: %s", field, body)
		}
	}
	if strings.Contains(body, "alternative_draft") {
		t.Errorf("nil alternative draft must be omitted: %s", body)
	}
}
