package models

import (
	"strings"
	"testing"
)

func TestStartQualificationRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     StartQualificationRequest
		wantErr error
	}{
		{"valid", StartQualificationRequest{ProspectID: "pros_1"}, nil},
		{"empty id", StartQualificationRequest{ProspectID: ""}, ErrEmptyProspectID},
		{"whitespace id", StartQualificationRequest{ProspectID: "   "}, ErrEmptyProspectID},
		{"company too long", StartQualificationRequest{ProspectID: "p", CompanyName: strings.Repeat("x", MaxCompanyNameLength+1)}, ErrCompanyNameTooLong},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := c.req.Validate(); err != c.wantErr {
				t.Errorf("Validate() = %v, want %v", err, c.wantErr)
			}
		})
	}
}

func TestSubmitResponseRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     SubmitResponseRequest
		wantErr error
	}{
		{"valid", SubmitResponseRequest{ConversationID: "conv_1", ResponseText: "hi"}, nil},
		{"empty conversation", SubmitResponseRequest{ResponseText: "hi"}, ErrEmptyConversationID},
		{"empty text", SubmitResponseRequest{ConversationID: "conv_1", ResponseText: "  "}, ErrEmptyResponseText},
		{"text too long", SubmitResponseRequest{ConversationID: "conv_1", ResponseText: strings.Repeat("a", MaxResponseTextLength+1)}, ErrResponseTextTooLong},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := c.req.Validate(); err != c.wantErr {
				t.Errorf("Validate() = %v, want %v", err, c.wantErr)
			}
		})
	}
}

func TestCreateProspectRequestValidate(t *testing.T) {
	if err := (&CreateProspectRequest{CompanyName: "Acme", Email: "a@b.co"}).Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
	if err := (&CreateProspectRequest{}).Validate(); err == nil {
		t.Error("missing company name accepted")
	}
	if err := (&CreateProspectRequest{CompanyName: "Acme", Email: "nope"}).Validate(); err == nil {
		t.Error("invalid email accepted")
	}
}

func TestRoundStateFrom(t *testing.T) {
	s, err := RoundStateFrom(RoundStatusInProgress, 3)
	if err != nil {
		t.Fatalf("RoundStateFrom failed: %v", err)
	}
	if s.Kind() != RoundInProgressKind || s.Step() != 3 {
		t.Errorf("state = kind %v step %d, want in-progress step 3", s.Kind(), s.Step())
	}
	if s.Status() != RoundStatusInProgress {
		t.Errorf("status round-trip = %q", s.Status())
	}

	if _, err := RoundStateFrom(RoundStatusInProgress, 0); err == nil {
		t.Error("step 0 accepted for in-progress")
	}
	if _, err := RoundStateFrom(RoundStatusInProgress, TotalSteps+1); err == nil {
		t.Error("step beyond final accepted for in-progress")
	}
	if _, err := RoundStateFrom(RoundStatus("bogus"), 1); err == nil {
		t.Error("bogus status accepted")
	}

	done, err := RoundStateFrom(RoundStatusCompleted, 0)
	if err != nil {
		t.Fatalf("completed state rejected: %v", err)
	}
	if done.Step() != TotalSteps {
		t.Errorf("completed step = %d, want %d", done.Step(), TotalSteps)
	}
}

func TestExtractedDataProgress(t *testing.T) {
	d := ExtractedData{}
	if d.Progress() != 0 {
		t.Errorf("empty progress = %d, want 0", d.Progress())
	}

	for _, f := range AllFields() {
		d[f] = "x"
	}
	if d.Progress() != 100 {
		t.Errorf("full progress = %d, want 100", d.Progress())
	}
}

func TestExtractedDataMissingRequired(t *testing.T) {
	d := ExtractedData{FieldProblemType: "scheduling"}
	missing := d.MissingRequired(1)
	if len(missing) != 2 {
		t.Fatalf("missing = %v, want 2 fields", missing)
	}
	if missing[0] != FieldJobFunction || missing[1] != FieldIndustry {
		t.Errorf("missing = %v, want declaration order [jobFunction industry]", missing)
	}
}

func TestRoundProgressCompleted(t *testing.T) {
	r := ConversationRound{Status: RoundStatusCompleted}
	if r.Progress() != 100 {
		t.Errorf("completed round progress = %d, want 100", r.Progress())
	}
}
