package flow

import (
	"errors"
	"testing"

	"github.com/carsonraft/yenta/internal/models"
	"github.com/carsonraft/yenta/internal/scoring"
)

func TestRuleExtractorIndustry(t *testing.T) {
	e := NewRuleExtractor(nil)
	got := e.Extract("We're in healthcare")
	if got[models.FieldIndustry] != "healthcare" {
		t.Errorf("industry = %q, want healthcare", got[models.FieldIndustry])
	}
	if len(got) != 1 {
		t.Errorf("extracted %d fields, want 1: %v", len(got), got)
	}
}

func TestRuleExtractorJobFunction(t *testing.T) {
	e := NewRuleExtractor(nil)
	got := e.Extract("I'm the VP of Operations")
	if got[models.FieldJobFunction] != "vp" {
		t.Errorf("jobFunction = %q, want vp", got[models.FieldJobFunction])
	}
}

func TestRuleExtractorCaseInsensitive(t *testing.T) {
	e := NewRuleExtractor(nil)
	got := e.Extract("WE RUN A HOSPITAL")
	if got[models.FieldIndustry] != "healthcare" {
		t.Errorf("industry = %q, want healthcare", got[models.FieldIndustry])
	}
}

func TestRuleExtractorNoMatch(t *testing.T) {
	e := NewRuleExtractor(nil)
	got := e.Extract("xyzzy plugh")
	if len(got) != 0 {
		t.Errorf("expected no fields for unmatched utterance, got %v", got)
	}
}

func TestRuleExtractorLaterRuleWins(t *testing.T) {
	rules := RuleSet{
		{Keywords: []string{"widget"}, Field: models.FieldIndustry, Value: "first"},
		{Keywords: []string{"widget"}, Field: models.FieldIndustry, Value: "second"},
	}
	e := NewRuleExtractor(rules)
	got := e.Extract("we make widgets")
	if got[models.FieldIndustry] != "second" {
		t.Errorf("industry = %q, want second (later rule wins)", got[models.FieldIndustry])
	}
}

func TestRuleExtractorMultipleFields(t *testing.T) {
	e := NewRuleExtractor(nil)
	got := e.Extract("I'm a director at a fintech company and scheduling is killing us")
	if got[models.FieldJobFunction] != "director" {
		t.Errorf("jobFunction = %q, want director", got[models.FieldJobFunction])
	}
	if got[models.FieldIndustry] != "finance" {
		t.Errorf("industry = %q, want finance", got[models.FieldIndustry])
	}
	if got[models.FieldProblemType] != "scheduling" {
		t.Errorf("problemType = %q, want scheduling", got[models.FieldProblemType])
	}
}

func TestLLMExtractorParsesResponse(t *testing.T) {
	mock := &scoring.MockClient{GenerateResponse: `{"industry": "healthcare", "jobFunction": "cto"}`}
	e := NewLLMExtractor(mock, nil)
	got := e.Extract("whatever the prospect said")
	if got[models.FieldIndustry] != "healthcare" {
		t.Errorf("industry = %q, want healthcare", got[models.FieldIndustry])
	}
	if got[models.FieldJobFunction] != "cto" {
		t.Errorf("jobFunction = %q, want cto", got[models.FieldJobFunction])
	}
}

func TestLLMExtractorStripsCodeFences(t *testing.T) {
	mock := &scoring.MockClient{GenerateResponse: "```json\n{\"industry\": \"retail\"}\n```"}
	e := NewLLMExtractor(mock, nil)
	got := e.Extract("we sell shoes online")
	if got[models.FieldIndustry] != "retail" {
		t.Errorf("industry = %q, want retail", got[models.FieldIndustry])
	}
}

func TestLLMExtractorDropsUnknownFields(t *testing.T) {
	mock := &scoring.MockClient{GenerateResponse: `{"industry": "finance", "favoriteColor": "blue", "timeline": ""}`}
	e := NewLLMExtractor(mock, nil)
	got := e.Extract("banking stuff")
	if got[models.FieldIndustry] != "finance" {
		t.Errorf("industry = %q, want finance", got[models.FieldIndustry])
	}
	if len(got) != 1 {
		t.Errorf("expected unknown and empty fields dropped, got %v", got)
	}
}

func TestLLMExtractorFallsBackOnError(t *testing.T) {
	mock := &scoring.MockClient{GenerateErr: errors.New("rate limited")}
	e := NewLLMExtractor(mock, nil)
	got := e.Extract("We're in healthcare")
	if got[models.FieldIndustry] != "healthcare" {
		t.Errorf("fallback industry = %q, want healthcare", got[models.FieldIndustry])
	}
}

func TestLLMExtractorFallsBackOnGarbage(t *testing.T) {
	mock := &scoring.MockClient{GenerateResponse: "sorry, I can't help with that"}
	e := NewLLMExtractor(mock, nil)
	got := e.Extract("I'm the VP of Operations")
	if got[models.FieldJobFunction] != "vp" {
		t.Errorf("fallback jobFunction = %q, want vp", got[models.FieldJobFunction])
	}
}
