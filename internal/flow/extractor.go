// Package flow implements the qualification conversation logic for Yenta:
// the intake stepper, the field extractor, the round gate, and the
// data-quality analyzer.
package flow

import (
	"log/slog"
	"strings"

	"github.com/carsonraft/yenta/internal/models"
)

// Extractor maps a free-text utterance to partial field updates. Fields with
// no matching signal are absent from the result, never fabricated.
type Extractor interface {
	Extract(utterance string) models.ExtractedData
}

// Rule matches any of its keywords (case-insensitive substring) and sets a
// single field to a value.
type Rule struct {
	Keywords []string
	Field    models.FieldName
	Value    string
}

// RuleSet is an ordered list of extraction rules. When multiple rules set the
// same field within one call, the later rule wins.
type RuleSet []Rule

// DefaultRules returns the built-in keyword rule table.
func DefaultRules() RuleSet {
	return RuleSet{
		// Industry
		{Keywords: []string{"healthcare", "hospital", "clinic", "medical"}, Field: models.FieldIndustry, Value: "healthcare"},
		{Keywords: []string{"finance", "banking", "fintech", "insurance"}, Field: models.FieldIndustry, Value: "finance"},
		{Keywords: []string{"retail", "e-commerce", "ecommerce"}, Field: models.FieldIndustry, Value: "retail"},
		{Keywords: []string{"manufacturing", "factory", "industrial"}, Field: models.FieldIndustry, Value: "manufacturing"},
		{Keywords: []string{"software", "saas", "tech company"}, Field: models.FieldIndustry, Value: "technology"},
		{Keywords: []string{"logistics", "shipping", "supply chain"}, Field: models.FieldIndustry, Value: "logistics"},

		// Job function
		{Keywords: []string{"ceo", "chief executive", "founder", "owner"}, Field: models.FieldJobFunction, Value: "ceo"},
		{Keywords: []string{"cto", "chief technology"}, Field: models.FieldJobFunction, Value: "cto"},
		{Keywords: []string{"cfo", "chief financial"}, Field: models.FieldJobFunction, Value: "cfo"},
		{Keywords: []string{"vp", "vice president"}, Field: models.FieldJobFunction, Value: "vp"},
		{Keywords: []string{"director"}, Field: models.FieldJobFunction, Value: "director"},
		{Keywords: []string{"manager"}, Field: models.FieldJobFunction, Value: "manager"},

		// Problem type
		{Keywords: []string{"scheduling", "calendar", "booking"}, Field: models.FieldProblemType, Value: "scheduling"},
		{Keywords: []string{"hiring", "recruiting", "staffing"}, Field: models.FieldProblemType, Value: "hiring"},
		{Keywords: []string{"billing", "invoicing", "payments"}, Field: models.FieldProblemType, Value: "billing"},
		{Keywords: []string{"manual process", "spreadsheet", "paperwork", "data entry"}, Field: models.FieldProblemType, Value: "manual_process"},
		{Keywords: []string{"customer support", "tickets", "help desk"}, Field: models.FieldProblemType, Value: "customer_support"},
		{Keywords: []string{"reporting", "analytics", "visibility"}, Field: models.FieldProblemType, Value: "reporting"},

		// Solution type
		{Keywords: []string{"automation", "automate"}, Field: models.FieldSolutionType, Value: "automation"},
		{Keywords: []string{"integration", "connect our systems", "api"}, Field: models.FieldSolutionType, Value: "integration"},
		{Keywords: []string{"platform", "all-in-one"}, Field: models.FieldSolutionType, Value: "platform"},
		{Keywords: []string{"consulting", "advisory", "services"}, Field: models.FieldSolutionType, Value: "consulting"},

		// Team size
		{Keywords: []string{"just me", "solo", "one person"}, Field: models.FieldTeamSize, Value: "1"},
		{Keywords: []string{"small team", "fewer than 10", "under 10"}, Field: models.FieldTeamSize, Value: "2-10"},
		{Keywords: []string{"dozens", "about 50", "under 100"}, Field: models.FieldTeamSize, Value: "11-100"},
		{Keywords: []string{"hundreds", "enterprise", "large organization"}, Field: models.FieldTeamSize, Value: "100+"},

		// Timeline
		{Keywords: []string{"asap", "immediately", "right away", "urgent"}, Field: models.FieldTimeline, Value: "immediate"},
		{Keywords: []string{"this quarter", "next month", "within 3 months"}, Field: models.FieldTimeline, Value: "this_quarter"},
		{Keywords: []string{"this year", "next quarter", "6 months"}, Field: models.FieldTimeline, Value: "this_year"},
		{Keywords: []string{"exploring", "no rush", "someday", "researching"}, Field: models.FieldTimeline, Value: "exploring"},

		// Urgency reason
		{Keywords: []string{"losing customers", "churn", "losing deals"}, Field: models.FieldUrgencyReason, Value: "losing_customers"},
		{Keywords: []string{"compliance", "audit", "regulation", "deadline"}, Field: models.FieldUrgencyReason, Value: "compliance_deadline"},
		{Keywords: []string{"growing fast", "scaling", "can't keep up"}, Field: models.FieldUrgencyReason, Value: "growth_pressure"},
		{Keywords: []string{"costs", "too expensive", "over budget", "wasting money"}, Field: models.FieldUrgencyReason, Value: "cost_pressure"},

		// Budget status
		{Keywords: []string{"budget approved", "budget allocated", "funds ready"}, Field: models.FieldBudgetStatus, Value: "approved"},
		{Keywords: []string{"budget pending", "waiting on approval", "requesting budget"}, Field: models.FieldBudgetStatus, Value: "pending"},
		{Keywords: []string{"no budget", "can't afford", "tight budget"}, Field: models.FieldBudgetStatus, Value: "none"},

		// Authority
		{Keywords: []string{"i decide", "my decision", "i sign off", "final say"}, Field: models.FieldAuthority, Value: "decision_maker"},
		{Keywords: []string{"recommend", "influence", "my boss decides", "need approval"}, Field: models.FieldAuthority, Value: "influencer"},
	}
}

// RuleExtractor extracts fields by case-insensitive keyword matching against
// an immutable rule table. It is a pure function of the utterance.
type RuleExtractor struct {
	rules RuleSet
}

// NewRuleExtractor creates an extractor with the given rule set, or the
// default rules when none is provided.
func NewRuleExtractor(rules RuleSet) *RuleExtractor {
	if rules == nil {
		rules = DefaultRules()
	}
	return &RuleExtractor{rules: rules}
}

// Extract matches the utterance against every rule in order. Later rules
// override earlier ones for the same field.
func (e *RuleExtractor) Extract(utterance string) models.ExtractedData {
	lower := strings.ToLower(utterance)
	out := make(models.ExtractedData)
	for _, rule := range e.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				out[rule.Field] = rule.Value
				break
			}
		}
	}
	slog.Debug("RuleExtractor.Extract: extraction complete", "matched", len(out))
	return out
}
