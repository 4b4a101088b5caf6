package flow

import (
	"github.com/carsonraft/yenta/internal/models"
)

// Quality thresholds over completeness percentage.
const (
	// HighQualityThreshold is the minimum completeness for a High grade.
	HighQualityThreshold = 80
	// MediumQualityThreshold is the minimum completeness for a Medium grade.
	MediumQualityThreshold = 60
)

// DataQualityAnalyzer grades extracted data completeness against the full
// field vocabulary and a critical-field list. Pure, no side effects.
type DataQualityAnalyzer struct {
	criticalFields []models.FieldName
}

// NewDataQualityAnalyzer creates an analyzer. A nil critical list defaults to
// the fields a vendor match cannot proceed without.
func NewDataQualityAnalyzer(criticalFields []models.FieldName) *DataQualityAnalyzer {
	if criticalFields == nil {
		criticalFields = []models.FieldName{
			models.FieldProblemType,
			models.FieldIndustry,
			models.FieldTimeline,
			models.FieldBudgetStatus,
		}
	}
	return &DataQualityAnalyzer{criticalFields: criticalFields}
}

// Analyze computes completeness and quality for an extracted data map.
func (a *DataQualityAnalyzer) Analyze(data models.ExtractedData) models.DataQuality {
	all := models.AllFields()
	filled := 0
	for _, f := range all {
		if data[f] != "" {
			filled++
		}
	}

	completeness := 0
	if len(all) > 0 {
		completeness = filled * 100 / len(all)
	}

	quality := models.QualityLow
	switch {
	case completeness >= HighQualityThreshold:
		quality = models.QualityHigh
	case completeness >= MediumQualityThreshold:
		quality = models.QualityMedium
	}

	var missingCritical []models.FieldName
	for _, f := range a.criticalFields {
		if data[f] == "" {
			missingCritical = append(missingCritical, f)
		}
	}

	return models.DataQuality{
		Completeness:    completeness,
		Quality:         quality,
		FilledFields:    filled,
		TotalFields:     len(all),
		MissingCritical: missingCritical,
	}
}
