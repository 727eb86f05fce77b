package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Schemas for the two payload shapes the model is asked to produce.
// Parse success alone is not enough to trust model output: a response
// that parses but carries an out-of-range score or a missing product id
// must be rejected so the caller can fall back to its heuristic.

const userAnalysisSchema = `{
	"type": "object",
	"required": ["intent", "category_strength", "brand_loyalty", "price_sensitivity"],
	"properties": {
		"intent": {"type": "string", "minLength": 1},
		"category_strength": {"type": "number", "minimum": 0, "maximum": 10},
		"brand_loyalty": {"type": "number", "minimum": 0, "maximum": 10},
		"price_sensitivity": {"type": "number", "minimum": 0, "maximum": 10},
		"top_features": {"type": "array", "items": {"type": "string"}},
		"behavior_patterns": {"type": "array", "items": {"type": "string"}}
	}
}`

const recommendationListSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["product_id", "score"],
		"properties": {
			"product_id": {"type": "string", "minLength": 1},
			"score": {"type": "number", "minimum": 0, "maximum": 100},
			"reason": {"type": "string"},
			"category": {"type": "string"}
		}
	}
}`

// SchemaValidator checks extracted model JSON against the expected
// shapes before any field is trusted downstream.
type SchemaValidator struct {
	userAnalysis       *gojsonschema.Schema
	recommendationList *gojsonschema.Schema
}

func NewSchemaValidator() (*SchemaValidator, error) {
	analysis, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(userAnalysisSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile user analysis schema: %w", err)
	}

	recList, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(recommendationListSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile recommendation list schema: %w", err)
	}

	return &SchemaValidator{
		userAnalysis:       analysis,
		recommendationList: recList,
	}, nil
}

// ValidateUserAnalysis checks a behavior-analysis object payload.
func (sv *SchemaValidator) ValidateUserAnalysis(document string) error {
	return sv.validate(sv.userAnalysis, document)
}

// ValidateRecommendationList checks a recommendation array payload.
func (sv *SchemaValidator) ValidateRecommendationList(document string) error {
	return sv.validate(sv.recommendationList, document)
}

func (sv *SchemaValidator) validate(schema *gojsonschema.Schema, document string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(document))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("document failed schema validation: %s", errs[0].String())
		}
		return fmt.Errorf("document failed schema validation")
	}

	return nil
}
