package source

import (
	"context"
	"fmt"
	"sort"
)

// SampleSource serves a small built-in medical knowledge set, used to seed an
// empty index for demos and smoke tests.
type SampleSource struct {
	docs map[string]*Document
}

// NewSampleSource creates the built-in source.
func NewSampleSource() *SampleSource {
	docs := make(map[string]*Document, len(sampleDocuments))
	for i := range sampleDocuments {
		d := sampleDocuments[i]
		docs[d.Path] = &d
	}
	return &SampleSource{docs: docs}
}

func (s *SampleSource) Name() string { return "samples" }

func (s *SampleSource) Revision(ctx context.Context) (string, error) {
	return "builtin-1", nil
}

func (s *SampleSource) List(ctx context.Context) ([]string, error) {
	paths := make([]string, 0, len(s.docs))
	for p := range s.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *SampleSource) Fetch(ctx context.Context, path string) (*Document, error) {
	d, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	doc := *d
	return &doc, nil
}

var sampleDocuments = []Document{
	{
		Path:        "sample_hypertension_guide.txt",
		Specialty:   "cardiology",
		Keywords:    []string{"hypertension", "blood pressure", "cardiovascular", "treatment"},
		Credibility: 0.9,
		Title:       "Hypertension Management Guidelines",
		Content: `Hypertension, or high blood pressure, is a common cardiovascular condition affecting millions worldwide.
Normal blood pressure is typically below 120/80 mmHg. Hypertension is diagnosed when blood pressure
consistently measures 140/90 mmHg or higher.

Treatment approaches include:
1. Lifestyle modifications: Regular exercise, healthy diet (DASH diet), sodium restriction, weight management
2. Medications: ACE inhibitors, ARBs, calcium channel blockers, diuretics
3. Regular monitoring and follow-up

Complications of untreated hypertension include stroke, heart attack, kidney disease, and heart failure.
Early detection and proper management are crucial for preventing these serious complications.`,
	},
	{
		Path:        "sample_diabetes_guide.txt",
		Specialty:   "endocrinology",
		Keywords:    []string{"diabetes", "glucose", "insulin", "blood sugar"},
		Credibility: 0.9,
		Title:       "Type 2 Diabetes Management",
		Content: `Type 2 diabetes is a chronic metabolic disorder characterized by insulin resistance and relative insulin deficiency.
It affects how the body processes glucose, leading to elevated blood sugar levels.

Risk factors include:
- Obesity and sedentary lifestyle
- Family history of diabetes
- Age over 45
- Certain ethnicities

Management strategies:
1. Blood glucose monitoring
2. Dietary modifications (carbohydrate counting, portion control)
3. Regular physical activity
4. Medications: Metformin, insulin, other antidiabetic drugs
5. Regular screening for complications

Complications can include diabetic retinopathy, nephropathy, neuropathy, and increased cardiovascular risk.
Good glycemic control (HbA1c < 7%) significantly reduces complication risk.`,
	},
	{
		Path:        "sample_cold_flu_guide.txt",
		Specialty:   "family_medicine",
		Keywords:    []string{"cold", "flu", "respiratory", "symptoms"},
		Credibility: 0.8,
		Title:       "Common Cold vs Flu Symptoms",
		Content: `Both common cold and influenza are respiratory illnesses, but they are caused by different viruses
and have distinct symptom patterns.

Common Cold symptoms:
- Gradual onset
- Runny or stuffy nose
- Sneezing
- Mild body aches
- Low-grade fever (rare)
- Duration: 7-10 days

Influenza (Flu) symptoms:
- Sudden onset
- High fever (100-104°F)
- Severe body aches
- Fatigue and weakness
- Dry cough
- Headache
- Duration: 1-2 weeks

Treatment:
Cold: Rest, fluids, symptom relief
Flu: Antiviral medications (if started early), rest, fluids

Seek medical attention for severe symptoms, high fever, or difficulty breathing.`,
	},
}
