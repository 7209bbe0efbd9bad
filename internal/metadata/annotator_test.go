package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectSpecialty(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
		want    string
	}{
		{"content match", "Guide", "Coronary artery disease narrows vessels.", "cardiology"},
		{"title match", "Asthma in Adults", "Overview of the condition.", "pulmonology"},
		{"case insensitive", "", "THYROID function tests", "endocrinology"},
		{"first specialty wins", "", "Heart disease and lung disease", "cardiology"},
		{"no match", "Hydration", "Drink water regularly.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSpecialty(tt.title, tt.content))
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("Chronic disease TREATMENT requires early diagnosis and screening.")
	assert.Equal(t, []string{"diagnosis", "treatment", "disease", "chronic", "screening"}, got)

	assert.Empty(t, ExtractKeywords("Nothing relevant here."))
}

func TestExtractKeywords_CapsAtTen(t *testing.T) {
	got := ExtractKeywords(strings.Join(medicalTerms, " "))
	assert.Len(t, got, maxKeywords)
	assert.Equal(t, medicalTerms[:maxKeywords], got)
}

func TestAssessCredibility(t *testing.T) {
	assert.Equal(t, 0.5, AssessCredibility("Notes", "short", nil))
	assert.Equal(t, 0.7, AssessCredibility("Notes", "A university hospital report.", nil))
	assert.Equal(t, 0.6, AssessCredibility("Notes", "short", []string{"Jane Roe", "Dr. Smith", "Prof. Lee"}))
	assert.Equal(t, 0.55, AssessCredibility("Notes", strings.Repeat("x", 2001), nil))
	assert.Equal(t, 0.6, AssessCredibility("Notes", strings.Repeat("x", 5001), nil))
}

func TestAssessCredibility_CappedAtOne(t *testing.T) {
	content := "study research clinical trial peer-reviewed journal university hospital doi: pmid: " +
		strings.Repeat("x", 6000)
	assert.Equal(t, 1.0, AssessCredibility("Title", content, []string{"Dr. Who"}))
}

func TestAnnotate(t *testing.T) {
	a := Annotate("Type 2 Diabetes", "Insulin resistance is a chronic condition. Treatment includes metformin.", nil)
	assert.Equal(t, "endocrinology", a.Specialty)
	assert.Equal(t, []string{"treatment", "condition", "chronic"}, a.Keywords)
	assert.Equal(t, 0.5, a.Credibility)
}
