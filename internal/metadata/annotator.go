// Package metadata derives search metadata for knowledge documents: medical
// specialty, keywords and a credibility score.
package metadata

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	maxKeywords     = 10
	baseCredibility = 0.5
)

// Annotation is the metadata attached to every chunk of a document.
type Annotation struct {
	Specialty   string   // Empty when no specialty matched
	Keywords    []string // At most 10, in vocabulary order
	Credibility float64  // In [0, 1]
}

type specialty struct {
	name  string
	terms []string
}

// Checked in order; the first specialty with a matching term wins.
var specialties = []specialty{
	{"cardiology", []string{"heart", "cardiac", "cardiovascular", "coronary", "arrhythmia", "ecg", "ekg"}},
	{"dermatology", []string{"skin", "dermatitis", "eczema", "psoriasis", "melanoma", "rash"}},
	{"endocrinology", []string{"diabetes", "thyroid", "hormone", "insulin", "glucose", "endocrine"}},
	{"gastroenterology", []string{"stomach", "intestine", "digestive", "gastric", "colon", "bowel"}},
	{"neurology", []string{"brain", "neurological", "seizure", "stroke", "alzheimer", "parkinson"}},
	{"oncology", []string{"cancer", "tumor", "malignant", "chemotherapy", "radiation", "oncology"}},
	{"pediatrics", []string{"child", "children", "pediatric", "infant", "baby", "adolescent"}},
	{"psychiatry", []string{"mental", "depression", "anxiety", "psychiatric", "psychology", "therapy"}},
	{"pulmonology", []string{"lung", "respiratory", "breathing", "asthma", "copd", "pneumonia"}},
	{"orthopedics", []string{"bone", "joint", "fracture", "orthopedic", "musculoskeletal", "spine"}},
}

var medicalTerms = []string{
	"diagnosis", "treatment", "symptoms", "patient", "disease", "condition",
	"medication", "therapy", "clinical", "medical", "health", "syndrome",
	"disorder", "infection", "chronic", "acute", "prevention", "screening",
}

var academicIndicators = []string{
	"study", "research", "clinical trial", "peer-reviewed",
	"journal", "university", "hospital", "doi:", "pmid:",
}

var credentials = []string{"dr.", "md", "phd", "prof"}

// Annotate computes the annotation for a document. Authors are optional.
func Annotate(title, content string, authors []string) Annotation {
	return Annotation{
		Specialty:   DetectSpecialty(title, content),
		Keywords:    ExtractKeywords(content),
		Credibility: AssessCredibility(title, content, authors),
	}
}

// DetectSpecialty returns the first specialty whose vocabulary appears in the
// title or content, or "" when none does.
func DetectSpecialty(title, content string) string {
	text := strings.ToLower(content + " " + title)
	for _, s := range specialties {
		for _, term := range s.terms {
			if strings.Contains(text, term) {
				return s.name
			}
		}
	}
	return ""
}

// ExtractKeywords returns the medical vocabulary terms found in content.
func ExtractKeywords(content string) []string {
	lower := strings.ToLower(content)
	var found []string
	for _, term := range medicalTerms {
		if strings.Contains(lower, term) {
			found = append(found, term)
			if len(found) == maxKeywords {
				break
			}
		}
	}
	return found
}

// AssessCredibility scores a document from 0.5 upwards: +0.1 per academic
// indicator, +0.1 for a credentialed author, and up to +0.1 for length.
func AssessCredibility(title, content string, authors []string) float64 {
	score := baseCredibility

	text := strings.ToLower(content + " " + title)
	for _, indicator := range academicIndicators {
		if strings.Contains(text, indicator) {
			score += 0.1
		}
	}

authors:
	for _, author := range authors {
		lower := strings.ToLower(author)
		for _, c := range credentials {
			if strings.Contains(lower, c) {
				score += 0.1
				break authors
			}
		}
	}

	switch n := utf8.RuneCountInString(content); {
	case n > 5000:
		score += 0.1
	case n > 2000:
		score += 0.05
	}

	return math.Min(math.Round(score*100)/100, 1.0)
}
