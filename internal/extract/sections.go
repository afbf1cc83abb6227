package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Section keys, in report order.
const (
	ChiefComplaint     = "Chief Complaint"
	PresentIllness     = "History of Present Illness"
	PastMedicalHistory = "Past Medical History"
	Assessment         = "Assessment"
	Plan               = "Plan"
)

// SectionSplitter cuts narrative text into clinical sections.
type SectionSplitter interface {
	Split(text string) ClinicalSections
}

type sectionDef struct {
	key      string
	headings []string
}

var clinicalSections = []sectionDef{
	{ChiefComplaint, []string{"Chief Complaint"}},
	{PresentIllness, []string{"History of Present Illness"}},
	{PastMedicalHistory, []string{"Past Medical History"}},
	{Assessment, []string{"Assessment and Differential Diagnosis", "Assessment"}},
	{Plan, []string{"Plan"}},
}

// sectionEnd is a capitalized heading line ("Plan: ...") or a blank line.
var sectionEnd = regexp.MustCompile(`\n[A-Z][^\n]+?:|\n\n`)

// RegexSplitter finds each heading case-insensitively and keeps the text up to
// the next heading line, blank line or end of text.
type RegexSplitter struct {
	patterns map[string][]*regexp.Regexp
}

// NewRegexSplitter compiles the heading patterns.
func NewRegexSplitter() *RegexSplitter {
	s := &RegexSplitter{patterns: make(map[string][]*regexp.Regexp)}
	for _, sec := range clinicalSections {
		for _, h := range sec.headings {
			s.patterns[sec.key] = append(s.patterns[sec.key], regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(h)))
		}
	}
	return s
}

func (s *RegexSplitter) Split(text string) ClinicalSections {
	out := make(ClinicalSections, len(clinicalSections))
	for _, sec := range clinicalSections {
		out[sec.key] = ""
		for _, re := range s.patterns[sec.key] {
			if section, ok := cutSection(text, re); ok {
				out[sec.key] = section
				break
			}
		}
	}
	return out
}

func cutSection(text string, heading *regexp.Regexp) (string, bool) {
	loc := heading.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	end := len(text)
	if m := sectionEnd.FindStringIndex(text[loc[1]:]); m != nil {
		end = loc[1] + m[0]
	}
	return strings.TrimSpace(text[loc[0]:end]), true
}

// ClinicalSectionsFromText concatenates page text in order and splits it.
func ClinicalSectionsFromText(doc Document, splitter SectionSplitter) (ClinicalSections, error) {
	var sb strings.Builder
	for p := 1; p <= doc.NumPages(); p++ {
		text, err := doc.PageText(p)
		if err != nil {
			return nil, fmt.Errorf("page %d text: %w", p, err)
		}
		sb.WriteString(text)
	}
	return splitter.Split(sb.String()), nil
}
