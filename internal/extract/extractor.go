package extract

import (
	"io"
)

// Strategy names the extraction that produced a Result.
type Strategy string

const (
	StrategyTabular   Strategy = "tabular"
	StrategyNarrative Strategy = "narrative"
)

// Result holds the output of whichever strategy succeeded.
type Result struct {
	Strategy Strategy
	Labs     LabResults
	Sections ClinicalSections
}

// Data returns the mapping that was extracted.
func (r *Result) Data() map[string]string {
	if r.Strategy == StrategyTabular {
		return r.Labs
	}
	return r.Sections
}

// OpenFunc opens a document for extraction.
type OpenFunc func(path string) (Document, io.Closer, error)

// Extractor tries the tabular strategy first and falls back to narrative.
type Extractor struct {
	open     OpenFunc
	splitter SectionSplitter
}

// NewExtractor builds an extractor over PDF files using the regex splitter.
func NewExtractor() *Extractor {
	return &Extractor{open: openPDF, splitter: NewRegexSplitter()}
}

// NewExtractorWith allows a custom opener and splitter.
func NewExtractorWith(open OpenFunc, splitter SectionSplitter) *Extractor {
	return &Extractor{open: open, splitter: splitter}
}

func openPDF(path string) (Document, io.Closer, error) {
	doc, err := OpenPDF(path)
	if err != nil {
		return nil, nil, err
	}
	return doc, doc, nil
}

// Extract opens path and returns lab results, or clinical sections when no
// lab rows were found.
func (e *Extractor) Extract(path string) (*Result, error) {
	doc, closer, err := e.open(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	labs, err := LabResultsFromTables(doc)
	if err != nil {
		return nil, err
	}
	if len(labs) > 0 {
		return &Result{Strategy: StrategyTabular, Labs: labs}, nil
	}

	sections, err := ClinicalSectionsFromText(doc, e.splitter)
	if err != nil {
		return nil, err
	}
	return &Result{Strategy: StrategyNarrative, Sections: sections}, nil
}
