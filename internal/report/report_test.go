package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Skufu/medassist/internal/assistant"
	"github.com/Skufu/medassist/internal/extract"
)

type fakeExtractor struct {
	res *extract.Result
	err error
}

func (f fakeExtractor) Extract(string) (*extract.Result, error) { return f.res, f.err }

type fakeResponder struct {
	prompts []string
	err     error
}

func (f *fakeResponder) Respond(ctx context.Context, s *assistant.Session, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return "analysis", nil
}

func TestBuildPromptLab(t *testing.T) {
	p, err := BuildPrompt(&extract.Result{
		Strategy: extract.StrategyTabular,
		Labs:     extract.LabResults{"Hemoglobin": "13.5"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(p, "flag any abnormal values") || !strings.Contains(p, "{\n  \"Hemoglobin\": \"13.5\"\n}") {
		t.Fatalf("unexpected lab prompt:\n%s", p)
	}
}

func TestBuildPromptClinical(t *testing.T) {
	p, err := BuildPrompt(&extract.Result{
		Strategy: extract.StrategyNarrative,
		Sections: extract.ClinicalSections{"Chief Complaint": "Chief Complaint: cough"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(p, "summarize the patient's condition") || !strings.Contains(p, `"Chief Complaint": "Chief Complaint: cough"`) {
		t.Fatalf("unexpected clinical prompt:\n%s", p)
	}
}

func TestAnalyze(t *testing.T) {
	responder := &fakeResponder{}
	svc := NewService(fakeExtractor{res: &extract.Result{
		Strategy: extract.StrategyTabular,
		Labs:     extract.LabResults{"Glucose": "180"},
	}}, responder, nil)

	a, err := svc.Analyze(context.Background(), &assistant.Session{ID: "default"}, "x.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if a.AIAnalysis != "analysis" || a.ExtractedData["Glucose"] != "180" || a.Strategy != extract.StrategyTabular {
		t.Fatalf("unexpected analysis: %+v", a)
	}
	if len(responder.prompts) != 1 || !strings.Contains(responder.prompts[0], "Glucose") {
		t.Fatalf("unexpected prompts: %v", responder.prompts)
	}
}

func TestAnalyzeExtractionFailureSkipsModel(t *testing.T) {
	responder := &fakeResponder{}
	svc := NewService(fakeExtractor{err: extract.ErrUnreadableDocument}, responder, nil)

	_, err := svc.Analyze(context.Background(), &assistant.Session{ID: "default"}, "x.pdf")
	if !errors.Is(err, extract.ErrUnreadableDocument) {
		t.Fatalf("expected unreadable error, got %v", err)
	}
	if len(responder.prompts) != 0 {
		t.Fatal("model was called after a failed extraction")
	}
}
