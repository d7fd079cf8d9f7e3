package research

import (
	"fmt"
	"strings"
)

// Citation points an answer statement at its source. Both fields must be
// present for the citation to render; a partial citation contributes
// nothing visible.
type Citation struct {
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// Renderable reports whether the citation carries both a URL and a title.
func (c Citation) Renderable() bool {
	return c.URL != "" && c.Title != ""
}

// Empty reports whether the citation carries neither field.
func (c Citation) Empty() bool {
	return c.URL == "" && c.Title == ""
}

// AnswerStatement is one sentence-level unit of an answer. Reasoning is
// provenance metadata and is never rendered to the end user; Text is the
// literal markdown fragment.
type AnswerStatement struct {
	Reasoning string    `json:"reasoning"`
	Text      string    `json:"text"`
	Citation  *Citation `json:"citation,omitempty"`
}

// AnswerWithCitations is an ordered sequence of statements. Order is
// rendering order and is preserved through every transformation.
type AnswerWithCitations struct {
	Statements []AnswerStatement `json:"statements"`
}

// FinalReport has the same shape as AnswerWithCitations; it differs only
// in provenance (synthesized from an AnswersCollection rather than from a
// single research task).
type FinalReport = AnswerWithCitations

// AnswersCollection holds one answer per completed research task, in
// dispatch order regardless of completion order.
type AnswersCollection struct {
	Answers []AnswerWithCitations `json:"answers"`
}

// Render produces the markdown form of the answer. An uncited statement
// renders as its literal text; a cited statement appends " [title](url)"
// only when both fields are present. Statements are joined by newline in
// order. Rendering the same answer twice yields identical output.
func (a AnswerWithCitations) Render() string {
	lines := make([]string, 0, len(a.Statements))
	for _, st := range a.Statements {
		text := st.Text
		if st.Citation != nil && st.Citation.Renderable() {
			text += fmt.Sprintf(" [%s](%s)", st.Citation.Title, st.Citation.URL)
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

// Citations returns the renderable citations attached to the answer, in
// statement order, duplicates included.
func (a AnswerWithCitations) Citations() []Citation {
	var out []Citation
	for _, st := range a.Statements {
		if st.Citation != nil && !st.Citation.Empty() {
			out = append(out, *st.Citation)
		}
	}
	return out
}

// Aggregate concatenates per-task answers preserving task dispatch order
// and each statement's internal order. It does not deduplicate or reorder
// citations; faithfulness to source order takes priority over compactness.
func Aggregate(c AnswersCollection) AnswerWithCitations {
	var merged AnswerWithCitations
	for _, ans := range c.Answers {
		merged.Statements = append(merged.Statements, ans.Statements...)
	}
	return merged
}

// CitationSet collects the distinct (url, title) pairs present in an
// answer's cited statements.
func CitationSet(a AnswerWithCitations) map[Citation]struct{} {
	set := make(map[Citation]struct{})
	for _, c := range a.Citations() {
		set[c] = struct{}{}
	}
	return set
}

// IntegrityError reports a synthesis output whose citations diverge from
// its input: either a citation was fabricated (absent from the input) or
// an input citation was dropped without an equivalent restatement.
type IntegrityError struct {
	Fabricated []Citation
	Dropped    []Citation
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("citation integrity violated: %d fabricated, %d dropped",
		len(e.Fabricated), len(e.Dropped))
}

// VerifyCitationIntegrity checks that every citation in the synthesized
// output appears in the input, and that no input citation is dropped.
// Citation correctness is a non-negotiable contract; a violation is fatal
// to the synthesis attempt.
func VerifyCitationIntegrity(input AnswersCollection, output AnswerWithCitations) error {
	inputSet := make(map[Citation]struct{})
	for _, ans := range input.Answers {
		for c := range CitationSet(ans) {
			inputSet[c] = struct{}{}
		}
	}
	outputSet := CitationSet(output)

	var violation IntegrityError
	for c := range outputSet {
		if _, ok := inputSet[c]; !ok {
			violation.Fabricated = append(violation.Fabricated, c)
		}
	}
	for c := range inputSet {
		if _, ok := outputSet[c]; !ok {
			violation.Dropped = append(violation.Dropped, c)
		}
	}
	if len(violation.Fabricated) > 0 || len(violation.Dropped) > 0 {
		return &violation
	}
	return nil
}
