package workflow

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/policy-qa-backend/models"
)

// webOnlyLexicon triggers the link-oriented path: questions asking where or
// how to apply rather than what the policy says.
var webOnlyLexicon = []string{
	"링크", "url", "홈페이지", "사이트", "웹사이트",
	"어디서 신청", "신청 방법", "신청하는 방법",
	"신청서 다운로드", "양식 다운로드",
	"접수", "접수처", "공고문",
}

var homepageQuery = regexp.MustCompile(`홈페이지|주소|웹사이트|http`)

// classifyQueryType is a pure lexicon match, no external calls.
func (w *Workflow) classifyQueryType(_ context.Context, state QAState) QAState {
	query := strings.ToLower(state.CurrentQuery)

	state.QueryType = QueryPolicyQA
	for _, keyword := range webOnlyLexicon {
		if strings.Contains(query, keyword) {
			state.QueryType = QueryWebOnly
			break
		}
	}
	state.NeedWebSearch = false

	log.Printf("query classified session=%s type=%s", state.SessionID, state.QueryType)
	return state
}

// loadCachedDocs pulls the session's policy context. A miss is a hard
// precondition failure: the client must call init-policy first.
func (w *Workflow) loadCachedDocs(ctx context.Context, state QAState) QAState {
	pc, ok, err := w.policyCache.Get(ctx, state.SessionID)
	if err != nil {
		state.Err = err
		return state
	}
	if !ok {
		state.Err = fmt.Errorf("%w: session=%s", models.ErrPolicyNotInitialized, state.SessionID)
		return state
	}

	state.RetrievedDocs = pc.Documents
	state.PolicyInfo = pc.PolicyInfo
	if state.PolicyID == 0 {
		state.PolicyID = pc.PolicyID
	}

	log.Printf("documents loaded session=%s policy=%d count=%d", state.SessionID, pc.PolicyID, len(state.RetrievedDocs))
	return state
}

// checkSufficiency decides whether the cached documents alone can ground
// the answer. Pure function over the state.
func (w *Workflow) checkSufficiency(_ context.Context, state QAState) QAState {
	switch {
	case len(state.RetrievedDocs) == 0:
		state.NeedWebSearch = true
	case state.PolicyInfo.ProgramName == "":
		state.NeedWebSearch = true
	case homepageQuery.MatchString(strings.ToLower(state.CurrentQuery)):
		// Homepage-style questions need live links even when the
		// classifier routed them here.
		state.NeedWebSearch = true
	case len(state.RetrievedDocs) < 3:
		state.NeedWebSearch = true
	default:
		state.NeedWebSearch = false
	}

	log.Printf("sufficiency checked session=%s docs=%d need_web=%v", state.SessionID, len(state.RetrievedDocs), state.NeedWebSearch)
	return state
}

// webSearch fetches supplementary sources. Failures degrade to an empty
// list; the answer nodes handle the absence.
func (w *Workflow) webSearch(ctx context.Context, state QAState) QAState {
	query := state.CurrentQuery
	if state.PolicyInfo.ProgramName != "" {
		query = state.PolicyInfo.ProgramName + " " + state.CurrentQuery
	}

	sources, err := w.webSearchSvc.Search(ctx, query, w.maxWebResults)
	if err != nil {
		log.Printf("warn: web search failed session=%s: %v", state.SessionID, err)
		state.WebSources = []models.WebSource{}
		return state
	}
	if len(sources) > w.maxWebResults {
		sources = sources[:w.maxWebResults]
	}
	state.WebSources = sources

	log.Printf("web search completed session=%s results=%d", state.SessionID, len(sources))
	return state
}

func (w *Workflow) answerDocsOnly(ctx context.Context, state QAState) QAState {
	prompt, err := renderPrompt(docsOnlyPrompt, promptData{
		PolicyInfo: state.PolicyInfo,
		Docs:       state.RetrievedDocs,
		History:    formatHistory(state.Messages, w.historyLimit),
		Question:   state.CurrentQuery,
	})
	if err != nil {
		return w.answerFailed(state, err)
	}
	return w.generate(ctx, state, systemDocsOnly, prompt, true, false)
}

func (w *Workflow) answerWebOnly(ctx context.Context, state QAState) QAState {
	prompt, err := renderPrompt(webOnlyPrompt, promptData{
		PolicyInfo: state.PolicyInfo,
		Web:        state.WebSources,
		History:    formatHistory(state.Messages, w.historyLimit),
		Question:   state.CurrentQuery,
	})
	if err != nil {
		return w.answerFailed(state, err)
	}
	return w.generate(ctx, state, systemWebOnly, prompt, false, true)
}

func (w *Workflow) answerHybrid(ctx context.Context, state QAState) QAState {
	prompt, err := renderPrompt(hybridPrompt, promptData{
		PolicyInfo: state.PolicyInfo,
		Docs:       state.RetrievedDocs,
		Web:        state.WebSources,
		History:    formatHistory(state.Messages, w.historyLimit),
		Question:   state.CurrentQuery,
	})
	if err != nil {
		return w.answerFailed(state, err)
	}
	return w.generate(ctx, state, systemHybrid, prompt, true, true)
}

// generate calls the LLM and freezes the evidence list. Evidence ordering
// matches the citation indices rendered into the prompt: documents first in
// prompt order (capped at 5), then web sources.
func (w *Workflow) generate(ctx context.Context, state QAState, system, prompt string, withDocs, withWeb bool) QAState {
	answer, err := w.llm.Complete(ctx, system, prompt)
	if err != nil {
		return w.answerFailed(state, err)
	}
	state.Answer = answer

	state.Evidence = buildEvidence(state, withDocs, withWeb)

	log.Printf("answer generated session=%s len=%d evidence=%d", state.SessionID, len(answer), len(state.Evidence))
	return state
}

func buildEvidence(state QAState, withDocs, withWeb bool) []models.Evidence {
	evidence := []models.Evidence{}
	if withDocs {
		docs := state.RetrievedDocs
		if len(docs) > 5 {
			docs = docs[:5]
		}
		for _, doc := range docs {
			evidence = append(evidence, models.InternalEvidence(doc, 0))
		}
	}
	if withWeb {
		for _, src := range state.WebSources {
			evidence = append(evidence, models.WebEvidence(src))
		}
	}
	return evidence
}

// answerFailed degrades to a localized apology. The workflow still
// completes so the turn is recorded.
func (w *Workflow) answerFailed(state QAState, err error) QAState {
	log.Printf("warn: answer generation failed session=%s: %v", state.SessionID, err)
	state.Answer = fmt.Sprintf("죄송합니다. 답변 생성 중 오류가 발생했습니다: %v", err)
	state.Evidence = []models.Evidence{}
	return state
}
