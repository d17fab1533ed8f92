package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-qa-backend/models"
)

type fakePolicyCache struct {
	contexts map[string]models.PolicyContext
	err      error
}

func (f *fakePolicyCache) Set(_ context.Context, sessionID string, pc models.PolicyContext) error {
	f.contexts[sessionID] = pc
	return nil
}

func (f *fakePolicyCache) Get(_ context.Context, sessionID string) (models.PolicyContext, bool, error) {
	if f.err != nil {
		return models.PolicyContext{}, false, f.err
	}
	pc, ok := f.contexts[sessionID]
	return pc, ok, nil
}

func (f *fakePolicyCache) Clear(_ context.Context, sessionID string) error {
	delete(f.contexts, sessionID)
	return nil
}

type fakeWebSearch struct {
	sources []models.WebSource
	err     error
	queries []string
}

func (f *fakeWebSearch) Search(_ context.Context, query string, _ int) ([]models.WebSource, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.sources, nil
}

type fakeLLM struct {
	answer  string
	err     error
	prompts []string
	systems []string
}

func (f *fakeLLM) Complete(_ context.Context, system, prompt string) (string, error) {
	f.systems = append(f.systems, system)
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeChatCache struct {
	messages map[string][]models.ChatMessage
}

func (f *fakeChatCache) Append(_ context.Context, sessionID string, msg models.ChatMessage) error {
	f.messages[sessionID] = append(f.messages[sessionID], msg)
	return nil
}

func (f *fakeChatCache) History(_ context.Context, sessionID string) ([]models.ChatMessage, error) {
	out := make([]models.ChatMessage, len(f.messages[sessionID]))
	copy(out, f.messages[sessionID])
	return out, nil
}

func (f *fakeChatCache) Clear(_ context.Context, sessionID string) error {
	delete(f.messages, sessionID)
	return nil
}

func contextWithDocs(n int) models.PolicyContext {
	pc := models.PolicyContext{
		PolicyID: 7,
		PolicyInfo: models.PolicyInfo{
			PolicyID:           7,
			ProgramName:        "청년 창업 지원 사업",
			ProgramOverview:    "예비 창업자 대상 자금 지원",
			ApplyTarget:        "만 39세 이하",
			SupportDescription: "최대 1억원",
		},
		CachedAt: time.Now(),
	}
	for i := 0; i < n; i++ {
		pc.Documents = append(pc.Documents, models.DocumentChunk{
			ChunkID:    fmt.Sprintf("7-%d", i),
			PolicyID:   7,
			ChunkIndex: i,
			DocType:    "support",
			Content:    fmt.Sprintf("지원 내용 %d", i),
		})
	}
	return pc
}

func newTestWorkflow(cache *fakePolicyCache, web *fakeWebSearch, llm *fakeLLM) *Workflow {
	return New(cache, web, llm, 5)
}

func TestClassifyWebOnlyLexicon(t *testing.T) {
	w := newTestWorkflow(&fakePolicyCache{contexts: map[string]models.PolicyContext{}}, &fakeWebSearch{}, &fakeLLM{})

	webOnly := []string{
		"신청 링크 알려줘",
		"홈페이지 주소가 뭐야",
		"신청서 다운로드는 어디서 해?",
		"공고문 보여줘",
		"URL 좀",
	}
	for _, q := range webOnly {
		state := w.classifyQueryType(context.Background(), QAState{CurrentQuery: q})
		assert.Equal(t, QueryWebOnly, state.QueryType, "query: %s", q)
	}

	policyQA := []string{
		"지원 금액은 얼마인가요?",
		"신청 대상이 누구인가요?",
		"조건이 어떻게 되나요?",
	}
	for _, q := range policyQA {
		state := w.classifyQueryType(context.Background(), QAState{CurrentQuery: q})
		assert.Equal(t, QueryPolicyQA, state.QueryType, "query: %s", q)
	}
}

func TestClassifyIsPure(t *testing.T) {
	w := newTestWorkflow(&fakePolicyCache{contexts: map[string]models.PolicyContext{}}, &fakeWebSearch{}, &fakeLLM{})
	in := QAState{CurrentQuery: "지원 금액은?"}
	first := w.classifyQueryType(context.Background(), in)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first.QueryType, w.classifyQueryType(context.Background(), in).QueryType)
	}
}

func TestRunRequiresInitializedPolicy(t *testing.T) {
	cache := &fakePolicyCache{contexts: map[string]models.PolicyContext{}}
	w := newTestWorkflow(cache, &fakeWebSearch{}, &fakeLLM{answer: "ok"})

	state := w.Run(context.Background(), QAState{SessionID: "s1", CurrentQuery: "지원 대상은?"})
	require.Error(t, state.Err)
	assert.ErrorIs(t, state.Err, models.ErrPolicyNotInitialized)
	assert.Empty(t, state.Answer)
}

func TestRunDocsOnlyPath(t *testing.T) {
	cache := &fakePolicyCache{contexts: map[string]models.PolicyContext{"s1": contextWithDocs(8)}}
	web := &fakeWebSearch{}
	llm := &fakeLLM{answer: "지원 금액은 최대 1억원입니다 [정책문서 1]."}
	w := newTestWorkflow(cache, web, llm)

	state := w.Run(context.Background(), QAState{SessionID: "s1", CurrentQuery: "지원 금액은?"})
	require.NoError(t, state.Err)
	assert.Equal(t, llm.answer, state.Answer)

	// Docs were sufficient: no web call.
	assert.Empty(t, web.queries)
	assert.Empty(t, state.WebSources)

	// Evidence is internal-only, capped at 5, in document order.
	require.Len(t, state.Evidence, 5)
	for i, ev := range state.Evidence {
		assert.Equal(t, models.EvidenceInternal, ev.Type)
		assert.Equal(t, 7, ev.PolicyID)
		assert.Equal(t, fmt.Sprintf("7-%d", i), ev.DocID)
		assert.Equal(t, "/policy/7", ev.URL)
		assert.Equal(t, models.LinkTypePolicyDetail, ev.LinkType)
	}

	// Prompt embeds citation indices and documents.
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "[정책문서 1]")
	assert.Contains(t, llm.prompts[0], "지원 내용 0")
	assert.Contains(t, llm.systems[0], "정책 문서를 기반으로")
}

func TestRunWebOnlyPath(t *testing.T) {
	cache := &fakePolicyCache{contexts: map[string]models.PolicyContext{"s1": contextWithDocs(8)}}
	web := &fakeWebSearch{sources: []models.WebSource{
		{Title: "K-Startup", Snippet: "신청 안내", URL: "https://k-startup.go.kr", FetchedDate: "2026-08-25", SourceType: "web"},
	}}
	llm := &fakeLLM{answer: "신청은 K-Startup에서 가능합니다 [웹 1]."}
	w := newTestWorkflow(cache, web, llm)

	state := w.Run(context.Background(), QAState{SessionID: "s1", CurrentQuery: "신청 링크 알려줘"})
	require.NoError(t, state.Err)
	assert.Equal(t, QueryWebOnly, state.QueryType)

	// Cached docs are never loaded on the web-only path.
	assert.Empty(t, state.RetrievedDocs)

	require.Len(t, state.Evidence, 1)
	assert.Equal(t, models.EvidenceWeb, state.Evidence[0].Type)
	assert.Equal(t, "K-Startup", state.Evidence[0].Source)
	assert.Equal(t, models.LinkTypeExternal, state.Evidence[0].LinkType)
}

func TestRunHybridPathOnThinDocs(t *testing.T) {
	cache := &fakePolicyCache{contexts: map[string]models.PolicyContext{"s1": contextWithDocs(2)}}
	web := &fakeWebSearch{sources: []models.WebSource{
		{Title: "보충 자료", Snippet: "추가 정보", URL: "https://example.go.kr"},
	}}
	llm := &fakeLLM{answer: "답변 [정책문서 1] [웹 1]"}
	w := newTestWorkflow(cache, web, llm)

	state := w.Run(context.Background(), QAState{SessionID: "s1", CurrentQuery: "지원 조건 상세히"})
	require.NoError(t, state.Err)

	// Web query is prefixed with the policy name.
	require.Len(t, web.queries, 1)
	assert.True(t, strings.HasPrefix(web.queries[0], "청년 창업 지원 사업 "))

	// Internal evidence precedes web evidence.
	require.Len(t, state.Evidence, 3)
	assert.Equal(t, models.EvidenceInternal, state.Evidence[0].Type)
	assert.Equal(t, models.EvidenceInternal, state.Evidence[1].Type)
	assert.Equal(t, models.EvidenceWeb, state.Evidence[2].Type)
}

func TestRunHomepageQueryForcesWebSupplement(t *testing.T) {
	cache := &fakePolicyCache{contexts: map[string]models.PolicyContext{"s1": contextWithDocs(8)}}
	web := &fakeWebSearch{sources: []models.WebSource{{Title: "기관", URL: "https://example.go.kr"}}}
	llm := &fakeLLM{answer: "answer"}
	w := newTestWorkflow(cache, web, llm)

	// "주소" slips past the classifier lexicon but the sufficiency check
	// catches it.
	state := w.Run(context.Background(), QAState{SessionID: "s1", CurrentQuery: "담당 기관 주소 알려줘"})
	require.NoError(t, state.Err)
	assert.Equal(t, QueryPolicyQA, state.QueryType)
	assert.True(t, state.NeedWebSearch)
	require.Len(t, web.queries, 1)
}

func TestRunWebSearchFailureDegrades(t *testing.T) {
	cache := &fakePolicyCache{contexts: map[string]models.PolicyContext{"s1": contextWithDocs(1)}}
	web := &fakeWebSearch{err: errors.New("tavily down")}
	llm := &fakeLLM{answer: "문서 기반 답변"}
	w := newTestWorkflow(cache, web, llm)

	state := w.Run(context.Background(), QAState{SessionID: "s1", CurrentQuery: "지원 조건은?"})
	require.NoError(t, state.Err)
	assert.Equal(t, "문서 기반 답변", state.Answer)
	assert.Empty(t, state.WebSources)
}

func TestRunLLMFailureYieldsApology(t *testing.T) {
	cache := &fakePolicyCache{contexts: map[string]models.PolicyContext{"s1": contextWithDocs(8)}}
	llm := &fakeLLM{err: fmt.Errorf("%w: timeout", models.ErrLLM)}
	w := newTestWorkflow(cache, &fakeWebSearch{}, llm)

	state := w.Run(context.Background(), QAState{SessionID: "s1", CurrentQuery: "지원 금액은?"})
	require.NoError(t, state.Err)
	assert.Contains(t, state.Answer, "죄송합니다. 답변 생성 중 오류가 발생했습니다")
	assert.Empty(t, state.Evidence)
}

func TestServiceRecordsConversation(t *testing.T) {
	cache := &fakePolicyCache{contexts: map[string]models.PolicyContext{"s1": contextWithDocs(8)}}
	chat := &fakeChatCache{messages: map[string][]models.ChatMessage{}}
	llm := &fakeLLM{answer: "답변입니다 [정책문서 1]."}
	svc := NewService(newTestWorkflow(cache, &fakeWebSearch{}, llm), chat)

	resp, err := svc.Answer(context.Background(), "s1", 7, "지원 금액은?")
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, 7, resp.PolicyID)
	assert.Equal(t, llm.answer, resp.Answer)

	history := chat.messages["s1"]
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "지원 금액은?", history[0].Content)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	assert.Equal(t, llm.answer, history[1].Content)
	assert.NotEmpty(t, history[1].Evidence)
}

func TestServicePropagatesPrecondition(t *testing.T) {
	cache := &fakePolicyCache{contexts: map[string]models.PolicyContext{}}
	chat := &fakeChatCache{messages: map[string][]models.ChatMessage{}}
	svc := NewService(newTestWorkflow(cache, &fakeWebSearch{}, &fakeLLM{answer: "x"}), chat)

	_, err := svc.Answer(context.Background(), "s1", 7, "질문")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPolicyNotInitialized)

	// The rejected message must not be recorded.
	assert.Empty(t, chat.messages["s1"])
}

func TestServiceHistoryEmptyAfterCleanupThenRejectedChat(t *testing.T) {
	cache := &fakePolicyCache{contexts: map[string]models.PolicyContext{"s5": contextWithDocs(8)}}
	chat := &fakeChatCache{messages: map[string][]models.ChatMessage{}}
	svc := NewService(newTestWorkflow(cache, &fakeWebSearch{}, &fakeLLM{answer: "답변 [정책문서 1]"}), chat)

	_, err := svc.Answer(context.Background(), "s5", 7, "지원 금액은?")
	require.NoError(t, err)
	require.Len(t, chat.messages["s5"], 2)

	// Session cleanup drops both caches; a chat afterwards fails the
	// precondition and leaves no trace in history.
	require.NoError(t, cache.Clear(context.Background(), "s5"))
	require.NoError(t, chat.Clear(context.Background(), "s5"))

	_, err = svc.Answer(context.Background(), "s5", 7, "지원 금액은?")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPolicyNotInitialized)
	assert.Empty(t, chat.messages["s5"])
}

func TestFormatHistoryLimit(t *testing.T) {
	var msgs []models.ChatMessage
	for i := 0; i < 15; i++ {
		msgs = append(msgs, models.ChatMessage{Role: models.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	out := formatHistory(msgs, 10)
	assert.NotContains(t, out, "m4")
	assert.Contains(t, out, "m5")
	assert.Contains(t, out, "m14")
}
