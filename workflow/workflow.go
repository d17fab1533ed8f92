package workflow

import (
	"context"
	"time"

	"github.com/policy-qa-backend/models"
	"github.com/policy-qa-backend/services"
)

type nodeName string

const (
	nodeClassify            nodeName = "classify_query_type"
	nodeLoadCachedDocs      nodeName = "load_cached_docs"
	nodeCheckSufficiency    nodeName = "check_sufficiency"
	nodeWebSearchForLink    nodeName = "web_search_for_link"
	nodeWebSearchSupplement nodeName = "web_search_supplement"
	nodeAnswerWithDocs      nodeName = "generate_answer_with_docs"
	nodeAnswerWebOnly       nodeName = "generate_answer_web_only"
	nodeAnswerHybrid        nodeName = "generate_answer_hybrid"
	nodeEnd                 nodeName = "end"
)

// Workflow answers one question per run:
//
//	classify ─┬─ WEB_ONLY ──→ web_search_for_link ──→ answer_web_only
//	          └─ POLICY_QA ─→ load_cached_docs ──→ check_sufficiency
//	                ├─ sufficient ──→ answer_with_docs
//	                └─ insufficient → web_search_supplement → answer_hybrid
type Workflow struct {
	policyCache  services.PolicyContextCache
	webSearchSvc services.WebSearchService
	llm          services.LLMService

	maxWebResults int
	historyLimit  int

	nodes       map[nodeName]func(context.Context, QAState) QAState
	transitions map[nodeName]func(QAState) nodeName
}

func New(policyCache services.PolicyContextCache, webSearchSvc services.WebSearchService, llm services.LLMService, maxWebResults int) *Workflow {
	w := &Workflow{
		policyCache:   policyCache,
		webSearchSvc:  webSearchSvc,
		llm:           llm,
		maxWebResults: maxWebResults,
		historyLimit:  10,
	}

	w.nodes = map[nodeName]func(context.Context, QAState) QAState{
		nodeClassify:            w.classifyQueryType,
		nodeLoadCachedDocs:      w.loadCachedDocs,
		nodeCheckSufficiency:    w.checkSufficiency,
		nodeWebSearchForLink:    w.webSearch,
		nodeWebSearchSupplement: w.webSearch,
		nodeAnswerWithDocs:      w.answerDocsOnly,
		nodeAnswerWebOnly:       w.answerWebOnly,
		nodeAnswerHybrid:        w.answerHybrid,
	}

	w.transitions = map[nodeName]func(QAState) nodeName{
		nodeClassify: func(s QAState) nodeName {
			if s.QueryType == QueryWebOnly {
				return nodeWebSearchForLink
			}
			return nodeLoadCachedDocs
		},
		nodeLoadCachedDocs: static(nodeCheckSufficiency),
		nodeCheckSufficiency: func(s QAState) nodeName {
			if s.NeedWebSearch {
				return nodeWebSearchSupplement
			}
			return nodeAnswerWithDocs
		},
		nodeWebSearchForLink:    static(nodeAnswerWebOnly),
		nodeWebSearchSupplement: static(nodeAnswerHybrid),
		nodeAnswerWithDocs:      static(nodeEnd),
		nodeAnswerWebOnly:       static(nodeEnd),
		nodeAnswerHybrid:        static(nodeEnd),
	}

	return w
}

func static(next nodeName) func(QAState) nodeName {
	return func(QAState) nodeName { return next }
}

// Run executes the workflow from classification to an answer node. The
// returned state carries either an answer or a hard error (precondition or
// cache transport failure).
func (w *Workflow) Run(ctx context.Context, state QAState) QAState {
	current := nodeClassify
	for current != nodeEnd {
		node := w.nodes[current]
		state = node(ctx, state)
		if state.Err != nil {
			return state
		}
		current = w.transitions[current](state)
	}
	return state
}

// Service implements services.QAService by wrapping the workflow with
// conversation history handling.
type Service struct {
	workflow  *Workflow
	chatCache services.ChatCache
}

func NewService(wf *Workflow, chatCache services.ChatCache) *Service {
	return &Service{workflow: wf, chatCache: chatCache}
}

func (s *Service) Answer(ctx context.Context, sessionID string, policyID int, message string) (*models.ChatResponse, error) {
	history, err := s.chatCache.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state := s.workflow.Run(ctx, QAState{
		SessionID:    sessionID,
		PolicyID:     policyID,
		Messages:     history,
		CurrentQuery: message,
		QueryType:    QueryPolicyQA,
	})
	if state.Err != nil {
		return nil, state.Err
	}

	// Record the turn only once the workflow produced an answer: a failed
	// precondition must not leave a stray user message in history.
	userMsg := models.ChatMessage{Role: models.RoleUser, Content: message, Timestamp: time.Now()}
	if err := s.chatCache.Append(ctx, sessionID, userMsg); err != nil {
		return nil, err
	}

	assistantMsg := models.ChatMessage{
		Role:       models.RoleAssistant,
		Content:    state.Answer,
		Timestamp:  time.Now(),
		Evidence:   state.Evidence,
		WebSources: state.WebSources,
	}
	if err := s.chatCache.Append(ctx, sessionID, assistantMsg); err != nil {
		return nil, err
	}

	return &models.ChatResponse{
		SessionID:  sessionID,
		PolicyID:   state.PolicyID,
		Answer:     state.Answer,
		Evidence:   state.Evidence,
		WebSources: state.WebSources,
	}, nil
}
