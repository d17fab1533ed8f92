package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/policy-qa-backend/models"
	"github.com/policy-qa-backend/services"
)

type ChatHandlers struct {
	policyService services.PolicyService
	vectorStore   services.VectorStore
	policyCache   services.PolicyContextCache
	chatCache     services.ChatCache
	qaService     services.QAService
}

func NewChatHandlers(
	policyService services.PolicyService,
	vectorStore services.VectorStore,
	policyCache services.PolicyContextCache,
	chatCache services.ChatCache,
	qaService services.QAService,
) *ChatHandlers {
	return &ChatHandlers{
		policyService: policyService,
		vectorStore:   vectorStore,
		policyCache:   policyCache,
		chatCache:     chatCache,
		qaService:     qaService,
	}
}

// InitPolicy loads a policy's full document set into the session context so
// later chat turns answer from cache without touching the vector store.
func (h *ChatHandlers) InitPolicy(c *gin.Context) {
	var req models.InitPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	ctx := c.Request.Context()

	policy, err := h.policyService.GetByID(ctx, req.PolicyID)
	if err != nil {
		if errors.Is(err, models.ErrPolicyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Policy not found", "policy_id": req.PolicyID})
			return
		}
		log.Printf("error: policy lookup failed policy=%d: %v", req.PolicyID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load policy", "details": err.Error()})
		return
	}

	docs, err := h.vectorStore.Scroll(ctx, models.SearchFilter{PolicyID: req.PolicyID}, 0)
	if err != nil {
		log.Printf("error: document scroll failed policy=%d: %v", req.PolicyID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load policy documents", "details": err.Error()})
		return
	}

	pc := models.PolicyContext{
		PolicyID: policy.ID,
		PolicyInfo: models.PolicyInfo{
			PolicyID:           policy.ID,
			ProgramName:        policy.ProgramName,
			ProgramOverview:    policy.ProgramOverview,
			ApplyTarget:        policy.ApplyTarget,
			SupportDescription: policy.SupportDescription,
		},
		Documents: docs,
	}
	if err := h.policyCache.Set(ctx, req.SessionID, pc); err != nil {
		log.Printf("error: policy context cache failed session=%s: %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cache policy context", "details": err.Error()})
		return
	}

	log.Printf("policy initialized session=%s policy=%d docs=%d", req.SessionID, policy.ID, len(docs))
	c.JSON(http.StatusOK, models.InitPolicyResponse{
		SessionID:      req.SessionID,
		PolicyID:       policy.ID,
		Status:         "initialized",
		Message:        fmt.Sprintf("'%s' 정책 문서 %d건을 불러왔습니다. 질문해 주세요.", policy.ProgramName, len(docs)),
		DocumentsCount: len(docs),
	})
}

// Chat answers one user message within an initialized session.
func (h *ChatHandlers) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.qaService.Answer(c.Request.Context(), req.SessionID, req.PolicyID, req.Message)
	if err != nil {
		if errors.Is(err, models.ErrPolicyNotInitialized) {
			c.JSON(http.StatusPreconditionFailed, gin.H{
				"error": "Policy context not initialized. Call /api/v1/chat/init-policy first.",
				"code":  "policy_not_initialized",
			})
			return
		}
		log.Printf("error: chat failed session=%s: %v", req.SessionID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to answer", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Cleanup drops the session's conversation history and policy context.
// Unknown sessions clean up to the same end state, so this is idempotent.
func (h *ChatHandlers) Cleanup(c *gin.Context) {
	var req models.CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.chatCache.Clear(ctx, req.SessionID); err != nil {
		log.Printf("error: chat history cleanup failed session=%s: %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clean up session", "details": err.Error()})
		return
	}
	if err := h.policyCache.Clear(ctx, req.SessionID); err != nil {
		log.Printf("error: policy context cleanup failed session=%s: %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clean up session", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.CleanupResponse{
		SessionID: req.SessionID,
		Status:    "cleaned",
		Message:   "세션 데이터가 정리되었습니다.",
	})
}
