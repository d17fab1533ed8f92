package impl

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/policy-qa-backend/models"
	"github.com/policy-qa-backend/services"
	"github.com/policy-qa-backend/services/search"
)

// queryStopwords filters tokens during rule-based keyword extraction. A
// smaller set than the index tokenizer's: only bare particles.
var queryStopwords = map[string]struct{}{
	"을": {}, "를": {}, "이": {}, "가": {}, "은": {}, "는": {}, "에": {},
	"의": {}, "로": {}, "와": {}, "과": {}, "도": {}, "만": {}, "뿐": {},
}

// searchService runs the policy discovery workflow: keyword extraction,
// dynamic thresholding, concurrent dense+sparse retrieval with fusion, and
// an optional web fallback when internal results are weak.
type searchService struct {
	vectorStore services.VectorStore
	embedder    services.Embedder
	policies    services.PolicyService
	webSearch   services.WebSearchService
	cfgStore    *search.ConfigStore

	// BM25 index is built lazily from a full scroll of the collection and
	// reused for the process lifetime.
	bm25Mu sync.Mutex
	bm25   *search.BM25Index
}

func NewSearchService(
	vectorStore services.VectorStore,
	embedder services.Embedder,
	policies services.PolicyService,
	webSearch services.WebSearchService,
	cfgStore *search.ConfigStore,
) services.SearchService {
	return &searchService{
		vectorStore: vectorStore,
		embedder:    embedder,
		policies:    policies,
		webSearch:   webSearch,
		cfgStore:    cfgStore,
	}
}

func (s *searchService) Search(ctx context.Context, query, region, category, targetGroup, sessionID string) (*models.SearchResult, error) {
	start := time.Now()
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	log.Printf("search started session=%s query=%q region=%q category=%q", sessionID, query, region, category)

	cfg := s.cfgStore.Get()
	metrics := models.SearchMetrics{SearchMode: "hybrid"}

	keywords := extractKeywords(query)

	threshold := cfg.CalculateThreshold(keywords, region, category, -1)
	metrics.ScoreThresholdUsed = threshold

	// Internal retrieval failures degrade to the web fallback instead of
	// failing the request: the caller still gets a 200 envelope.
	var internalFailed bool
	items, evidence, err := s.hybridSearch(ctx, cfg, query, region, category, targetGroup, threshold, &metrics)
	if err != nil {
		log.Printf("warn: internal search failed session=%s, falling back to web only: %v", sessionID, err)
		internalFailed = true
		items, evidence = nil, nil
	}
	metrics.TotalCandidates = len(items)

	// Too few hits: recompute the threshold with the observed count and
	// retry once if it actually dropped.
	if !internalFailed && len(items) < cfg.TargetMinResults {
		lowered := cfg.CalculateThreshold(keywords, region, category, len(items))
		if lowered < threshold {
			log.Printf("search retry session=%s threshold=%.2f->%.2f count=%d", sessionID, threshold, lowered, len(items))
			metrics.ScoreThresholdUsed = lowered
			items, evidence, err = s.hybridSearch(ctx, cfg, query, region, category, targetGroup, lowered, &metrics)
			if err != nil {
				log.Printf("warn: internal search retry failed session=%s, falling back to web only: %v", sessionID, err)
				internalFailed = true
				items, evidence = nil, nil
			}
			metrics.TotalCandidates = len(items)
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > cfg.FinalLimit {
		items = items[:cfg.FinalLimit]
	}
	metrics.FilteredCount = len(items)

	if len(items) > 0 {
		var sum float64
		metrics.MinScore = items[0].Score
		for _, it := range items {
			sum += it.Score
			if it.Score > metrics.TopScore {
				metrics.TopScore = it.Score
			}
			if it.Score < metrics.MinScore {
				metrics.MinScore = it.Score
			}
		}
		metrics.AvgScore = sum / float64(len(items))
	}

	var webSources []models.WebSource
	if cfg.ShouldTriggerWebSearch(len(items), metrics.TopScore) {
		metrics.WebSearchTriggered = true
		if internalFailed {
			metrics.SufficiencyReason = "내부 검색에 실패했습니다. 웹 검색으로 보충합니다."
		} else {
			metrics.SufficiencyReason = fmt.Sprintf(
				"내부 검색 결과 부족 (결과: %d건, 최고 점수: %.2f). 웹 검색으로 보충합니다.",
				len(items), metrics.TopScore)
		}

		webSources = s.runWebSearch(ctx, cfg, query, keywords, region, targetGroup)
		metrics.WebSearchCount = len(webSources)
	} else {
		metrics.SufficiencyReason = fmt.Sprintf(
			"내부 검색 결과 충분 (결과: %d건, 최고 점수: %.2f).",
			len(items), metrics.TopScore)
	}

	// Web results cannot honor relational filters, so they are appended
	// only for unfiltered searches.
	if region == "" && category == "" {
		for idx, src := range webSources {
			items = append(items, webPolicyItem(src, idx))
		}
	}
	metrics.FinalCount = len(items)
	metrics.SearchTimeMs = time.Since(start).Milliseconds()

	if len(evidence) > 10 {
		evidence = evidence[:10]
	}

	result := &models.SearchResult{
		SessionID:  sessionID,
		Summary:    generateSummary(query, items, metrics),
		Policies:   items,
		TotalCount: len(items),
		TopScore:   metrics.TopScore,
		WebSources: webSources,
		Metrics:    metrics,
		Evidence:   evidence,
		ParsedQuery: models.ParsedQuery{
			Keywords:    keywords,
			Region:      region,
			Category:    category,
			TargetGroup: targetGroup,
		},
	}

	log.Printf("search completed session=%s count=%d top_score=%.2f time_ms=%d web=%v",
		sessionID, result.TotalCount, metrics.TopScore, metrics.SearchTimeMs, metrics.WebSearchTriggered)

	return result, nil
}

// hybridSearch runs dense and sparse retrieval concurrently, fuses the
// ranked lists, aggregates to policy level, and joins policy metadata.
func (s *searchService) hybridSearch(
	ctx context.Context,
	cfg search.Config,
	query, region, category, targetGroup string,
	threshold float64,
	metrics *models.SearchMetrics,
) ([]models.PolicySearchItem, []models.Evidence, error) {
	bm25 := s.ensureBM25(ctx, cfg)

	var (
		denseHits  []models.VectorHit
		sparseHits []search.ScoredDoc
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vector, err := s.embedder.EmbedText(gctx, query)
		if err != nil {
			return err
		}
		filter := models.SearchFilter{Region: region, Category: category}
		denseHits, err = s.vectorStore.Search(gctx, vector, cfg.CandidatesPerSource, filter, threshold)
		return err
	})
	g.Go(func() error {
		if bm25 != nil {
			sparseHits = bm25.Search(query, cfg.CandidatesPerSource, cfg.SparseMinScore)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	denseDocs := make([]search.ScoredDoc, 0, len(denseHits))
	denseContent := make(map[string]string, len(denseHits))
	for _, hit := range denseHits {
		denseDocs = append(denseDocs, search.ScoredDoc{
			DocID:    hit.ChunkID,
			PolicyID: hit.PolicyID,
			Score:    hit.Score,
		})
		denseContent[hit.ChunkID] = hit.Content
	}

	var fused []search.FusedDoc
	switch cfg.FusionMode {
	case search.FusionWeighted:
		fused = search.CombineWeighted(denseDocs, sparseHits, cfg.DenseWeight, cfg.SparseWeight)
	default:
		fused = search.CombineRRF(denseDocs, sparseHits, cfg.RRFK)
	}

	hits := search.AggregateByPolicy(fused, func(docID string) string {
		if content, ok := denseContent[docID]; ok {
			return content
		}
		if bm25 != nil {
			return bm25.Content(docID)
		}
		return ""
	})

	for _, h := range hits {
		switch h.MatchType {
		case models.MatchDense:
			metrics.DenseCount++
		case models.MatchSparse:
			metrics.SparseCount++
		case models.MatchHybrid:
			metrics.HybridCount++
		}
	}

	if len(hits) == 0 {
		return nil, nil, nil
	}

	ids := make([]int, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.PolicyID)
	}
	policyByID, err := s.policies.LookupPolicies(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	var items []models.PolicySearchItem
	var evidence []models.Evidence
	for _, h := range hits {
		policy, ok := policyByID[h.PolicyID]
		if !ok {
			continue
		}
		if region != "" && policy.Region != region {
			continue
		}
		if category != "" && policy.Category != category {
			continue
		}
		if targetGroup != "" && !strings.Contains(policy.ApplyTarget, targetGroup) {
			continue
		}

		items = append(items, models.PolicySearchItem{
			Policy:         policy,
			Score:          h.Score,
			MatchType:      h.MatchType,
			MatchedContent: h.MatchedContent,
			SourceType:     "internal",
		})

		matched := h.MatchedContent
		if matched == "" {
			matched = policy.ProgramName
		}
		evidence = append(evidence, models.Evidence{
			Type:     models.EvidenceInternal,
			Source:   policy.ProgramName,
			Content:  matched,
			Score:    h.Score,
			PolicyID: policy.ID,
			URL:      fmt.Sprintf("/policy/%d", policy.ID),
			LinkType: models.LinkTypePolicyDetail,
		})
	}

	return items, evidence, nil
}

// ensureBM25 builds the sparse index on first use. A scroll failure is
// logged and leaves the service dense-only until the next attempt.
func (s *searchService) ensureBM25(ctx context.Context, cfg search.Config) *search.BM25Index {
	s.bm25Mu.Lock()
	defer s.bm25Mu.Unlock()

	if s.bm25 != nil {
		return s.bm25
	}

	chunks, err := s.vectorStore.Scroll(ctx, models.SearchFilter{}, 0)
	if err != nil {
		log.Printf("warn: bm25 index build failed, continuing dense-only: %v", err)
		return nil
	}

	idx := search.NewBM25Index(search.DefaultBM25Params())
	idx.Build(chunks, cfg.KeywordAdjustments)
	s.bm25 = idx
	return idx
}

// RebuildSparseIndex drops the BM25 index so the next search rebuilds it
// from the current collection. Admin hook, not on the request path.
func (s *searchService) RebuildSparseIndex() {
	s.bm25Mu.Lock()
	s.bm25 = nil
	s.bm25Mu.Unlock()
}

func (s *searchService) runWebSearch(ctx context.Context, cfg search.Config, query string, keywords []string, region, targetGroup string) []models.WebSource {
	var parts []string
	if len(keywords) > 0 {
		if len(keywords) > 3 {
			parts = append(parts, keywords[:3]...)
		} else {
			parts = append(parts, keywords...)
		}
	} else {
		parts = append(parts, query)
	}
	if region != "" && region != "전국" {
		parts = append(parts, region)
	}
	if targetGroup != "" {
		parts = append(parts, targetGroup)
	}
	parts = append(parts, "정부 지원 사업")

	sources, err := s.webSearch.Search(ctx, strings.Join(parts, " "), cfg.WebSearchMaxResults)
	if err != nil {
		log.Printf("warn: web search failed, returning internal results only: %v", err)
		return nil
	}
	return sources
}

func extractKeywords(query string) []string {
	var keywords []string
	for _, w := range strings.Fields(query) {
		if _, stop := queryStopwords[w]; stop {
			continue
		}
		if len([]rune(w)) < 2 {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

// webPolicyItem wraps a web source as a pseudo policy row so clients can
// render mixed result lists uniformly.
func webPolicyItem(src models.WebSource, idx int) models.PolicySearchItem {
	score := src.Score
	if score == 0 {
		score = 0.5
	}
	return models.PolicySearchItem{
		Policy: models.Policy{
			ID:                 -1000 - idx,
			ProgramName:        webTitle(src),
			ProgramOverview:    src.Snippet,
			Region:             "웹 검색",
			Category:           "웹 검색 결과",
			SupportDescription: src.Snippet,
			ApplyTarget:        "웹 검색 결과 - 자세한 내용은 출처 링크를 확인하세요",
			AnnouncementDate:   src.FetchedDate,
			ApplicationMethod:  src.URL,
			URL:                src.URL,
		},
		Score:      score,
		SourceType: "web",
		FaviconURL: faviconURL(src.URL),
	}
}

func webTitle(src models.WebSource) string {
	if src.Title != "" {
		return src.Title
	}
	return "웹 검색 결과"
}

func faviconURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/s2/favicons?domain=%s&sz=64", parsed.Host)
}

func generateSummary(query string, items []models.PolicySearchItem, metrics models.SearchMetrics) string {
	internal, web := 0, 0
	for _, it := range items {
		if it.SourceType == "web" {
			web++
		} else {
			internal++
		}
	}
	total := len(items)

	if total == 0 {
		return fmt.Sprintf("'%s'에 대한 검색 결과가 없습니다.", query)
	}

	if internal > 0 {
		summary := fmt.Sprintf("'%s' 검색 결과 %d건을 찾았습니다.", query, total)
		if metrics.TopScore >= 0.5 {
			summary = fmt.Sprintf("'%s' 검색 결과 %d건을 찾았습니다. '%s'이(가) 가장 관련도가 높습니다 (유사도: %.0f%%).",
				query, total, items[0].Policy.ProgramName, metrics.TopScore*100)
		}
		if web > 0 {
			summary += fmt.Sprintf(" 웹 검색으로 %d건의 추가 정보를 확인했습니다.", web)
		}
		return summary
	}

	return fmt.Sprintf("'%s'에 대한 내부 정책을 찾지 못해 웹 검색 결과 %d건을 제공합니다.", query, web)
}
