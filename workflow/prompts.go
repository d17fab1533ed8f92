package workflow

import (
	"strings"
	"text/template"

	"github.com/policy-qa-backend/models"
)

const (
	systemDocsOnly = "당신은 정부 정책 전문 상담사입니다. 제공된 정책 문서를 기반으로 정확하게 답변하세요."
	systemWebOnly  = "당신은 정부 정책 전문 상담사입니다. 웹 검색 결과를 바탕으로 링크와 정보를 제공하세요."
	systemHybrid   = "당신은 정부 정책 전문 상담사입니다. 정책 문서와 웹 검색 결과를 모두 활용하여 답변하세요."
)

// Citation contract shared by every answer prompt: each factual claim must
// carry an inline marker referencing the 1-based index of its source.
const citationRules = `답변 규칙:
- 정책 문서에서 가져온 모든 사실에는 [정책문서 i] 표시를 붙이세요 (i는 아래 문서 목록의 번호).
- 웹 검색 결과에서 가져온 모든 사실에는 [웹 j] 표시를 붙이세요 (j는 아래 웹 결과 목록의 번호).
- 제공된 자료에 없는 내용은 추측하지 말고 모른다고 답하세요.
- 한국어로 친절하고 정확하게 답변하세요.`

var promptFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

func mustPrompt(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(promptFuncs).Parse(text))
}

var docsOnlyPrompt = mustPrompt("docs_only", `다음 정책에 대한 질문에 답변하세요.

정책명: {{.PolicyInfo.ProgramName}}
정책 개요: {{.PolicyInfo.ProgramOverview}}
지원 대상: {{.PolicyInfo.ApplyTarget}}
지원 내용: {{.PolicyInfo.SupportDescription}}

` + citationRules + `
{{if .History}}
이전 대화:
{{.History}}{{end}}
정책 문서:
{{range $i, $doc := .Docs}}[정책문서 {{inc $i}}] (섹션: {{$doc.DocType}})
{{$doc.Content}}

{{end}}질문: {{.Question}}`)

var webOnlyPrompt = mustPrompt("web_only", `다음 질문에 웹 검색 결과를 바탕으로 답변하세요. 관련 링크를 함께 안내하세요.
{{if .PolicyInfo.ProgramName}}
정책명: {{.PolicyInfo.ProgramName}}
{{end}}
` + citationRules + `
{{if .History}}
이전 대화:
{{.History}}{{end}}
웹 검색 결과:
{{range $j, $src := .Web}}[웹 {{inc $j}}] {{$src.Title}} ({{$src.URL}})
{{$src.Snippet}}

{{end}}질문: {{.Question}}`)

var hybridPrompt = mustPrompt("hybrid", `다음 정책에 대한 질문에 답변하세요. 정책 문서를 우선 사용하고, 부족한 부분은 웹 검색 결과로 보완하세요.

정책명: {{.PolicyInfo.ProgramName}}
정책 개요: {{.PolicyInfo.ProgramOverview}}
지원 대상: {{.PolicyInfo.ApplyTarget}}
지원 내용: {{.PolicyInfo.SupportDescription}}

` + citationRules + `
{{if .History}}
이전 대화:
{{.History}}{{end}}
정책 문서:
{{range $i, $doc := .Docs}}[정책문서 {{inc $i}}] (섹션: {{$doc.DocType}})
{{$doc.Content}}

{{end}}웹 검색 결과:
{{range $j, $src := .Web}}[웹 {{inc $j}}] {{$src.Title}} ({{$src.URL}})
{{$src.Snippet}}

{{end}}질문: {{.Question}}`)

type promptData struct {
	PolicyInfo models.PolicyInfo
	Docs       []models.DocumentChunk
	Web        []models.WebSource
	History    string
	Question   string
}

func renderPrompt(tmpl *template.Template, data promptData) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// formatHistory renders the most recent messages for prompt context.
func formatHistory(messages []models.ChatMessage, limit int) string {
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	var sb strings.Builder
	for _, msg := range messages {
		role := "사용자"
		if msg.Role == models.RoleAssistant {
			role = "상담사"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
