package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Verdict 核查结论
type Verdict string

const (
	VerdictFact       Verdict = "FACT"
	VerdictHoax       Verdict = "HOAX"
	VerdictMisleading Verdict = "MISLEADING"
	VerdictUnknown    Verdict = "UNKNOWN"
)

var (
	verdictLineRe  = regexp.MustCompile(`(?i)verdict\s*[:：]\s*\**\s*(fact|hoax|misleading|fakta|benar|salah|menyesatkan|disinformasi)\b`)
	confidenceRe   = regexp.MustCompile(`(?i)confidence\s*[:：]\s*\**\s*(\d{1,3})\b(?:[.,]\d+)?\s*%?`)
	verdictAliases = map[string]Verdict{
		"fact":         VerdictFact,
		"fakta":        VerdictFact,
		"benar":        VerdictFact,
		"hoax":         VerdictHoax,
		"salah":        VerdictHoax,
		"misleading":   VerdictMisleading,
		"menyesatkan":  VerdictMisleading,
		"disinformasi": VerdictMisleading,
	}
)

// ParseVerdict 从核查结论中解析 "Verdict: X" 行，取最后一次出现
// 没有明确结论时返回 VerdictUnknown
func ParseVerdict(analysis string) Verdict {
	matches := verdictLineRe.FindAllStringSubmatch(analysis, -1)
	if len(matches) == 0 {
		return VerdictUnknown
	}
	last := matches[len(matches)-1]
	if v, ok := verdictAliases[strings.ToLower(last[1])]; ok {
		return v
	}
	return VerdictUnknown
}

// ParseConfidence 解析 "Confidence: N%"，超出 0..100 或缺失时返回 -1
func ParseConfidence(analysis string) int {
	matches := confidenceRe.FindAllStringSubmatch(analysis, -1)
	if len(matches) == 0 {
		return -1
	}
	n, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil || n < 0 || n > 100 {
		return -1
	}
	return n
}

// Source 报告中引用的一条来源
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ExtractSources 从最近一次成功的搜索结果中提取来源，按 URL 去重
func ExtractSources(messages []*schema.Message) []Source {
	var toolMsg *schema.Message
	for i := len(messages) - 1; i >= 0; i-- {
		if m := messages[i]; m != nil && m.Role == schema.Tool {
			toolMsg = m
			break
		}
	}
	if toolMsg == nil {
		return nil
	}

	payload, ok := ParseSearchPayload(toolMsg.Content)
	if !ok {
		return nil
	}

	seen := make(map[string]struct{}, len(payload.Results))
	sources := make([]Source, 0, len(payload.Results))
	for _, r := range payload.Results {
		u := strings.TrimSpace(r.URL)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		sources = append(sources, Source{Title: r.Title, URL: u})
	}
	return sources
}
