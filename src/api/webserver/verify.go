package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/satyashodhak/factcheck-api/src/ai/gemini"
	"github.com/satyashodhak/factcheck-api/src/api/config"
	"github.com/satyashodhak/factcheck-api/src/api/data"
	"github.com/satyashodhak/factcheck-api/src/api/types"
	"github.com/satyashodhak/factcheck-api/src/factcheck"
	"gorm.io/gorm"
)

const systemPrompt = `You are an expert fact-checker. Analyze claims objectively using evidence-based reasoning.

YOUR TASK:
1. Evaluate the claim's truthfulness and provide a structured analysis
2. Generate a detailed fact description with the following sections:
   - Key Points: 2-3 bullet points summarizing the most important facts
   - Context: Background information to understand the claim
   - Analysis: Detailed examination of the evidence
   - Verdict: Clear conclusion with reasoning
3. Provide a verdict: TRUE, FALSE, MISLEADING, PARTIALLY_TRUE, or INCONCLUSIVE
4. Assign a confidence score (0-100)
5. List credible sources that support your analysis

GUIDELINES:
- Be thorough but concise
- Consider context, nuance, and available evidence
- Use markdown formatting for better readability
- Cite sources using [number] notation
- If the claim is ambiguous, explain why and what would be needed for a definitive answer

`

const responseContract = `Analyze this claim and provide a structured response in this exact JSON format:
{
  "verdict": "TRUE|FALSE|MISLEADING|PARTIALLY_TRUE|INCONCLUSIVE",
  "confidence": <number 0-100>,
  "explanation": "## Key Points\n- Point 1\n- Point 2\n\n## Context\n[Provide background information]\n\n## Analysis\n[Detailed examination of evidence]\n\n## Verdict\n[Clear conclusion with reasoning]",
  "sources": [
    {
      "title": "<source title>",
      "snippet": "<relevant excerpt>",
      "url": "<source URL>"
    }
  ]
}`

// verdictPayload is the normalized form of the object the reasoning engine is
// asked to emit.
type verdictPayload struct {
	Verdict     string
	Confidence  int
	Explanation string
	Sources     types.SourceList
}

type Verify struct {
	db     *gorm.DB
	rdb    *redis.Client
	fc     *factcheck.Client
	engine *gemini.Client
	rate   int
}

func NewVerify(cfg config.Config, db *gorm.DB, rdb *redis.Client) Verify {
	// Absent fact-check key silently disables the evidence step.
	var fc *factcheck.Client
	if cfg.FactCheckAPIKey != "" {
		fc = factcheck.NewClient(cfg.FactCheckAPIKey, data.GetSetting("factcheck_api"))
	}
	var engine *gemini.Client
	if cfg.GeminiAPIKey != "" {
		engine = gemini.NewClient(cfg.GeminiAPIKey, data.GetSetting("gemini_api"))
	}
	return Verify{db: db, rdb: rdb, fc: fc, engine: engine, rate: cfg.VerifyRate}
}

// Run executes the verification pipeline: evidence lookup, reasoning engine
// call, normalization, merge, persist, respond.
func (v Verify) Run(c *gin.Context) {
	var req struct {
		Claim            string `json:"claim"`
		IsReverification bool   `json:"is_reverification"`
		OriginalResultID string `json:"original_result_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	claim := strings.TrimSpace(req.Claim)
	if claim == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "Claim is required"})
		return
	}

	if v.engine == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "GEMINI_API_KEY not configured"})
		return
	}

	uid := c.GetString("uid")
	if !data.AllowVerify(c, v.rdb, uid, v.rate) {
		c.JSON(http.StatusTooManyRequests, gin.H{"err": "rate limit exceeded, retry later"})
		return
	}

	log.Printf("Starting verification for claim: %s", claim)

	// 1. Prior human fact-checks. Best effort: failures count as no results.
	var evidence []factcheck.Claim
	if v.fc != nil {
		results, err := v.fc.Search(c, claim)
		if err != nil {
			log.Printf("Fact check API error: %v", err)
		} else {
			evidence = results
			log.Printf("Fact check results: %d", len(evidence))
		}
	}

	// 2. Single reasoning engine call with tiered failure handling.
	prompt := buildPrompt(claim, evidence)
	aiText, err := v.engine.Generate(c, prompt, gemini.Options{Model: data.GetSetting("gemini_model")})
	if err != nil {
		switch {
		case errors.Is(err, gemini.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"err": "Rate limit exceeded. Please try again later."})
		case errors.Is(err, gemini.ErrQuotaExhausted):
			c.JSON(http.StatusPaymentRequired, gin.H{"err": "AI credits exhausted. Please add credits to continue."})
		default:
			log.Printf("AI API error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"err": "AI API request failed"})
		}
		return
	}

	// 3. Parse, degrading to an inconclusive placeholder on non-JSON output.
	result := parseVerdict(aiText)

	// 4. Merge in up to two prior fact-check sources, then guarantee at least
	// one entry before anything is persisted.
	result.Sources = append(result.Sources, evidenceSources(evidence)...)
	if len(result.Sources) == 0 {
		result.Sources = types.SourceList{{
			Title:   "AI Analysis",
			Snippet: "This verification was performed using advanced AI reasoning and available information.",
			URL:     data.GetSetting("fallback_source_url"),
		}}
	}

	// 5. Persist: ownership-scoped update on re-verification, insert otherwise.
	if req.IsReverification && req.OriginalResultID != "" {
		res := v.db.Model(&types.VerificationResult{}).
			Where("id = ? AND user_id = ?", req.OriginalResultID, uid).
			Updates(map[string]interface{}{
				"verdict":     result.Verdict,
				"confidence":  result.Confidence,
				"explanation": result.Explanation,
				"sources":     result.Sources,
				"updated_at":  time.Now(),
			})
		if res.Error != nil {
			log.Printf("Failed to update result: %v", res.Error)
			c.JSON(http.StatusInternalServerError, gin.H{"err": "Failed to update verification result"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusForbidden, gin.H{"err": "not authorized to update this result"})
			return
		}
	} else {
		record := types.VerificationResult{
			ID:          uuid.NewString(),
			UserID:      uid,
			Claim:       claim,
			Verdict:     result.Verdict,
			Confidence:  result.Confidence,
			Explanation: result.Explanation,
			Sources:     result.Sources,
			IsPublic:    true,
		}
		if err := v.db.Create(&record).Error; err != nil {
			log.Printf("Failed to save result: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"err": "Failed to save verification result"})
			return
		}
	}

	_ = data.PublishVerification(context.Background(), v.rdb, map[string]interface{}{
		"user":    uid,
		"claim":   claim,
		"verdict": result.Verdict,
		"time":    time.Now().Unix(),
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result": gin.H{
			"verdict":     result.Verdict,
			"confidence":  result.Confidence,
			"explanation": result.Explanation,
			"sources":     result.Sources,
			"claim":       claim,
		},
	})
}

// buildPrompt embeds up to three prior fact-checks as contextual hints.
func buildPrompt(claim string, evidence []factcheck.Claim) string {
	var b strings.Builder
	b.WriteString(systemPrompt)

	if len(evidence) > 0 {
		n := len(evidence)
		if n > 3 {
			n = 3
		}
		b.WriteString("EXISTING FACT CHECKS (for reference):\n")
		for i, ev := range evidence[:n] {
			review, _ := ev.Review()
			publisher := review.Publisher.Name
			if publisher == "" {
				publisher = "Unknown"
			}
			rating := review.TextualRating
			if rating == "" {
				rating = "N/A"
			}
			title := review.Title
			if title == "" {
				title = "No title"
			}
			url := review.URL
			if url == "" {
				url = "No URL"
			}
			fmt.Fprintf(&b, "%d. Source: %s\n   Rating: %s\n   Review: %s\n   URL: %s\n\n", i+1, publisher, rating, title, url)
		}
		b.WriteString("\n")
	}

	b.WriteString(responseContract)
	fmt.Fprintf(&b, "\n\nClaim to verify: %q", claim)
	return b.String()
}

// parseVerdict decodes the engine output, tolerating fenced code blocks.
// Unparseable output degrades to an inconclusive placeholder carrying the raw
// text instead of failing the request.
func parseVerdict(aiText string) verdictPayload {
	// Confidence decodes as a float; models occasionally emit "87.5".
	var raw struct {
		Verdict     string           `json:"verdict"`
		Confidence  float64          `json:"confidence"`
		Explanation string           `json:"explanation"`
		Sources     types.SourceList `json:"sources"`
	}
	if err := json.Unmarshal([]byte(gemini.ExtractJSON(aiText)), &raw); err != nil {
		log.Printf("Failed to parse AI response: %v", err)
		return verdictPayload{
			Verdict:     types.VerdictInconclusive,
			Confidence:  50,
			Explanation: aiText,
			Sources:     types.SourceList{},
		}
	}
	result := verdictPayload{
		Verdict:     raw.Verdict,
		Confidence:  int(math.Round(raw.Confidence)),
		Explanation: raw.Explanation,
		Sources:     raw.Sources,
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 100 {
		result.Confidence = 100
	}
	return result
}

// evidenceSources maps up to two prior fact-checks onto source entries.
func evidenceSources(evidence []factcheck.Claim) types.SourceList {
	n := len(evidence)
	if n > 2 {
		n = 2
	}
	sources := make(types.SourceList, 0, n)
	for _, ev := range evidence[:n] {
		review, _ := ev.Review()
		title := review.Publisher.Name
		if title == "" {
			title = "Google Fact Check"
		}
		rating := review.TextualRating
		if rating == "" {
			rating = "Rating unavailable"
		}
		detail := review.Title
		if detail == "" {
			detail = ev.Text
		}
		snippet := rating + " - " + detail
		if len(snippet) > 200 {
			cut := 200
			// Back up to a rune boundary so the cap never splits a character.
			for cut > 0 && !utf8.RuneStart(snippet[cut]) {
				cut--
			}
			snippet = snippet[:cut]
		}
		url := review.URL
		if url == "" {
			url = "https://toolbox.google.com/factcheck"
		}
		sources = append(sources, types.Source{Title: title, Snippet: snippet, URL: url})
	}
	return sources
}
