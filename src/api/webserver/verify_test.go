package webserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/satyashodhak/factcheck-api/src/ai/gemini"
	"github.com/satyashodhak/factcheck-api/src/api/types"
	"github.com/satyashodhak/factcheck-api/src/factcheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineStub struct {
	srv    *httptest.Server
	calls  int32
	status int
	text   string
	prompt string
}

func newEngineStub(t *testing.T, status int, text string) *engineStub {
	t.Helper()
	stub := &engineStub{status: status, text: text}
	stub.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&stub.calls, 1)
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			stub.prompt = req.Contents[0].Parts[0].Text
		}
		if stub.status != http.StatusOK {
			w.WriteHeader(stub.status)
			w.Write([]byte(`{"error": "upstream"}`))
			return
		}
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": stub.text}},
				}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(stub.srv.Close)
	return stub
}

func newFactCheckStub(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func verifyRouter(t *testing.T, v Verify, uid string) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.Use(authAs(uid))
	r.POST("/v1/verify", v.Run)
	return r
}

const goodVerdict = `{"verdict":"FALSE","confidence":99,"explanation":"## Verdict\nNo.","sources":[]}`

func TestVerifyEmptyClaimRejectsBeforeOutboundCalls(t *testing.T) {
	db := setupDB(t)
	engine := newEngineStub(t, http.StatusOK, goodVerdict)
	fcSrv, fcCalls := newFactCheckStub(t, http.StatusOK, `{}`)

	v := Verify{
		db:     db,
		rdb:    setupRedis(t),
		fc:     factcheck.NewClient("k", fcSrv.URL),
		engine: gemini.NewClient("k", engine.srv.URL),
		rate:   100,
	}
	r := verifyRouter(t, v, "user-1")

	for _, claim := range []string{"", "   ", "\n\t"} {
		w := doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{"claim": claim})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	assert.EqualValues(t, 0, atomic.LoadInt32(&engine.calls))
	assert.EqualValues(t, 0, atomic.LoadInt32(fcCalls))
}

func TestVerifyEngineNotConfigured(t *testing.T) {
	v := Verify{db: setupDB(t), rdb: setupRedis(t), rate: 100}
	r := verifyRouter(t, v, "user-1")

	w := doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{"claim": "anything"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")
}

func TestVerifyDegradesOnUnparseableOutput(t *testing.T) {
	db := setupDB(t)
	engine := newEngineStub(t, http.StatusOK, "I cannot produce JSON today, sorry.")

	v := Verify{db: db, rdb: setupRedis(t), engine: gemini.NewClient("k", engine.srv.URL), rate: 100}
	r := verifyRouter(t, v, "user-1")

	w := doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{"claim": "The Moon is cheese."})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	result := body["result"].(map[string]interface{})
	assert.Equal(t, types.VerdictInconclusive, result["verdict"])
	assert.EqualValues(t, 50, result["confidence"])
	assert.Equal(t, "I cannot produce JSON today, sorry.", result["explanation"])

	// Exactly one synthetic fallback source.
	sources := result["sources"].([]interface{})
	require.Len(t, sources, 1)
	assert.Equal(t, "AI Analysis", sources[0].(map[string]interface{})["title"])
}

func TestVerifyFlatEarthScenario(t *testing.T) {
	db := setupDB(t)
	engine := newEngineStub(t, http.StatusOK, "```json\n"+goodVerdict+"\n```")

	v := Verify{db: db, rdb: setupRedis(t), engine: gemini.NewClient("k", engine.srv.URL), rate: 100}
	r := verifyRouter(t, v, "user-1")

	w := doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{"claim": "The Earth is flat."})
	require.Equal(t, http.StatusOK, w.Code)

	var record types.VerificationResult
	require.NoError(t, db.First(&record, "user_id = ?", "user-1").Error)
	assert.Equal(t, types.VerdictFalse, record.Verdict)
	assert.Equal(t, 99, record.Confidence)
	assert.Equal(t, "The Earth is flat.", record.Claim)
	assert.True(t, record.IsPublic)
	require.Len(t, record.Sources, 1)
	assert.Equal(t, "AI Analysis", record.Sources[0].Title)
}

func TestVerifyMergesEvidenceSources(t *testing.T) {
	db := setupDB(t)
	longTitle := strings.Repeat("x", 300)
	fcBody := `{"claims": [
		{"text": "c1", "claimReview": [{"publisher": {"name": "Checker One"}, "url": "https://one.example", "title": "` + longTitle + `", "textualRating": "False"}]},
		{"text": "c2", "claimReview": [{"publisher": {"name": "Checker Two"}, "url": "https://two.example", "title": "t2", "textualRating": "Mostly false"}]},
		{"text": "c3", "claimReview": [{"publisher": {"name": "Checker Three"}, "url": "https://three.example", "title": "t3", "textualRating": "Pants on fire"}]}
	]}`
	fcSrv, _ := newFactCheckStub(t, http.StatusOK, fcBody)

	engineOut := `{"verdict":"FALSE","confidence":95,"explanation":"no","sources":[{"title":"Model source","snippet":"s","url":"https://model.example"}]}`
	engine := newEngineStub(t, http.StatusOK, engineOut)

	v := Verify{
		db:     db,
		rdb:    setupRedis(t),
		fc:     factcheck.NewClient("k", fcSrv.URL),
		engine: gemini.NewClient("k", engine.srv.URL),
		rate:   100,
	}
	r := verifyRouter(t, v, "user-1")

	w := doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{"claim": "The Earth is flat."})
	require.Equal(t, http.StatusOK, w.Code)

	// Model source first, then at most two evidence entries.
	var record types.VerificationResult
	require.NoError(t, db.First(&record, "user_id = ?", "user-1").Error)
	require.Len(t, record.Sources, 3)
	assert.Equal(t, "Model source", record.Sources[0].Title)
	assert.Equal(t, "Checker One", record.Sources[1].Title)
	assert.Equal(t, "Checker Two", record.Sources[2].Title)
	assert.LessOrEqual(t, len(record.Sources[1].Snippet), 200)

	// The prompt embeds up to three evidence entries as hints.
	assert.Contains(t, engine.prompt, "EXISTING FACT CHECKS")
	assert.Contains(t, engine.prompt, "Checker Three")
	assert.Contains(t, engine.prompt, "The Earth is flat.")
}

func TestVerifySnippetTruncationKeepsRunesIntact(t *testing.T) {
	db := setupDB(t)
	// "False - a" is 9 bytes, so the 200-byte cap lands mid-rune in the
	// two-byte runs that follow.
	longTitle := "a" + strings.Repeat("é", 150)
	fcBody := `{"claims": [
		{"text": "c1", "claimReview": [{"publisher": {"name": "Checker One"}, "url": "https://one.example", "title": "` + longTitle + `", "textualRating": "False"}]}
	]}`
	fcSrv, _ := newFactCheckStub(t, http.StatusOK, fcBody)
	engine := newEngineStub(t, http.StatusOK, goodVerdict)

	v := Verify{
		db:     db,
		rdb:    setupRedis(t),
		fc:     factcheck.NewClient("k", fcSrv.URL),
		engine: gemini.NewClient("k", engine.srv.URL),
		rate:   100,
	}
	r := verifyRouter(t, v, "user-1")

	w := doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{"claim": "The Earth is flat."})
	require.Equal(t, http.StatusOK, w.Code)

	var record types.VerificationResult
	require.NoError(t, db.First(&record, "user_id = ?", "user-1").Error)
	require.Len(t, record.Sources, 1)
	snippet := record.Sources[0].Snippet
	assert.LessOrEqual(t, len(snippet), 200)
	assert.True(t, utf8.ValidString(snippet), "truncation split a rune: %q", snippet)
	assert.True(t, strings.HasPrefix(snippet, "False - a"))
}

func TestVerifyFractionalConfidence(t *testing.T) {
	db := setupDB(t)
	fractional := `{"verdict":"TRUE","confidence":87.5,"explanation":"## Verdict\nYes.","sources":[{"title":"s","snippet":"n","url":"https://s.example"}]}`
	engine := newEngineStub(t, http.StatusOK, fractional)

	v := Verify{db: db, rdb: setupRedis(t), engine: gemini.NewClient("k", engine.srv.URL), rate: 100}
	r := verifyRouter(t, v, "user-1")

	w := doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{"claim": "Water boils at 100C at sea level."})
	require.Equal(t, http.StatusOK, w.Code)

	// A fractional confidence rounds; it must not degrade a valid verdict.
	var record types.VerificationResult
	require.NoError(t, db.First(&record, "user_id = ?", "user-1").Error)
	assert.Equal(t, types.VerdictTrue, record.Verdict)
	assert.Equal(t, 88, record.Confidence)
	assert.Equal(t, "## Verdict\nYes.", record.Explanation)
}

func TestVerifyEvidenceFailureIsSwallowed(t *testing.T) {
	db := setupDB(t)
	fcSrv, fcCalls := newFactCheckStub(t, http.StatusInternalServerError, "")
	engine := newEngineStub(t, http.StatusOK, goodVerdict)

	v := Verify{
		db:     db,
		rdb:    setupRedis(t),
		fc:     factcheck.NewClient("k", fcSrv.URL),
		engine: gemini.NewClient("k", engine.srv.URL),
		rate:   100,
	}
	r := verifyRouter(t, v, "user-1")

	w := doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{"claim": "The Earth is flat."})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, atomic.LoadInt32(fcCalls))
}

func TestVerifyTieredEngineFailures(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		wantStatus int
	}{
		{"rate limited", http.StatusTooManyRequests, http.StatusTooManyRequests},
		{"quota exhausted", http.StatusPaymentRequired, http.StatusPaymentRequired},
		{"server error", http.StatusInternalServerError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := setupDB(t)
			engine := newEngineStub(t, tc.status, "")

			v := Verify{db: db, rdb: setupRedis(t), engine: gemini.NewClient("k", engine.srv.URL), rate: 100}
			r := verifyRouter(t, v, "user-1")

			w := doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{"claim": "The Earth is flat."})
			assert.Equal(t, tc.wantStatus, w.Code)

			// Terminal failures persist nothing.
			var count int64
			require.NoError(t, db.Model(&types.VerificationResult{}).Count(&count).Error)
			assert.EqualValues(t, 0, count)
		})
	}
}

func TestVerifyRateLimit(t *testing.T) {
	db := setupDB(t)
	engine := newEngineStub(t, http.StatusOK, goodVerdict)

	v := Verify{db: db, rdb: setupRedis(t), engine: gemini.NewClient("k", engine.srv.URL), rate: 1}
	r := verifyRouter(t, v, "user-1")

	w := doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{"claim": "The Earth is flat."})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{"claim": "The Earth is flat."})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.EqualValues(t, 1, atomic.LoadInt32(&engine.calls))
}

func TestVerifyReverificationUpdatesInPlace(t *testing.T) {
	db := setupDB(t)
	original := seedResult(t, db, "user-1", false)

	updated := `{"verdict":"MISLEADING","confidence":70,"explanation":"new analysis","sources":[{"title":"s","snippet":"n","url":"https://s.example"}]}`
	engine := newEngineStub(t, http.StatusOK, updated)

	v := Verify{db: db, rdb: setupRedis(t), engine: gemini.NewClient("k", engine.srv.URL), rate: 100}
	r := verifyRouter(t, v, "user-1")

	time.Sleep(10 * time.Millisecond)
	w := doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{
		"claim":              original.Claim,
		"is_reverification":  true,
		"original_result_id": original.ID,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var record types.VerificationResult
	require.NoError(t, db.First(&record, "id = ?", original.ID).Error)
	assert.Equal(t, types.VerdictMisleading, record.Verdict)
	assert.Equal(t, 70, record.Confidence)
	assert.Equal(t, original.Claim, record.Claim)
	assert.True(t, record.UpdatedAt.After(original.UpdatedAt))

	// Still a single row; re-verification does not insert.
	var count int64
	require.NoError(t, db.Model(&types.VerificationResult{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestVerifyReverificationRequiresOwnership(t *testing.T) {
	db := setupDB(t)
	original := seedResult(t, db, "someone-else", false)

	engine := newEngineStub(t, http.StatusOK, goodVerdict)
	v := Verify{db: db, rdb: setupRedis(t), engine: gemini.NewClient("k", engine.srv.URL), rate: 100}
	r := verifyRouter(t, v, "user-1")

	w := doJSON(t, r, http.MethodPost, "/v1/verify", gin.H{
		"claim":              original.Claim,
		"is_reverification":  true,
		"original_result_id": original.ID,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	var record types.VerificationResult
	require.NoError(t, db.First(&record, "id = ?", original.ID).Error)
	assert.Equal(t, original.Verdict, record.Verdict)
}
