package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ngram-sandbox/internal/config"
	"ngram-sandbox/internal/service"
	"ngram-sandbox/internal/service/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const basicCorpus = "el gat està content. el gos és feliç. el gat dorm. el gos juga. " +
	"el gat menja. el gos corre. el cotxe és ràpid. el cotxe va lluny."

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := service.NewCorpusCatalog(config.CorporaConfig{
		Default: "basic",
		Corpora: []config.Corpus{
			{ID: "basic", Label: "Basic", Text: basicCorpus},
			{ID: "custom", Label: "Custom"},
		},
	}, service.CorpusManagerConfig{}, zap.NewNop())
	sessions := session.NewSessionService(catalog, nil, session.Config{DefaultOrder: 2, DefaultTemperature: 0.7}, zap.NewNop())
	t.Cleanup(sessions.Close)

	cc := NewCorpusController(catalog, zap.NewNop())
	sc := NewSessionController(sessions, zap.NewNop())

	router := gin.New()
	router.GET("/corpora", cc.List)
	router.POST("/corpora/:id/train", cc.Train)
	router.GET("/ngrams", cc.NGrams)
	router.POST("/sessions", sc.Create)
	router.GET("/sessions/:id", sc.Get)
	router.PATCH("/sessions/:id", sc.Update)
	router.DELETE("/sessions/:id", sc.Delete)
	router.PUT("/sessions/:id/seed", sc.SetSeed)
	router.POST("/sessions/:id/step", sc.Step)
	router.POST("/sessions/:id/generate", sc.Generate)
	router.POST("/sessions/:id/animate", sc.StartAnimation)
	router.DELETE("/sessions/:id/animate", sc.StopAnimation)
	router.POST("/sessions/:id/clear", sc.Clear)
	router.GET("/sessions/:id/context", sc.Context)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func createSession(t *testing.T, router *gin.Engine, body any) SessionResponse {
	t.Helper()
	w := do(t, router, http.MethodPost, "/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[SessionResponse](t, w)
}

func TestCorpusController_TrainAndList(t *testing.T) {
	router := setupRouter(t)

	w := do(t, router, http.MethodPost, "/corpora/custom/train", TrainRequest{Text: "a b a c"})
	require.Equal(t, http.StatusOK, w.Code)
	trained := decode[TrainResponse](t, w)
	assert.Equal(t, "custom", trained.CorpusID)
	assert.Equal(t, 4, trained.TokenCount)
	assert.Len(t, trained.Stats.Models, 3)

	w = do(t, router, http.MethodPost, "/corpora/basic/train", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/corpora", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Default string               `json:"default"`
		Corpora []service.CorpusInfo `json:"corpora"`
	}](t, w)
	assert.Equal(t, "basic", list.Default)
	require.Len(t, list.Corpora, 2)
	assert.True(t, list.Corpora[0].Trained)
	assert.True(t, list.Corpora[1].Trained)

	w = do(t, router, http.MethodPost, "/corpora/missing/train", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	errBody := decode[map[string]string](t, w)
	assert.Equal(t, "Failed to train corpus", errBody["error"])
	assert.Contains(t, errBody["details"], "missing")
}

func TestCorpusController_NGrams(t *testing.T) {
	router := setupRouter(t)

	w := do(t, router, http.MethodGet, "/ngrams", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[NGramResponse](t, w)
	assert.Equal(t, 2, all.Order)
	assert.Equal(t, all.Total, len(all.NGrams))
	assert.NotEmpty(t, all.NGrams)

	w = do(t, router, http.MethodGet, "/ngrams?order=2&token=Els", nil)
	require.Equal(t, http.StatusOK, w.Code)
	filtered := decode[NGramResponse](t, w)
	assert.Equal(t, "el", filtered.ResolvedToken)
	require.Len(t, filtered.NGrams, 3)
	for _, e := range filtered.NGrams {
		assert.Equal(t, "el", e.Context.LastToken())
	}

	w = do(t, router, http.MethodGet, "/ngrams?order=3&token=gat&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	limited := decode[NGramResponse](t, w)
	assert.Len(t, limited.NGrams, 1)
	assert.Greater(t, limited.Total, 1)

	w = do(t, router, http.MethodGet, "/ngrams?order=7", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/ngrams?corpus=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionController_Lifecycle(t *testing.T) {
	router := setupRouter(t)

	created := createSession(t, router, CreateSessionRequest{Seed: "el gat", Temperature: floatPtr(0)})
	id := created.Session.ID
	assert.Equal(t, "el gat", created.Output)
	assert.Equal(t, 0.0, created.Session.Temperature)

	w := do(t, router, http.MethodPost, "/sessions/"+id+"/step", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stepped := decode[StepResponse](t, w)
	require.Len(t, stepped.Steps, 1)
	assert.Equal(t, "està", stepped.Steps[0].Token)
	assert.Equal(t, "el gat està", stepped.Output)

	w = do(t, router, http.MethodPost, "/sessions/"+id+"/generate", GenerateRequest{Count: 10})
	require.Equal(t, http.StatusOK, w.Code)
	generated := decode[StepResponse](t, w)
	assert.Len(t, generated.Steps, 10)
	assert.Len(t, generated.Session.Generated, 11)

	w = do(t, router, http.MethodGet, "/sessions/"+id+"/context", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPut, "/sessions/"+id+"/seed", SeedRequest{Seed: "el cotxe"})
	require.Equal(t, http.StatusOK, w.Code)
	seeded := decode[SessionResponse](t, w)
	assert.Empty(t, seeded.Session.Generated)
	assert.Equal(t, "el cotxe", seeded.Output)

	w = do(t, router, http.MethodPost, "/sessions/"+id+"/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := decode[SessionResponse](t, w)
	assert.Empty(t, cleared.Output)
	assert.Equal(t, 0.7, cleared.Session.Temperature)

	w = do(t, router, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, router, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionController_TemperatureIsClamped(t *testing.T) {
	router := setupRouter(t)

	created := createSession(t, router, CreateSessionRequest{Temperature: floatPtr(5)})
	assert.Equal(t, MaxTemperature, created.Session.Temperature)

	w := do(t, router, http.MethodPatch, "/sessions/"+created.Session.ID, UpdateSessionRequest{Temperature: floatPtr(-1)})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[SessionResponse](t, w)
	assert.Equal(t, MinTemperature, updated.Session.Temperature)
}

func TestSessionController_Validation(t *testing.T) {
	router := setupRouter(t)

	order := 9
	w := do(t, router, http.MethodPost, "/sessions", CreateSessionRequest{Order: &order})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/sessions", CreateSessionRequest{CorpusID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	created := createSession(t, router, nil)
	w = do(t, router, http.MethodPost, "/sessions/"+created.Session.ID+"/generate", GenerateRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/sessions/nope/step", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionController_Animation(t *testing.T) {
	router := setupRouter(t)
	created := createSession(t, router, CreateSessionRequest{Seed: "el"})
	id := created.Session.ID

	w := do(t, router, http.MethodPost, "/sessions/"+id+"/animate", AnimateRequest{IntervalMs: 10})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[SessionResponse](t, w).Session.Animating)

	w = do(t, router, http.MethodDelete, "/sessions/"+id+"/animate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[SessionResponse](t, w).Session.Animating)

	w = do(t, router, http.MethodDelete, "/sessions/"+id+"/animate", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/sessions/"+id+"/animate", AnimateRequest{IntervalMs: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func floatPtr(v float64) *float64 { return &v }
