package controller

import (
	"net/http"
	"time"

	"ngram-sandbox/internal/service"
	"ngram-sandbox/internal/service/session"
	"ngram-sandbox/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

type SessionController struct {
	sessions *session.SessionService
	logger   *zap.Logger
}

func NewSessionController(sessions *session.SessionService, logger *zap.Logger) *SessionController {
	return &SessionController{
		sessions: sessions,
		logger:   logger,
	}
}

type CreateSessionRequest struct {
	CorpusID    string   `json:"corpus_id"`
	Seed        string   `json:"seed"`
	Order       *int     `json:"order" binding:"omitempty,min=2,max=4"`
	Temperature *float64 `json:"temperature"`
}

type UpdateSessionRequest struct {
	Order       *int     `json:"order" binding:"omitempty,min=2,max=4"`
	Temperature *float64 `json:"temperature"`
}

type SeedRequest struct {
	Seed string `json:"seed"`
}

type GenerateRequest struct {
	Count int `json:"count" binding:"required,min=1,max=500"`
}

type AnimateRequest struct {
	IntervalMs int `json:"interval_ms" binding:"omitempty,min=10"`
}

type SessionResponse struct {
	Session session.Session `json:"session"`
	Output  string          `json:"output"`
}

type StepResponse struct {
	SessionResponse
	Steps []service.Step `json:"steps"`
}

// clampTemperature keeps user supplied temperatures inside the range the
// sandbox exposes
func clampTemperature(t *float64) *float64 {
	if t == nil {
		return nil
	}
	return util.Ptr(util.Clamp(*t, MinTemperature, MaxTemperature))
}

func bindOptionalJSON(c *gin.Context, logger *zap.Logger, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		logger.Warn("Invalid request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func (sc *SessionController) respond(c *gin.Context, sess session.Session, steps []service.Step) {
	output, err := sc.sessions.Output(c.Request.Context(), sess.ID)
	if err != nil {
		respondError(c, sc.logger, "Failed to format output", err)
		return
	}
	if steps == nil {
		c.JSON(http.StatusOK, SessionResponse{Session: sess, Output: output})
		return
	}
	c.JSON(http.StatusOK, StepResponse{
		SessionResponse: SessionResponse{Session: sess, Output: output},
		Steps:           steps,
	})
}

func (sc *SessionController) Create(c *gin.Context) {
	var request CreateSessionRequest
	if !bindOptionalJSON(c, sc.logger, &request) {
		return
	}

	sess, err := sc.sessions.Create(c.Request.Context(), session.CreateOptions{
		CorpusID:    request.CorpusID,
		Seed:        request.Seed,
		Order:       request.Order,
		Temperature: clampTemperature(request.Temperature),
	})
	if err != nil {
		respondError(c, sc.logger, "Failed to create session", err)
		return
	}

	output, _ := sc.sessions.Output(c.Request.Context(), sess.ID)
	c.JSON(http.StatusCreated, SessionResponse{Session: sess, Output: output})
}

func (sc *SessionController) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": sc.sessions.List()})
}

func (sc *SessionController) Get(c *gin.Context) {
	sess, err := sc.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, sc.logger, "Failed to get session", err)
		return
	}
	sc.respond(c, sess, nil)
}

func (sc *SessionController) Update(c *gin.Context) {
	var request UpdateSessionRequest
	if !bindOptionalJSON(c, sc.logger, &request) {
		return
	}

	sess, err := sc.sessions.Update(c.Param("id"), session.UpdateOptions{
		Order:       request.Order,
		Temperature: clampTemperature(request.Temperature),
	})
	if err != nil {
		respondError(c, sc.logger, "Failed to update session", err)
		return
	}
	sc.respond(c, sess, nil)
}

func (sc *SessionController) Delete(c *gin.Context) {
	if err := sc.sessions.Delete(c.Param("id")); err != nil {
		respondError(c, sc.logger, "Failed to delete session", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (sc *SessionController) SetSeed(c *gin.Context) {
	var request SeedRequest
	if !bindOptionalJSON(c, sc.logger, &request) {
		return
	}

	sess, err := sc.sessions.SetSeed(c.Request.Context(), c.Param("id"), request.Seed)
	if err != nil {
		respondError(c, sc.logger, "Failed to set seed", err)
		return
	}
	sc.respond(c, sess, nil)
}

func (sc *SessionController) Step(c *gin.Context) {
	id := c.Param("id")
	step, ok, err := sc.sessions.Step(c.Request.Context(), id)
	if err != nil {
		respondError(c, sc.logger, "Failed to generate token", err)
		return
	}

	sess, err := sc.sessions.Get(id)
	if err != nil {
		respondError(c, sc.logger, "Failed to generate token", err)
		return
	}
	steps := []service.Step{}
	if ok {
		steps = append(steps, step)
	}
	sc.respond(c, sess, steps)
}

func (sc *SessionController) Generate(c *gin.Context) {
	var request GenerateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		sc.logger.Warn("Invalid request payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	id := c.Param("id")
	steps, err := sc.sessions.GenerateMany(c.Request.Context(), id, request.Count)
	if err != nil {
		respondError(c, sc.logger, "Failed to generate tokens", err)
		return
	}

	sess, err := sc.sessions.Get(id)
	if err != nil {
		respondError(c, sc.logger, "Failed to generate tokens", err)
		return
	}
	sc.respond(c, sess, steps)
}

func (sc *SessionController) StartAnimation(c *gin.Context) {
	var request AnimateRequest
	if !bindOptionalJSON(c, sc.logger, &request) {
		return
	}

	interval := time.Duration(request.IntervalMs) * time.Millisecond
	sess, err := sc.sessions.StartAnimation(c.Param("id"), interval)
	if err != nil {
		respondError(c, sc.logger, "Failed to start animation", err)
		return
	}
	sc.respond(c, sess, nil)
}

func (sc *SessionController) StopAnimation(c *gin.Context) {
	sess, err := sc.sessions.StopAnimation(c.Param("id"))
	if err != nil {
		respondError(c, sc.logger, "Failed to stop animation", err)
		return
	}
	sc.respond(c, sess, nil)
}

func (sc *SessionController) Clear(c *gin.Context) {
	sess, err := sc.sessions.Clear(c.Param("id"))
	if err != nil {
		respondError(c, sc.logger, "Failed to clear session", err)
		return
	}
	sc.respond(c, sess, nil)
}

func (sc *SessionController) Context(c *gin.Context) {
	view, err := sc.sessions.Context(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, sc.logger, "Failed to resolve context", err)
		return
	}
	c.JSON(http.StatusOK, view)
}
