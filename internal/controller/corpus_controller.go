package controller

import (
	"errors"
	"net/http"

	"ngram-sandbox/internal/config"
	"ngram-sandbox/internal/model/ngram"
	"ngram-sandbox/internal/service"
	"ngram-sandbox/internal/service/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CorpusController struct {
	catalog *service.CorpusCatalog
	logger  *zap.Logger
}

func NewCorpusController(catalog *service.CorpusCatalog, logger *zap.Logger) *CorpusController {
	return &CorpusController{
		catalog: catalog,
		logger:  logger,
	}
}

type TrainRequest struct {
	Text string `json:"text"`
}

type TrainResponse struct {
	CorpusID   string              `json:"corpus_id"`
	TokenCount int                 `json:"token_count"`
	Stats      service.CorpusStats `json:"stats"`
}

// Train retrains a corpus, optionally with text from the request body
func (cc *CorpusController) Train(c *gin.Context) {
	corpusID := c.Param("id")

	var request TrainRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			cc.logger.Warn("Invalid request payload", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request payload",
				"details": err.Error(),
			})
			return
		}
	}

	trained, err := cc.catalog.Train(c.Request.Context(), corpusID, request.Text)
	if err != nil {
		respondError(c, cc.logger, "Failed to train corpus", err)
		return
	}

	cm, err := cc.catalog.Manager(c.Request.Context(), corpusID)
	if err != nil {
		respondError(c, cc.logger, "Failed to train corpus", err)
		return
	}

	c.JSON(http.StatusOK, TrainResponse{
		CorpusID:   trained.CorpusID,
		TokenCount: trained.TokenCount,
		Stats:      cm.Stats(),
	})
}

// List returns the corpus catalog
func (cc *CorpusController) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default": cc.catalog.DefaultID(),
		"corpora": cc.catalog.List(),
	})
}

type NGramQuery struct {
	CorpusID string `form:"corpus"`
	Order    int    `form:"order" binding:"omitempty,min=2,max=4"`
	Token    string `form:"token"`
	Limit    int    `form:"limit" binding:"omitempty,min=1"`
}

type NGramResponse struct {
	CorpusID      string        `json:"corpus_id"`
	Order         int           `json:"order"`
	Token         string        `json:"token,omitempty"`
	ResolvedToken string        `json:"resolved_token,omitempty"`
	Total         int           `json:"total"`
	NGrams        []ngram.Entry `json:"ngrams"`
}

// NGrams lists learned n-grams of one order. With a token only the n-grams
// whose context ends with that token, after fuzzy resolution, are returned.
func (cc *CorpusController) NGrams(c *gin.Context) {
	var query NGramQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		cc.logger.Warn("Invalid query", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query",
			"details": err.Error(),
		})
		return
	}
	if query.CorpusID == "" {
		query.CorpusID = cc.catalog.DefaultID()
	}
	if query.Order == 0 {
		query.Order = session.MinOrder
	}

	cm, err := cc.catalog.Manager(c.Request.Context(), query.CorpusID)
	if err != nil {
		respondError(c, cc.logger, "Failed to load corpus", err)
		return
	}
	m, ok := cm.Models().Get(query.Order)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Model not found",
			"details": "no model of the requested order",
		})
		return
	}

	response := NGramResponse{CorpusID: query.CorpusID, Order: query.Order, Token: query.Token}
	if query.Token == "" {
		response.NGrams = m.AllNGrams()
	} else if resolved, ok := m.ResolveToken(m.Tokenizer().Normalize(query.Token)); ok {
		response.ResolvedToken = resolved
		response.NGrams = m.NGramsFrom(resolved)
	} else {
		response.NGrams = []ngram.Entry{}
	}

	response.Total = len(response.NGrams)
	if query.Limit > 0 && len(response.NGrams) > query.Limit {
		response.NGrams = response.NGrams[:query.Limit]
	}
	c.JSON(http.StatusOK, response)
}

// respondError maps lookup failures to 404 and everything else to 500
func respondError(c *gin.Context, logger *zap.Logger, message string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, config.ErrCorpusNotFound) || errors.Is(err, session.ErrSessionNotFound) {
		status = http.StatusNotFound
		logger.Warn(message, zap.Error(err))
	} else {
		logger.Error(message, zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
