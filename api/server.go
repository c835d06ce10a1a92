// Package api exposes the question service over HTTP with gin.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/creastat/quizstore"
	"github.com/creastat/quizstore/auth"
	"github.com/creastat/quizstore/notify"
	"github.com/creastat/quizstore/quiz"
	"github.com/creastat/quizstore/ratelimit"
)

// Service is the part of quiz.Service the handlers use.
type Service interface {
	List(ctx context.Context, params quiz.ListParams) ([]quizstore.Question, error)
	Create(ctx context.Context, q quizstore.Question) (*quiz.CreateResult, error)
	CreateBulk(ctx context.Context, questions []quizstore.Question) (*quiz.BulkResult, error)
	Health(ctx context.Context) []quiz.CheckResult
}

// Config holds the router dependencies. Every field except Logger is required.
type Config struct {
	Service Service
	Limiter ratelimit.Checker
	Auth    *auth.Manager
	Feed    *notify.Poller
	Logger  logrus.FieldLogger
}

// Handler serves the HTTP API.
type Handler struct {
	service Service
	limiter ratelimit.Checker
	auth    *auth.Manager
	feed    *notify.Poller
	logger  logrus.FieldLogger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	h := &Handler{
		service: cfg.Service,
		limiter: cfg.Limiter,
		auth:    cfg.Auth,
		feed:    cfg.Feed,
		logger:  cfg.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(h.logger))

	r.GET("/_health", h.rateLimit(http.StatusServiceUnavailable), h.health)

	questions := r.Group("/questions")
	questions.GET("", h.rateLimit(http.StatusTooManyRequests), h.listQuestions)
	questions.GET("/feed", h.questionFeed)
	questions.POST("", h.requireAdmin(), h.createQuestion)
	questions.POST("/bulk", h.requireAdmin(), h.createQuestionsBulk)

	return r
}

func (h *Handler) health(c *gin.Context) {
	results := h.service.Health(c.Request.Context())
	if !quiz.Healthy(results) {
		failed := gin.H{}
		for _, r := range results {
			if r.Err != nil {
				failed[r.Name] = "unavailable"
			}
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}
