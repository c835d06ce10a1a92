package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/creastat/quizstore"
	"github.com/creastat/quizstore/postgres"
	"github.com/creastat/quizstore/quiz"
)

// maxUploadBytes bounds the bulk upload body.
const maxUploadBytes = 8 << 20

func (h *Handler) listQuestions(c *gin.Context) {
	limit, err := queryInt(c, "limit", postgres.DefaultLimit)
	if err != nil || limit < 1 {
		abort(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		abort(c, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	difficulty := quizstore.Difficulty(c.Query("difficulty"))
	if difficulty != "" && !difficulty.Valid() {
		abort(c, http.StatusBadRequest, "difficulty must be one of easy, medium, hard")
		return
	}

	questions, err := h.service.List(c.Request.Context(), quiz.ListParams{
		Limit:      limit,
		Offset:     offset,
		Difficulty: difficulty,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if questions == nil {
		questions = []quizstore.Question{}
	}
	c.JSON(http.StatusOK, questions)
}

func (h *Handler) createQuestion(c *gin.Context) {
	// Decoded without gin binding: validation is the service's job.
	var q quizstore.Question
	if err := json.NewDecoder(c.Request.Body).Decode(&q); err != nil {
		abort(c, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.service.Create(c.Request.Context(), q)
	if err != nil {
		var dw *quiz.DualWriteError
		if errors.As(err, &dw) {
			h.logger.WithError(err).WithField("question_id", dw.QuestionID).Error("dual write incomplete")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":       "question stored but not mirrored to the document store",
				"question_id": dw.QuestionID,
			})
			return
		}
		h.failWrite(c, err)
		return
	}

	c.JSON(http.StatusCreated, res.Question)
}

type bulkResponse struct {
	InsertedIDs   []int64  `json:"inserted_ids"`
	SkippedRows   []int    `json:"skipped_rows"`
	DocumentIDs   []string `json:"document_ids"`
	DocumentError string   `json:"document_error,omitempty"`
	Enqueued      int      `json:"enqueued"`
	EnqueueError  string   `json:"enqueue_error,omitempty"`
	Error         string   `json:"error,omitempty"`
}

func (h *Handler) createQuestionsBulk(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		abort(c, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		h.failWrite(c, err)
		return
	}
	defer file.Close()

	questions, err := quiz.ParseUpload(file)
	if err != nil {
		h.failWrite(c, err)
		return
	}

	res, err := h.service.CreateBulk(c.Request.Context(), questions)
	if res == nil {
		h.failWrite(c, err)
		return
	}

	body := bulkResponse{
		InsertedIDs: res.InsertedIDs,
		SkippedRows: res.Skipped,
		DocumentIDs: res.DocumentIDs,
		Enqueued:    res.Enqueued,
	}
	if body.InsertedIDs == nil {
		body.InsertedIDs = []int64{}
	}
	if body.SkippedRows == nil {
		body.SkippedRows = []int{}
	}
	if res.DocumentErr != nil {
		body.DocumentError = res.DocumentErr.Error()
	}
	if res.EnqueueErr != nil {
		body.EnqueueError = res.EnqueueErr.Error()
	}

	status := http.StatusOK
	if err != nil {
		h.logger.WithError(err).WithField("inserted", len(res.InsertedIDs)).Error("bulk insert stopped early")
		body.Error = "bulk insert stopped early"
		status = http.StatusInternalServerError
	}
	c.JSON(status, body)
}

// failWrite maps a write error to a response. Anything but rejected input is
// a 500, unavailable dependencies included.
func (h *Handler) failWrite(c *gin.Context, err error) {
	if errors.Is(err, quizstore.ErrValidation) || errors.Is(err, quizstore.ErrConstraint) {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.WithError(err).Error("write failed")
	abort(c, http.StatusInternalServerError, "internal server error")
}

// fail maps a read error to a response.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, quizstore.ErrValidation), errors.Is(err, quizstore.ErrConstraint):
		abort(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, quizstore.ErrNotFound):
		abort(c, http.StatusNotFound, err.Error())
	case errors.Is(err, quizstore.ErrUnavailable):
		h.logger.WithError(err).Error("dependency unavailable")
		abort(c, http.StatusServiceUnavailable, "service unavailable")
	default:
		h.logger.WithError(err).Error("request failed")
		abort(c, http.StatusInternalServerError, "internal server error")
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
