package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Skufu/medassist/internal/assistant"
	"github.com/Skufu/medassist/internal/extract"
	"github.com/Skufu/medassist/internal/llm"
)

type handlers struct {
	deps Deps
	log  zerolog.Logger
}

type chatRequest struct {
	Question *string `json:"question"`
}

func (h *handlers) session(c *gin.Context) (*assistant.Session, bool) {
	s, err := h.deps.Sessions.Get(c.Request.Context(), strings.TrimSpace(c.GetHeader(SessionHeader)))
	if err != nil {
		if errors.Is(err, assistant.ErrInvalidSession) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return nil, false
		}
		h.log.Error().Err(err).Msg("load session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load conversation"})
		return nil, false
	}
	c.Header(SessionHeader, s.ID)
	return s, true
}

func (h *handlers) newSession(c *gin.Context) {
	s, err := h.deps.Sessions.New(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("new session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start conversation"})
		return
	}
	c.Header(SessionHeader, s.ID)
	c.JSON(http.StatusCreated, gin.H{"session_id": s.ID})
}

func (h *handlers) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Question == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	input := strings.TrimSpace(*req.Question)
	if assistant.IsSentinel(input) {
		if h.deps.OnSentinel != nil {
			h.deps.OnSentinel()
		}
		c.JSON(http.StatusOK, gin.H{"message": assistant.Farewell})
		return
	}

	s, ok := h.session(c)
	if !ok {
		return
	}
	reply, err := h.deps.Gateway.Respond(c.Request.Context(), s, input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

func (h *handlers) analyzeReport(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a PDF file is required in the 'file' field"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		c.JSON(http.StatusOK, gin.H{"error": "Only PDF files are supported."})
		return
	}

	s, ok := h.session(c)
	if !ok {
		return
	}

	tmp, err := os.CreateTemp(h.deps.UploadDir, "report-*.pdf")
	if err != nil {
		h.log.Error().Err(err).Msg("create upload file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store upload"})
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		h.log.Error().Err(err).Msg("save upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store upload"})
		return
	}

	analysis, err := h.deps.Reports.Analyze(c.Request.Context(), s, tmpPath)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info().Str("file", filepath.Base(file.Filename)).Str("strategy", string(analysis.Strategy)).Msg("report analyzed")

	c.JSON(http.StatusOK, gin.H{
		"extracted_data": analysis.ExtractedData,
		"ai_analysis":    analysis.AIAnalysis,
	})
}

// fail maps domain errors onto HTTP responses.
func (h *handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, extract.ErrUnreadableDocument):
		msg = "the uploaded document could not be read"
	case errors.Is(err, llm.ErrUpstream), errors.Is(err, llm.ErrEmptyReply):
		status = http.StatusBadGateway
		msg = "the language model is unavailable"
	}
	h.log.Error().Err(err).Int("status", status).Msg("request failed")
	c.JSON(status, gin.H{"error": msg})
}
