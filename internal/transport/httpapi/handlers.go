package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chat-food/server/internal/agent/model"
	errx "github.com/chat-food/server/internal/core/error"
	logx "github.com/chat-food/server/pkg/logger"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Intent    string `json:"intent"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, err error) {
	c.JSON(errx.StatusOf(err), errorResponse{Error: errx.MessageOf(err)})
}

func (srv *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": HealthVersion,
		"service": ServiceName,
	})
}

// bindChat reads the request and admits it. A request without a session id
// starts a new session whose id is returned to the client.
func (srv *Server) bindChat(c *gin.Context) (model.QueryInput, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return model.QueryInput{}, false
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := srv.limiter.Allow(sessionID); err != nil {
		writeError(c, err)
		return model.QueryInput{}, false
	}
	return model.QueryInput{SessionID: sessionID, Query: req.Message}, true
}

func newChatResponse(reply model.Reply) chatResponse {
	intent := reply.Intent
	if intent == "" {
		intent = reply.Domain
	}
	return chatResponse{
		SessionID: reply.SessionID,
		Reply:     reply.Text,
		Intent:    string(intent),
	}
}

// chat runs one turn.
func (srv *Server) chat(c *gin.Context) {
	in, ok := srv.bindChat(c)
	if !ok {
		return
	}

	reply, err := srv.runner.Invoke(c.Request.Context(), in)
	if err != nil {
		logx.Warn().Err(err).Str("session_id", in.SessionID).Msg("chat turn rejected")
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newChatResponse(reply))
}

type tokenEvent struct {
	Text string `json:"text"`
}

// chatStream runs one turn as server-sent events: a "token" event per chunk
// of the answer, then "done" with the final reply, or "error".
func (srv *Server) chatStream(c *gin.Context) {
	in, ok := srv.bindChat(c)
	if !ok {
		return
	}
	if strings.TrimSpace(in.Query) == "" {
		writeError(c, errx.ErrEmptyQuery)
		return
	}

	type result struct {
		reply model.Reply
		err   error
	}
	ctx := c.Request.Context()
	tokens := make(chan string, 16)
	done := make(chan result, 1)
	go func() {
		defer close(tokens)
		reply, err := srv.runner.Stream(ctx, in, func(chunk string) {
			select {
			case tokens <- chunk:
			case <-ctx.Done():
			}
		})
		done <- result{reply: reply, err: err}
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	for chunk := range tokens {
		c.SSEvent("token", tokenEvent{Text: chunk})
		c.Writer.Flush()
	}

	res := <-done
	if res.err != nil {
		logx.Warn().Err(res.err).Str("session_id", in.SessionID).Msg("chat stream rejected")
		c.SSEvent("error", errorResponse{Error: errx.MessageOf(res.err)})
		return
	}
	c.SSEvent("done", newChatResponse(res.reply))
}

func (srv *Server) resetChat(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := srv.runner.Reset(c.Request.Context(), sessionID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
