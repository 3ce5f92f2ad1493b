package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/draftkiller/backend/internal/chat"
	"github.com/draftkiller/backend/internal/common"
	"github.com/draftkiller/backend/internal/httpapi/middleware"
	"github.com/draftkiller/backend/internal/usage"
)

const maxMessageLen = 10000

type streamReq struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

func (h *Handler) StreamAnalysis(c *gin.Context) {
	var req streamReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "message required")
		return
	}
	if len(req.Message) > maxMessageLen {
		common.Fail(c, http.StatusBadRequest, 10003, "message too long")
		return
	}

	id := chat.Identity{
		UserID:    middleware.UserIDFromContext(c),
		SessionID: middleware.SessionIDFromContext(c),
	}

	var convID *uuid.UUID
	if req.ConversationID != "" {
		parsed, err := uuid.Parse(req.ConversationID)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10004, "invalid conversation id")
			return
		}
		convID = &parsed
	}

	ctx := c.Request.Context()
	events, err := h.ChatSvc.StreamAnalysis(ctx, id, chat.StreamRequest{
		Message:        req.Message,
		ConversationID: convID,
	})
	if errors.Is(err, chat.ErrConversationNotFound) {
		common.Fail(c, http.StatusNotFound, 40004, "conversation not found")
		return
	}
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to start analysis")
		return
	}

	h.trackUsage(c, id)

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	// avoid gin writing a JSON response later
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"streaming unsupported\"}\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	// heartbeat ticker (keeps connections alive)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeJSON(string(ev.Type), ev)
			if ev.Type == chat.EventError || ev.Type == chat.EventDone {
				return
			}

		case <-ticker.C:
			writeJSON("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})

		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) trackUsage(c *gin.Context, id chat.Identity) {
	if h.Tracker == nil {
		return
	}
	ev := usage.Event{
		EventID:   common.NewULID(),
		Endpoint:  c.FullPath(),
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
	if id.Anonymous() {
		sid := id.SessionID
		ev.SessionID = &sid
	} else {
		uid := id.UserID
		ev.UserID = &uid
	}
	h.Tracker.Track(c.Request.Context(), ev)
}

func (h *Handler) ListConversations(c *gin.Context) {
	uid := middleware.UserIDFromContext(c)

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	convs, err := h.ChatSvc.ListConversations(c.Request.Context(), uid, limit, offset)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list conversations")
		return
	}

	common.OK(c, gin.H{"conversations": convs})
}

func (h *Handler) GetConversation(c *gin.Context) {
	uid := middleware.UserIDFromContext(c)

	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid conversation id")
		return
	}

	conv, err := h.ChatSvc.GetConversation(c.Request.Context(), uid, convID)
	if errors.Is(err, chat.ErrConversationNotFound) {
		common.Fail(c, http.StatusNotFound, 40004, "conversation not found")
		return
	}
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to load conversation")
		return
	}

	common.OK(c, conv)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	uid := middleware.UserIDFromContext(c)

	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid conversation id")
		return
	}

	err = h.ChatSvc.DeleteConversation(c.Request.Context(), uid, convID)
	if errors.Is(err, chat.ErrConversationNotFound) {
		common.Fail(c, http.StatusNotFound, 40004, "conversation not found")
		return
	}
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to delete conversation")
		return
	}

	common.OK(c, gin.H{"deleted": convID})
}
