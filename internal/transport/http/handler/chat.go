package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docuchat/internal/ai"
	"docuchat/internal/app"
	"docuchat/internal/pkg/docload"
	"docuchat/internal/transport/http/middleware"
	"docuchat/internal/transport/http/response"
)

type ChatHandler struct {
	chatService   *app.ChatService
	maxUploadSize int64
}

func NewChatHandler(chatService *app.ChatService, maxUploadSizeMB int) *ChatHandler {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = 10
	}
	return &ChatHandler{
		chatService:   chatService,
		maxUploadSize: int64(maxUploadSizeMB) << 20,
	}
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, "invalid request body")
		return
	}

	conversation, err := h.chatService.CreateConversation(app.CreateConversationInput{
		UserID: userID,
		Title:  req.Title,
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "create conversation failed")
		return
	}
	response.OK(c, conversation)
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	conversations, err := h.chatService.ListConversations(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "list conversations failed")
		return
	}
	response.OK(c, conversations)
}

func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	conversationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.chatService.DeleteConversation(userID, conversationID); err != nil {
		if errors.Is(err, app.ErrConversationNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeNotFound, "conversation not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "delete conversation failed")
		return
	}
	response.OK(c, nil)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	conversationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, "invalid limit")
			return
		}
		limit = parsed
	}

	messages, err := h.chatService.GetHistory(c.Request.Context(), userID, conversationID, limit)
	if err != nil {
		if errors.Is(err, app.ErrConversationNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeNotFound, "conversation not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "load history failed")
		return
	}
	response.OK(c, messages)
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	conversationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, "invalid request body")
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), app.SendMessageInput{
		UserID:         userID,
		ConversationID: conversationID,
		Content:        req.Content,
	})
	if err != nil {
		h.writeSendError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *ChatHandler) writeSendError(c *gin.Context, err error) {
	var providerErr *ai.ProviderError
	switch {
	case errors.Is(err, app.ErrConversationNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "conversation not found")
	case errors.Is(err, app.ErrMessageEmpty), errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, "message content is required")
	case errors.As(err, &providerErr):
		response.Error(c, http.StatusBadGateway, response.CodeUpstream, "llm provider request failed")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "send message failed")
	}
}

func (h *ChatHandler) UploadDocument(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	conversationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, "file field is required")
		return
	}
	if fileHeader.Size > h.maxUploadSize {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooBig, "file exceeds upload size limit")
		return
	}
	if !docload.Supported(fileHeader.Filename) {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, "unsupported file format, expected pdf, docx or txt")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, "cannot read uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, "cannot read uploaded file")
		return
	}
	if int64(len(data)) > h.maxUploadSize {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooBig, "file exceeds upload size limit")
		return
	}

	result, err := h.chatService.UploadDocument(c.Request.Context(), app.UploadDocumentInput{
		UserID:         userID,
		ConversationID: conversationID,
		FileName:       fileHeader.Filename,
		Data:           data,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrConversationNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, "conversation not found")
		case errors.Is(err, docload.ErrUnsupportedFormat), errors.Is(err, app.ErrEmptyDocument):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternal, "document ingestion failed")
		}
		return
	}
	response.OK(c, result)
}

func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidParam, "invalid "+name)
		return 0, false
	}
	return uint(parsed), true
}
