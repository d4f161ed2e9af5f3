package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"docuchat/internal/model"
	"docuchat/internal/pkg/docload"
	"docuchat/internal/pkg/textclean"
	"docuchat/internal/rag"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageEmpty         = errors.New("message content is empty")
	ErrEmptyDocument        = errors.New("document contains no extractable text")
)

const defaultTitle = "New chat"

// ConversationStore, MessageStore and DocumentStore are the persistence
// surfaces the chat service depends on; the gorm repositories satisfy them
// and tests substitute fakes.
type ConversationStore interface {
	Create(conversation *model.Conversation) error
	ListByUserID(userID uint) ([]model.Conversation, error)
	GetByIDAndUserID(id, userID uint) (*model.Conversation, error)
	SetActiveDocument(conversationID, documentID uint) error
	UpdateTitle(conversationID uint, title string) error
	DeleteByIDAndUserID(id, userID uint) error
}

type MessageStore interface {
	Create(message *model.ChatMessage) error
	ListByConversationID(conversationID uint, limit int) ([]model.ChatMessage, error)
	ListRecentText(conversationID uint, limit int) ([]model.ChatMessage, error)
	ListDocumentEvents(conversationID uint) ([]model.ChatMessage, error)
	DeleteByConversationID(conversationID uint) error
}

type DocumentStore interface {
	Create(doc *model.Document) error
}

// ChunkStore is the retrieval contract: at most topK results, an empty store
// yields an empty result, and retrieval is scoped to one document id.
type ChunkStore interface {
	AddTexts(ctx context.Context, documentID uint, texts []string) error
	SimilaritySearch(ctx context.Context, documentID uint, query string, topK int) ([]string, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

type RunLogPublisher interface {
	Publish(ctx context.Context, runLog model.RunLog) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID uint) ([]model.ChatMessage, bool, error)
	SetHistory(ctx context.Context, conversationID uint, messages []model.ChatMessage) error
	DeleteHistory(ctx context.Context, conversationID uint) error
	MarkDirty(ctx context.Context, conversationID uint) error
	IsDirty(ctx context.Context, conversationID uint) (bool, error)
}

// ChatService runs the document-aware chat pipeline: ingestion on upload,
// and per message resolve -> retrieve -> assemble -> complete -> clean ->
// persist.
type ChatService struct {
	conversations ConversationStore
	messages      MessageStore
	documents     DocumentStore
	chunks        ChunkStore
	completer     Completer
	historyCache  HistoryCache
	runLogs       RunLogPublisher

	uploadDir        string
	chunkSize        int
	chunkOverlap     int
	topK             int
	historyExchanges int
}

type ChatServiceOptions struct {
	UploadDir        string
	ChunkSize        int
	ChunkOverlap     int
	TopK             int
	HistoryExchanges int
}

func NewChatService(
	conversations ConversationStore,
	messages MessageStore,
	documents DocumentStore,
	chunks ChunkStore,
	completer Completer,
	historyCache HistoryCache,
	runLogs RunLogPublisher,
	opts ChatServiceOptions,
) *ChatService {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = rag.DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = rag.DefaultChunkOverlap
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.HistoryExchanges <= 0 {
		opts.HistoryExchanges = rag.DefaultHistoryExchanges
	}
	return &ChatService{
		conversations:    conversations,
		messages:         messages,
		documents:        documents,
		chunks:           chunks,
		completer:        completer,
		historyCache:     historyCache,
		runLogs:          runLogs,
		uploadDir:        opts.UploadDir,
		chunkSize:        opts.ChunkSize,
		chunkOverlap:     opts.ChunkOverlap,
		topK:             opts.TopK,
		historyExchanges: opts.HistoryExchanges,
	}
}

type CreateConversationInput struct {
	UserID uint
	Title  string
}

func (s *ChatService) CreateConversation(input CreateConversationInput) (*model.Conversation, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultTitle
	}

	conversation := &model.Conversation{
		UserID: input.UserID,
		Title:  title,
	}
	if err := s.conversations.Create(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *ChatService) ListConversations(userID uint) ([]model.Conversation, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.conversations.ListByUserID(userID)
}

func (s *ChatService) DeleteConversation(userID, conversationID uint) error {
	if userID == 0 || conversationID == 0 {
		return ErrInvalidInput
	}
	conversation, err := s.conversations.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return ErrConversationNotFound
	}
	if err := s.messages.DeleteByConversationID(conversationID); err != nil {
		return err
	}
	if err := s.conversations.DeleteByIDAndUserID(conversationID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(context.Background(), conversationID)
	}
	return nil
}

type UploadDocumentInput struct {
	UserID         uint
	ConversationID uint
	FileName       string
	Data           []byte
}

type UploadDocumentResult struct {
	Document   model.Document `json:"document"`
	ChunkCount int            `json:"chunk_count"`
}

// UploadDocument ingests one uploaded file: extract, persist, chunk, index,
// switch the conversation's active document and log the upload event in the
// message stream. Extraction failures stop ingestion entirely; no partial
// state is created.
func (s *ChatService) UploadDocument(ctx context.Context, input UploadDocumentInput) (*UploadDocumentResult, error) {
	if input.UserID == 0 || input.ConversationID == 0 || strings.TrimSpace(input.FileName) == "" {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversations.GetByIDAndUserID(input.ConversationID, input.UserID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}

	text, err := docload.Load(input.FileName, input.Data)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyDocument
	}

	storedPath, err := s.storeFile(input.FileName, input.Data)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		UserID:        input.UserID,
		FileName:      filepath.Base(input.FileName),
		StoredPath:    storedPath,
		ExtractedText: text,
	}
	if err := s.documents.Create(doc); err != nil {
		return nil, err
	}

	chunks, err := rag.Chunk(text, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return nil, err
	}
	if err := s.chunks.AddTexts(ctx, doc.ID, chunks); err != nil {
		return nil, err
	}

	if err := s.conversations.SetActiveDocument(conversation.ID, doc.ID); err != nil {
		return nil, err
	}

	docID := doc.ID
	event := &model.ChatMessage{
		ConversationID:   conversation.ID,
		UserID:           input.UserID,
		MessageType:      model.MessageTypeDocument,
		UploadedFileName: doc.FileName,
		DocumentID:       &docID,
	}
	if err := s.messages.Create(event); err != nil {
		return nil, err
	}

	s.invalidateHistory(ctx, conversation.ID)

	return &UploadDocumentResult{
		Document:   *doc,
		ChunkCount: len(chunks),
	}, nil
}

func (s *ChatService) storeFile(fileName string, data []byte) (string, error) {
	if s.uploadDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(fileName)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type SendMessageInput struct {
	UserID         uint
	ConversationID uint
	Content        string
}

type SendMessageResult struct {
	Message    model.ChatMessage `json:"message"`
	DocumentID *uint             `json:"document_id,omitempty"`
}

// SendMessage runs one chat turn. On provider failure the turn is discarded
// (no message rows are written) and a failed run log is published; the
// caller decides whether to retry.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	if input.UserID == 0 || input.ConversationID == 0 {
		return nil, ErrInvalidInput
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	conversation, err := s.conversations.GetByIDAndUserID(input.ConversationID, input.UserID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}

	documentID := s.resolveDocument(conversation, content)
	documentContext := s.retrieveContext(ctx, documentID, content)
	historyText := s.buildHistoryText(conversation.ID)
	prompt := rag.BuildPrompt(documentContext, historyText, rag.Instruction(content))

	started := time.Now()
	reply, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		s.publishRunLog(conversation, input.UserID, model.RunStatusFailed, len(prompt), started)
		return nil, err
	}

	reply = textclean.Clean(reply)
	if reply == "" {
		reply = "The model returned an empty response."
	}

	message := &model.ChatMessage{
		ConversationID: conversation.ID,
		UserID:         input.UserID,
		MessageType:    model.MessageTypeText,
		UserMessage:    content,
		BotReply:       reply,
	}
	if err := s.messages.Create(message); err != nil {
		return nil, err
	}

	if conversation.Title == defaultTitle {
		if err := s.conversations.UpdateTitle(conversation.ID, titleFromMessage(content)); err != nil {
			log.Warn().Err(err).Uint("conversation_id", conversation.ID).Msg("auto-title failed")
		}
	}

	s.invalidateHistory(ctx, conversation.ID)
	s.publishRunLog(conversation, input.UserID, model.RunStatusSuccess, len(prompt), started)

	return &SendMessageResult{
		Message:    *message,
		DocumentID: documentID,
	}, nil
}

// resolveDocument maps the message onto a previously uploaded document using
// the upload events of the conversation. A nil result is normal text-only
// operation, never an error.
func (s *ChatService) resolveDocument(conversation *model.Conversation, content string) *uint {
	events, err := s.messages.ListDocumentEvents(conversation.ID)
	if err != nil {
		log.Warn().Err(err).Uint("conversation_id", conversation.ID).Msg("list document events failed")
		return conversation.ActiveDocumentID
	}

	uploads := make([]rag.DocumentRef, 0, len(events))
	for _, ev := range events {
		if ev.DocumentID == nil {
			continue
		}
		uploads = append(uploads, rag.DocumentRef{
			ID:       *ev.DocumentID,
			FileName: ev.UploadedFileName,
		})
	}

	return rag.ResolveDocument(uploads, conversation.ActiveDocumentID, content)
}

// retrieveContext fetches up to topK chunks for the resolved document.
// Retrieval failures degrade to text-only answering.
func (s *ChatService) retrieveContext(ctx context.Context, documentID *uint, query string) string {
	if documentID == nil {
		return ""
	}
	texts, err := s.chunks.SimilaritySearch(ctx, *documentID, query, s.topK)
	if err != nil {
		log.Warn().Err(err).Uint("document_id", *documentID).Msg("chunk retrieval failed")
		return ""
	}
	return strings.Join(texts, "\n\n")
}

func (s *ChatService) buildHistoryText(conversationID uint) string {
	recent, err := s.messages.ListRecentText(conversationID, s.historyExchanges)
	if err != nil {
		log.Warn().Err(err).Uint("conversation_id", conversationID).Msg("load history failed")
		return ""
	}

	exchanges := make([]rag.Exchange, 0, len(recent))
	for _, m := range recent {
		exchanges = append(exchanges, rag.Exchange{
			UserMessage: m.UserMessage,
			BotReply:    m.BotReply,
		})
	}
	return rag.HistoryText(exchanges, s.historyExchanges)
}

// GetHistory returns the conversation's messages, served from the redis
// cache when it is present and clean.
func (s *ChatService) GetHistory(ctx context.Context, userID, conversationID uint, limit int) ([]model.ChatMessage, error) {
	if userID == 0 || conversationID == 0 {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversations.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, conversationID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, conversationID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messages.ListByConversationID(conversationID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, conversationID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, conversationID, messages)
		}
	}
	return messages, nil
}

func (s *ChatService) invalidateHistory(ctx context.Context, conversationID uint) {
	if s.historyCache == nil {
		return
	}
	_ = s.historyCache.MarkDirty(ctx, conversationID)
	_ = s.historyCache.DeleteHistory(ctx, conversationID)
}

func (s *ChatService) publishRunLog(conversation *model.Conversation, userID uint, status string, promptChars int, started time.Time) {
	if s.runLogs == nil {
		return
	}
	runLog := model.RunLog{
		ConversationID: conversation.ID,
		UserID:         userID,
		Model:          s.completer.Model(),
		Status:         status,
		PromptChars:    promptChars,
		DurationMS:     time.Since(started).Milliseconds(),
	}
	if err := s.runLogs.Publish(context.Background(), runLog); err != nil {
		log.Warn().Err(err).Uint("conversation_id", conversation.ID).Msg("publish run log failed")
	}
}

func trimMessages(messages []model.ChatMessage, limit int) []model.ChatMessage {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

func titleFromMessage(content string) string {
	runes := []rune(content)
	if len(runes) > 40 {
		runes = runes[:40]
	}
	return string(runes)
}
