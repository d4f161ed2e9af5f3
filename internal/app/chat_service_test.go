package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"docuchat/internal/ai"
	"docuchat/internal/model"
	"docuchat/internal/pkg/docload"
	"docuchat/internal/rag"
)

type fakeConversationStore struct {
	conversations map[uint]*model.Conversation
	nextID        uint
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{conversations: make(map[uint]*model.Conversation)}
}

func (f *fakeConversationStore) Create(c *model.Conversation) error {
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt = time.Now()
	f.conversations[c.ID] = c
	return nil
}

func (f *fakeConversationStore) ListByUserID(userID uint) ([]model.Conversation, error) {
	var out []model.Conversation
	for _, c := range f.conversations {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConversationStore) GetByIDAndUserID(id, userID uint) (*model.Conversation, error) {
	c, ok := f.conversations[id]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (f *fakeConversationStore) SetActiveDocument(conversationID, documentID uint) error {
	c, ok := f.conversations[conversationID]
	if !ok {
		return errors.New("not found")
	}
	id := documentID
	c.ActiveDocumentID = &id
	return nil
}

func (f *fakeConversationStore) UpdateTitle(conversationID uint, title string) error {
	c, ok := f.conversations[conversationID]
	if !ok {
		return errors.New("not found")
	}
	c.Title = title
	return nil
}

func (f *fakeConversationStore) DeleteByIDAndUserID(id, userID uint) error {
	delete(f.conversations, id)
	return nil
}

type fakeMessageStore struct {
	messages []model.ChatMessage
	nextID   uint
}

func (f *fakeMessageStore) Create(m *model.ChatMessage) error {
	f.nextID++
	m.ID = f.nextID
	m.CreatedAt = time.Now()
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeMessageStore) ListByConversationID(conversationID uint, limit int) ([]model.ChatMessage, error) {
	var out []model.ChatMessage
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMessageStore) ListRecentText(conversationID uint, limit int) ([]model.ChatMessage, error) {
	var out []model.ChatMessage
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.MessageType == model.MessageTypeText {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMessageStore) ListDocumentEvents(conversationID uint) ([]model.ChatMessage, error) {
	var out []model.ChatMessage
	for _, m := range f.messages {
		if m.ConversationID == conversationID && m.MessageType == model.MessageTypeDocument {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) DeleteByConversationID(conversationID uint) error {
	kept := f.messages[:0]
	for _, m := range f.messages {
		if m.ConversationID != conversationID {
			kept = append(kept, m)
		}
	}
	f.messages = kept
	return nil
}

type fakeDocumentStore struct {
	documents []model.Document
	nextID    uint
}

func (f *fakeDocumentStore) Create(doc *model.Document) error {
	f.nextID++
	doc.ID = f.nextID
	doc.CreatedAt = time.Now()
	f.documents = append(f.documents, *doc)
	return nil
}

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeCompleter) Model() string { return "test-model" }

type fakeRunLogPublisher struct {
	logs []model.RunLog
}

func (f *fakeRunLogPublisher) Publish(ctx context.Context, runLog model.RunLog) error {
	f.logs = append(f.logs, runLog)
	return nil
}

type testEnv struct {
	service       *ChatService
	conversations *fakeConversationStore
	messages      *fakeMessageStore
	documents     *fakeDocumentStore
	completer     *fakeCompleter
	runLogs       *fakeRunLogPublisher
}

func newTestEnv() *testEnv {
	env := &testEnv{
		conversations: newFakeConversationStore(),
		messages:      &fakeMessageStore{},
		documents:     &fakeDocumentStore{},
		completer:     &fakeCompleter{reply: "a plain answer"},
		runLogs:       &fakeRunLogPublisher{},
	}
	env.service = NewChatService(
		env.conversations,
		env.messages,
		env.documents,
		rag.NewMemoryStore(),
		env.completer,
		nil,
		env.runLogs,
		ChatServiceOptions{},
	)
	return env
}

func (e *testEnv) createConversation(t *testing.T, userID uint) *model.Conversation {
	t.Helper()
	conversation, err := e.service.CreateConversation(CreateConversationInput{UserID: userID})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	return conversation
}

func (e *testEnv) upload(t *testing.T, userID, conversationID uint, name, text string) *UploadDocumentResult {
	t.Helper()
	result, err := e.service.UploadDocument(context.Background(), UploadDocumentInput{
		UserID:         userID,
		ConversationID: conversationID,
		FileName:       name,
		Data:           []byte(text),
	})
	if err != nil {
		t.Fatalf("UploadDocument(%s): %v", name, err)
	}
	return result
}

func TestUploadDocumentIngestion(t *testing.T) {
	env := newTestEnv()
	conversation := env.createConversation(t, 1)

	result := env.upload(t, 1, conversation.ID, "alpha_notes.txt", "the alpha launch plan covers telemetry and budget")

	if result.Document.FileName != "alpha_notes.txt" {
		t.Errorf("unexpected file name %q", result.Document.FileName)
	}
	if result.ChunkCount != 1 {
		t.Errorf("expected 1 chunk, got %d", result.ChunkCount)
	}

	stored := env.conversations.conversations[conversation.ID]
	if stored.ActiveDocumentID == nil || *stored.ActiveDocumentID != result.Document.ID {
		t.Error("upload should switch the active document")
	}

	events, _ := env.messages.ListDocumentEvents(conversation.ID)
	if len(events) != 1 || events[0].UploadedFileName != "alpha_notes.txt" {
		t.Fatalf("expected one upload event, got %+v", events)
	}
	if events[0].DocumentID == nil || *events[0].DocumentID != result.Document.ID {
		t.Error("upload event should reference the document")
	}
}

func TestUploadDocumentUnsupportedFormat(t *testing.T) {
	env := newTestEnv()
	conversation := env.createConversation(t, 1)

	_, err := env.service.UploadDocument(context.Background(), UploadDocumentInput{
		UserID:         1,
		ConversationID: conversation.ID,
		FileName:       "image.png",
		Data:           []byte("data"),
	})
	if !errors.Is(err, docload.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if len(env.documents.documents) != 0 {
		t.Error("failed ingestion should not create a document")
	}
	if len(env.messages.messages) != 0 {
		t.Error("failed ingestion should not log an upload event")
	}
}

func TestUploadDocumentEmptyText(t *testing.T) {
	env := newTestEnv()
	conversation := env.createConversation(t, 1)

	_, err := env.service.UploadDocument(context.Background(), UploadDocumentInput{
		UserID:         1,
		ConversationID: conversation.ID,
		FileName:       "blank.txt",
		Data:           []byte("   \n \t "),
	})
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestSendMessageUsesActiveDocument(t *testing.T) {
	env := newTestEnv()
	conversation := env.createConversation(t, 1)
	env.upload(t, 1, conversation.ID, "alpha_notes.txt", "the alpha launch plan covers telemetry and budget")
	env.upload(t, 1, conversation.ID, "crew_roster.txt", "the crew roster lists pilots and engineers")

	result, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         1,
		ConversationID: conversation.ID,
		Content:        "what does it say?",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	prompt := env.completer.prompts[0]
	if !strings.Contains(prompt, "crew roster") {
		t.Error("prompt should carry the active document's content")
	}
	if strings.Contains(prompt, "alpha launch plan") {
		t.Error("prompt must not include other documents' content")
	}
	if result.DocumentID == nil || *result.DocumentID != 2 {
		t.Errorf("expected resolution to document 2, got %v", result.DocumentID)
	}
}

func TestSendMessageOrdinalReference(t *testing.T) {
	env := newTestEnv()
	conversation := env.createConversation(t, 1)
	env.upload(t, 1, conversation.ID, "alpha_notes.txt", "the alpha launch plan covers telemetry and budget")
	env.upload(t, 1, conversation.ID, "crew_roster.txt", "the crew roster lists pilots and engineers")

	result, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         1,
		ConversationID: conversation.ID,
		Content:        "what is in the first document?",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	prompt := env.completer.prompts[0]
	if !strings.Contains(prompt, "alpha launch plan") {
		t.Error("ordinal reference should retrieve the first document")
	}
	if strings.Contains(prompt, "crew roster") {
		t.Error("retrieval leaked across documents")
	}
	if result.DocumentID == nil || *result.DocumentID != 1 {
		t.Errorf("expected document 1, got %v", result.DocumentID)
	}
}

func TestSendMessagePersistsCleanedReply(t *testing.T) {
	env := newTestEnv()
	env.completer.reply = "**Bold** claim\n\n\n\nwith markup"
	conversation := env.createConversation(t, 1)

	result, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         1,
		ConversationID: conversation.ID,
		Content:        "hello",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if result.Message.BotReply != "Bold claim\n\nwith markup" {
		t.Errorf("reply should be cleaned, got %q", result.Message.BotReply)
	}
	if result.Message.UserMessage != "hello" {
		t.Errorf("original message should be persisted, got %q", result.Message.UserMessage)
	}

	stored, _ := env.messages.ListRecentText(conversation.ID, 0)
	if len(stored) != 1 {
		t.Fatalf("expected one persisted exchange, got %d", len(stored))
	}
}

func TestSendMessageWordLimitRewrite(t *testing.T) {
	env := newTestEnv()
	conversation := env.createConversation(t, 1)

	result, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         1,
		ConversationID: conversation.ID,
		Content:        "tell me a story in 25 words",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if !strings.Contains(env.completer.prompts[0], "exactly 25 words") {
		t.Error("prompt should carry the exact word-count demand")
	}
	if result.Message.UserMessage != "tell me a story in 25 words" {
		t.Error("the rewrite must not leak into the persisted message")
	}
}

func TestSendMessageHistoryInPrompt(t *testing.T) {
	env := newTestEnv()
	conversation := env.createConversation(t, 1)

	for _, content := range []string{"my name is Ada", "I work on compilers"} {
		if _, err := env.service.SendMessage(context.Background(), SendMessageInput{
			UserID:         1,
			ConversationID: conversation.ID,
			Content:        content,
		}); err != nil {
			t.Fatalf("SendMessage(%q): %v", content, err)
		}
	}

	_, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         1,
		ConversationID: conversation.ID,
		Content:        "what is my name?",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	prompt := env.completer.prompts[2]
	if !strings.Contains(prompt, "User: my name is Ada") {
		t.Error("prompt should include earlier exchanges")
	}
	if !strings.Contains(prompt, "Bot: a plain answer") {
		t.Error("prompt should include earlier replies")
	}
}

func TestSendMessageProviderFailureDiscardsTurn(t *testing.T) {
	env := newTestEnv()
	env.completer.err = &ai.ProviderError{StatusCode: 503, Message: "overloaded"}
	conversation := env.createConversation(t, 1)

	_, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         1,
		ConversationID: conversation.ID,
		Content:        "hello",
	})

	var providerErr *ai.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if stored, _ := env.messages.ListRecentText(conversation.ID, 0); len(stored) != 0 {
		t.Error("failed turn must not persist any message")
	}
	if len(env.runLogs.logs) != 1 || env.runLogs.logs[0].Status != model.RunStatusFailed {
		t.Fatalf("expected one failed run log, got %+v", env.runLogs.logs)
	}
}

func TestSendMessageSuccessRunLog(t *testing.T) {
	env := newTestEnv()
	conversation := env.createConversation(t, 1)

	if _, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         1,
		ConversationID: conversation.ID,
		Content:        "hello",
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if len(env.runLogs.logs) != 1 {
		t.Fatalf("expected one run log, got %d", len(env.runLogs.logs))
	}
	entry := env.runLogs.logs[0]
	if entry.Status != model.RunStatusSuccess || entry.Model != "test-model" || entry.PromptChars == 0 {
		t.Errorf("unexpected run log %+v", entry)
	}
}

func TestSendMessageAutoTitle(t *testing.T) {
	env := newTestEnv()
	conversation := env.createConversation(t, 1)

	long := strings.Repeat("题", 50)
	if _, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         1,
		ConversationID: conversation.ID,
		Content:        long,
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	title := env.conversations.conversations[conversation.ID].Title
	if title != strings.Repeat("题", 40) {
		t.Errorf("expected 40-rune title, got %q", title)
	}

	// A second message must not retitle.
	if _, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         1,
		ConversationID: conversation.ID,
		Content:        "something else",
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got := env.conversations.conversations[conversation.ID].Title; got != title {
		t.Errorf("title changed on second message: %q", got)
	}
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv()
	conversation := env.createConversation(t, 1)

	if _, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         1,
		ConversationID: conversation.ID,
		Content:        "   ",
	}); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("expected ErrMessageEmpty, got %v", err)
	}

	if _, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         2,
		ConversationID: conversation.ID,
		Content:        "hi",
	}); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound for foreign user, got %v", err)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	env := newTestEnv()
	conversation := env.createConversation(t, 1)
	env.upload(t, 1, conversation.ID, "alpha_notes.txt", "some content here")
	if _, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         1,
		ConversationID: conversation.ID,
		Content:        "hello",
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := env.service.DeleteConversation(1, conversation.ID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if len(env.messages.messages) != 0 {
		t.Error("delete should remove the conversation's messages")
	}
	if err := env.service.DeleteConversation(1, conversation.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound on repeat delete, got %v", err)
	}
}

func TestGetHistoryWithoutCache(t *testing.T) {
	env := newTestEnv()
	conversation := env.createConversation(t, 1)
	env.upload(t, 1, conversation.ID, "alpha_notes.txt", "some content here")
	if _, err := env.service.SendMessage(context.Background(), SendMessageInput{
		UserID:         1,
		ConversationID: conversation.ID,
		Content:        "hello",
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	history, err := env.service.GetHistory(context.Background(), 1, conversation.ID, 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected upload event plus exchange, got %d entries", len(history))
	}
	if !history[0].IsDocumentEvent() || history[1].IsDocumentEvent() {
		t.Error("history should keep upload events interleaved in order")
	}

	if _, err := env.service.GetHistory(context.Background(), 2, conversation.ID, 0); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound for foreign user, got %v", err)
	}
}
