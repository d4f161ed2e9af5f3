package rag

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Exchange is one persisted user/bot turn, used to rebuild chat history.
type Exchange struct {
	UserMessage string
	BotReply    string
}

// DefaultHistoryExchanges caps how many recent text exchanges enter the
// prompt. Document-upload events are excluded upstream.
const DefaultHistoryExchanges = 8

var wordLimitRe = regexp.MustCompile(`(?i)(\d+)\s+words`)

const promptWithDocument = `You are a helpful AI assistant.

DOCUMENT CONTENT:
%s

CHAT HISTORY:
%s

User question:
%s

Rules:
- Answer using document if relevant
- Otherwise use chat history
- Be concise and clear
`

const promptWithoutDocument = `You are a helpful AI assistant.

CHAT HISTORY:
%s

User question:
%s

Rules:
- Use chat history to answer
- If user already stated a fact, remember it
- Answer naturally
`

// HistoryText renders exchanges as alternating "User:" / "Bot:" lines,
// oldest first, keeping only the most recent limit exchanges.
func HistoryText(exchanges []Exchange, limit int) string {
	if limit <= 0 {
		limit = DefaultHistoryExchanges
	}
	if len(exchanges) > limit {
		exchanges = exchanges[len(exchanges)-limit:]
	}

	var b strings.Builder
	for _, ex := range exchanges {
		b.WriteString("User: " + ex.UserMessage + "\n")
		b.WriteString("Bot: " + ex.BotReply + "\n")
	}
	return b.String()
}

// WordLimit extracts an explicit "<number> words" directive from anywhere in
// the message, case-insensitive.
func WordLimit(message string) (int, bool) {
	m := wordLimitRe.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Instruction returns the effective instruction sent to the model. When the
// message carries a word-count directive the instruction is rewritten with a
// strict exact-count demand; the literal message is what gets persisted, the
// rewrite only affects the outgoing prompt.
func Instruction(message string) string {
	n, ok := WordLimit(message)
	if !ok {
		return message
	}
	return fmt.Sprintf(
		"%s\n\nIMPORTANT: Respond with a complete answer of exactly %d words. Count the words carefully; the response must contain exactly %d words, no more and no fewer.",
		message, n, n,
	)
}

// BuildPrompt assembles the final model prompt from the retrieved document
// context, the rendered chat history and the (possibly rewritten) user
// instruction. The result is never persisted.
func BuildPrompt(documentContext, historyText, instruction string) string {
	if strings.TrimSpace(documentContext) != "" {
		return fmt.Sprintf(promptWithDocument, documentContext, historyText, instruction)
	}
	return fmt.Sprintf(promptWithoutDocument, historyText, instruction)
}
