package llm

// Message represents a single message sent to the model.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// ModelCapabilities describes what a model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int
}

// UserMessage is shorthand for a single "user" message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// EstimateTokens returns a rough token estimate for text (~4 characters per
// token). It never undercounts by much for Latin-script prompts and is used
// only for logging and prompt budget warnings.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
