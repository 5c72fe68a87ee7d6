package oracle

// ChatRequest is the body sent to the chat endpoint.
type ChatRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []ChatMessage `json:"messages"`
}

// ChatMessage is a single chat turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the subset of the chat endpoint's reply the client reads.
type ChatResponse struct {
	Model   string        `json:"model,omitempty"`
	Message *ReplyMessage `json:"message"`
	Done    bool          `json:"done,omitempty"`
}

// ReplyMessage is the assistant turn of a reply. Content is nil when the
// field is absent or null.
type ReplyMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}
