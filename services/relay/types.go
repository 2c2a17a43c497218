package relay

// ChatMessage 聊天请求中的单条消息
type ChatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Images    []string   `json:"images,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall 聊天消息中的工具调用
type ToolCall struct {
	Function struct {
		Name      string      `json:"name"`
		Arguments interface{} `json:"arguments"`
	} `json:"function"`
}

// ChatRequest Ollama /api/chat 请求体
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   *bool         `json:"stream,omitempty"`
	Format   interface{}   `json:"format,omitempty"`
	Options  interface{}   `json:"options,omitempty"`
}

// GenerateRequest Ollama /api/generate 请求体
type GenerateRequest struct {
	Model   string      `json:"model"`
	Prompt  string      `json:"prompt"`
	Stream  *bool       `json:"stream,omitempty"`
	Format  interface{} `json:"format,omitempty"`
	Options interface{} `json:"options,omitempty"`
	Images  []string    `json:"images,omitempty"`
}

// EmbedRequest Ollama /api/embed 请求体
type EmbedRequest struct {
	Model   string      `json:"model"`
	Input   interface{} `json:"input"`
	Options interface{} `json:"options,omitempty"`
}

// CreateRequest Ollama /api/create 请求体
type CreateRequest struct {
	Model  string `json:"model"`
	From   string `json:"from,omitempty"`
	Stream *bool  `json:"stream,omitempty"`
}

// ChatResponse Ollama /api/chat 响应（最后一个分块携带统计信息）
type ChatResponse struct {
	Model           string      `json:"model"`
	CreatedAt       string      `json:"created_at"`
	Message         ChatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason,omitempty"`
	TotalDuration   int64       `json:"total_duration"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// GenerateResponse Ollama /api/generate 响应
type GenerateResponse struct {
	Model           string `json:"model"`
	CreatedAt       string `json:"created_at"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason,omitempty"`
	TotalDuration   int64  `json:"total_duration"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// EmbedResponse Ollama /api/embed 响应
type EmbedResponse struct {
	Model           string      `json:"model"`
	Embeddings      [][]float32 `json:"embeddings"`
	TotalDuration   int64       `json:"total_duration"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}
