package pipeline

// Status is the terminal outcome a step records for itself on shared state.
// The zero value means the owning step has not run yet.
type Status string

const (
	StatusUnset   Status = ""
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Message roles for conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reference points back at a stored chunk that supported an answer.
type Reference struct {
	OriginalFilename string  `json:"original_filename"`
	FilePath         string  `json:"file_path,omitempty"`
	ChunkIndex       int     `json:"chunk_index"`
	Score            float32 `json:"score"`
	Snippet          string  `json:"snippet,omitempty"`
}

// State is the single record threaded through every step of a run. Steps
// receive it by value and return a derived copy; no step may retain a
// reference to it after returning. Each field is written by exactly one
// owning step but may be read by any later step. JSON tags double as the
// checkpoint serialization schema.
type State struct {
	// Input, set by the caller before the run.
	FilePath         string `json:"file_path,omitempty"`
	OriginalFilename string `json:"original_filename,omitempty"`

	// Extraction.
	DocText          string `json:"doc_text,omitempty"`
	ExtractionMethod string `json:"extraction_method,omitempty"`
	ExtractionStatus Status `json:"extraction_status,omitempty"`

	// Chunking.
	DocChunks      []string `json:"doc_chunks,omitempty"`
	ChunkingStatus Status   `json:"chunking_status,omitempty"`

	// Embedding. Index-aligned with DocChunks.
	DocEmbeddings   [][]float32 `json:"doc_embeddings,omitempty"`
	EmbeddingStatus Status      `json:"embedding_status,omitempty"`

	// Classification.
	PredictedCategory        string `json:"predicted_category,omitempty"`
	CategoryPredictionStatus Status `json:"category_prediction_status,omitempty"`

	// Storage. StoredChunks counts writes that made it to the vector store;
	// on a mid-sequence failure it is smaller than len(DocChunks).
	StoredChunks  int    `json:"stored_chunks,omitempty"`
	StorageStatus Status `json:"storage_status,omitempty"`

	// Chat. Messages is append-only across turns of one thread.
	Query          string      `json:"query,omitempty"`
	Response       string      `json:"response,omitempty"`
	ResponseStatus Status      `json:"response_status,omitempty"`
	Messages       []Message   `json:"messages,omitempty"`
	References     []Reference `json:"references,omitempty"`
}

// Clone deep-copies the state so that checkpoint stores and concurrent
// readers never alias a live run's slices.
func (s State) Clone() State {
	out := s
	if s.DocChunks != nil {
		out.DocChunks = append([]string(nil), s.DocChunks...)
	}
	if s.DocEmbeddings != nil {
		out.DocEmbeddings = make([][]float32, len(s.DocEmbeddings))
		for i, v := range s.DocEmbeddings {
			out.DocEmbeddings[i] = append([]float32(nil), v...)
		}
	}
	if s.Messages != nil {
		out.Messages = append([]Message(nil), s.Messages...)
	}
	if s.References != nil {
		out.References = append([]Reference(nil), s.References...)
	}
	return out
}

// AppendTurn appends one user entry and one assistant entry to the
// conversation history, in that order.
func (s State) AppendTurn(query, answer string) State {
	msgs := make([]Message, 0, len(s.Messages)+2)
	msgs = append(msgs, s.Messages...)
	msgs = append(msgs,
		Message{Role: RoleUser, Content: query},
		Message{Role: RoleAssistant, Content: answer},
	)
	s.Messages = msgs
	return s
}
