package domain

import "time"

// Page is the raw unit of an upload request before chunking.
type Page struct {
	PageKey int    `json:"page_key"`
	Text    string `json:"text"`
}

// DocumentChunk is one stored vector-index point of a user's corpus.
// Within a book, (PageOrder, ChunkOrder) defines a total order used to
// reconstruct the original page sequence; DocumentOrder breaks ties
// across the whole corpus.
type DocumentChunk struct {
	Content         string `json:"content"`
	UserID          string `json:"user_id"`
	BookID          string `json:"book_id"`
	PageKey         int    `json:"page_key"`
	ChunkOrder      int    `json:"chunk_order"`
	PageOrder       int    `json:"page_order"`
	DocumentOrder   int    `json:"document_order"`
	UploadTimestamp int64  `json:"upload_timestamp"`
}

type BookChunk struct {
	PageKey int    `json:"page_key"`
	Text    string `json:"text"`
}

// Book is reconstructed on read by grouping chunks by book id; it is
// never persisted as its own entity.
type Book struct {
	BookID string      `json:"book_id"`
	Chunks []BookChunk `json:"chunks"`
}

type UserCorpus struct {
	Books      []Book `json:"books"`
	TotalBooks int    `json:"total_books"`
}

type UploadStatus string

const (
	UploadStatusUploaded   UploadStatus = "uploaded"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusReady      UploadStatus = "ready"
	UploadStatusFailed     UploadStatus = "failed"
)

// UploadJob tracks one upload request through the async indexing pipeline.
type UploadJob struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	BookID    string       `json:"book_id"`
	Pages     []Page       `json:"pages,omitempty"`
	Status    UploadStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
