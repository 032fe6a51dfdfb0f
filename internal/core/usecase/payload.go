package usecase

import (
	"fmt"
	"strconv"

	"github.com/woonylab/bookchat/internal/core/domain"
)

// chunkPayload and chunkFromPayload define the stored point payload
// shape for document chunks. They must stay symmetric.

func chunkPayload(chunk domain.DocumentChunk) map[string]any {
	return map[string]any{
		"content":          chunk.Content,
		"user_id":          chunk.UserID,
		"book_id":          chunk.BookID,
		"page_key":         chunk.PageKey,
		"chunk_order":      chunk.ChunkOrder,
		"page_order":       chunk.PageOrder,
		"document_order":   chunk.DocumentOrder,
		"upload_timestamp": chunk.UploadTimestamp,
	}
}

func chunkFromPayload(payload map[string]any) domain.DocumentChunk {
	return domain.DocumentChunk{
		Content:         payloadString(payload, "content"),
		UserID:          payloadString(payload, "user_id"),
		BookID:          payloadString(payload, "book_id"),
		PageKey:         payloadInt(payload, "page_key"),
		ChunkOrder:      payloadInt(payload, "chunk_order"),
		PageOrder:       payloadInt(payload, "page_order"),
		DocumentOrder:   payloadInt(payload, "document_order"),
		UploadTimestamp: payloadInt64(payload, "upload_timestamp"),
	}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int {
	return int(payloadInt64(payload, key))
}

func payloadInt64(payload map[string]any, key string) int64 {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
