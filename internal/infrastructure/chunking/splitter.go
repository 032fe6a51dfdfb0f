package chunking

import (
	"strings"
	"time"

	"github.com/woonylab/bookchat/internal/core/domain"
)

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// SplitPages turns raw upload pages into ordered corpus chunks. PageOrder
// follows the position of the page in the upload, ChunkOrder restarts per
// page, DocumentOrder runs across the whole upload.
func (s *Splitter) SplitPages(userID, bookID string, pages []domain.Page, uploadedAt time.Time) []domain.DocumentChunk {
	uploadTS := uploadedAt.UTC().Unix()
	documentOrder := 0

	var out []domain.DocumentChunk
	for pageOrder, page := range pages {
		pieces := s.split(page.Text)
		if len(pieces) == 0 {
			// Keep empty pages addressable in corpus reconstruction.
			pieces = []string{""}
		}
		for chunkOrder, piece := range pieces {
			out = append(out, domain.DocumentChunk{
				Content:         piece,
				UserID:          userID,
				BookID:          bookID,
				PageKey:         page.PageKey,
				ChunkOrder:      chunkOrder,
				PageOrder:       pageOrder,
				DocumentOrder:   documentOrder,
				UploadTimestamp: uploadTS,
			})
			documentOrder++
		}
	}
	return out
}

func (s *Splitter) split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
