package usecase

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/woonylab/bookchat/internal/core/domain"
	"github.com/woonylab/bookchat/internal/core/ports"
)

const emptyPagePlaceholder = "[empty page]"

// BuildUserCorpus reconstructs a user's books from stored chunks. Chunks
// are sorted by (book id with numeric ids before lexical ones, upload
// timestamp, page order, chunk order, document order), grouped by book,
// and collapsed to one entry per distinct page key.
func BuildUserCorpus(chunks []domain.DocumentChunk) *domain.UserCorpus {
	sorted := make([]domain.DocumentChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.BookID != b.BookID {
			return bookIDLess(a.BookID, b.BookID)
		}
		if a.UploadTimestamp != b.UploadTimestamp {
			return a.UploadTimestamp < b.UploadTimestamp
		}
		if a.PageOrder != b.PageOrder {
			return a.PageOrder < b.PageOrder
		}
		if a.ChunkOrder != b.ChunkOrder {
			return a.ChunkOrder < b.ChunkOrder
		}
		return a.DocumentOrder < b.DocumentOrder
	})

	corpus := &domain.UserCorpus{}
	bookIdx := map[string]int{}
	seenPages := map[string]map[int]bool{}
	for _, chunk := range sorted {
		i, ok := bookIdx[chunk.BookID]
		if !ok {
			corpus.Books = append(corpus.Books, domain.Book{BookID: chunk.BookID})
			i = len(corpus.Books) - 1
			bookIdx[chunk.BookID] = i
			seenPages[chunk.BookID] = map[int]bool{}
		}
		if seenPages[chunk.BookID][chunk.PageKey] {
			continue
		}
		seenPages[chunk.BookID][chunk.PageKey] = true

		text := chunk.Content
		if strings.TrimSpace(text) == "" {
			text = emptyPagePlaceholder
		}
		corpus.Books[i].Chunks = append(corpus.Books[i].Chunks, domain.BookChunk{
			PageKey: chunk.PageKey,
			Text:    text,
		})
	}
	corpus.TotalBooks = len(corpus.Books)
	return corpus
}

// bookIDLess orders numeric book ids by value ahead of non-numeric ids,
// which sort lexically among themselves.
func bookIDLess(a, b string) bool {
	na, aNum := strconv.Atoi(a)
	nb, bNum := strconv.Atoi(b)
	switch {
	case aNum == nil && bNum == nil:
		return na < nb
	case aNum == nil:
		return true
	case bNum == nil:
		return false
	default:
		return a < b
	}
}

// CorpusService exposes corpus reconstruction over the vector index.
type CorpusService struct {
	index     ports.VectorIndex
	docSuffix string
}

func NewCorpusService(index ports.VectorIndex, docSuffix string) *CorpusService {
	return &CorpusService{index: index, docSuffix: docSuffix}
}

func (s *CorpusService) docCollection(userID string) string {
	return userID + s.docSuffix
}

// UserCorpus scrolls the user's document collection and rebuilds books.
// A missing collection is an empty corpus, not an error.
func (s *CorpusService) UserCorpus(ctx context.Context, userID string) (*domain.UserCorpus, error) {
	points, err := s.index.ScrollAll(ctx, s.docCollection(userID), 256)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.DocumentChunk, 0, len(points))
	for _, p := range points {
		chunks = append(chunks, chunkFromPayload(p.Payload))
	}
	return BuildUserCorpus(chunks), nil
}
