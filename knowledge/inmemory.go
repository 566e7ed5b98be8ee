package knowledge

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// InMemoryIndex is a keyword-scored knowledge base used for local runs and
// tests. It satisfies the same Retriever contract as the managed vector
// service: scores land in [0,1] and hits below MinScore are dropped.
type InMemoryIndex struct {
	mu       sync.RWMutex
	docs     []Document
	minScore float64
}

// NewInMemoryIndex creates an empty index with the given minimum score.
func NewInMemoryIndex(minScore float64) *InMemoryIndex {
	return &InMemoryIndex{minScore: minScore}
}

// Add indexes documents. A document with an existing ID replaces the old one.
func (idx *InMemoryIndex) Add(docs ...Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, doc := range docs {
		replaced := false
		for i := range idx.docs {
			if idx.docs[i].ID == doc.ID {
				idx.docs[i] = doc
				replaced = true
				break
			}
		}
		if !replaced {
			idx.docs = append(idx.docs, doc)
		}
	}
}

// Count returns the number of indexed documents.
func (idx *InMemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Clear removes all indexed documents.
func (idx *InMemoryIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs = nil
}

// Retrieve scores each document by the fraction of query terms it contains,
// with a small bonus for title matches, and returns the top maxResults hits
// above the minimum score in descending score order.
func (idx *InMemoryIndex) Retrieve(_ context.Context, query string, maxResults int) ([]Result, error) {
	terms := tokenize(query)
	if len(terms) == 0 || maxResults <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]Result, 0, len(idx.docs))
	for _, doc := range idx.docs {
		content := strings.ToLower(doc.Content)
		title := strings.ToLower(doc.Title)
		matched := 0
		titleMatched := false
		for _, term := range terms {
			if strings.Contains(content, term) {
				matched++
				continue
			}
			if strings.Contains(title, term) {
				matched++
				titleMatched = true
			}
		}
		if matched == 0 {
			continue
		}
		score := float64(matched) / float64(len(terms))
		if titleMatched && score < 1.0 {
			score += 0.05
		}
		if score > 1.0 {
			score = 1.0
		}
		if score < idx.minScore {
			continue
		}
		results = append(results, Result{
			Content: doc.Content,
			Score:   score,
			Source:  "kb://" + doc.ID,
			Metadata: map[string]any{
				"title": doc.Title,
			},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func tokenize(text string) []string {
	raw := wordRe.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(raw))
	terms := make([]string, 0, len(raw))
	for _, w := range raw {
		if len(w) < 2 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}
