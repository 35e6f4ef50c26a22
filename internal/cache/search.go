package cache

import (
	"strings"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"
)

// SearchResult is a ranked match. MatchedIndexes are byte offsets into
// the indexed text "name email", in its original case.
type SearchResult struct {
	Record
	MatchedIndexes []int
	Score          int
}

// searchIndex implements fuzzy.Source over cached records
type searchIndex struct {
	records []Record
	texts   []string // Pre-computed "name email"
}

// String returns the searchable text at index i (implements fuzzy.Source)
func (idx *searchIndex) String(i int) string { return idx.texts[i] }

// Len returns the number of records (implements fuzzy.Source)
func (idx *searchIndex) Len() int { return len(idx.records) }

func newSearchIndex(records []Record) *searchIndex {
	idx := &searchIndex{records: records, texts: make([]string, len(records))}
	for i, r := range records {
		text := r.Name
		if email := r.EmailOrEmpty(); email != "" {
			text += " " + email
		}
		idx.texts[i] = text
	}
	return idx
}

// Search ranks cached contacts against query, best match first. Matching
// ignores case.
func (c *Cache) Search(query string) []SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	idx := newSearchIndex(c.Records())
	matches := fuzzy.FindFrom(query, idx)

	results := make([]SearchResult, len(matches))
	for i, m := range matches {
		results[i] = SearchResult{
			Record:         idx.records[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}

// Filter keeps the contacts whose name or email contains the characters of
// query in order, ignoring case. Results stay in name order. An empty query
// returns every record.
func (c *Cache) Filter(query string) []Record {
	records := c.Records()
	query = strings.TrimSpace(query)
	if query == "" {
		return records
	}

	out := records[:0]
	for _, r := range records {
		if lfuzzy.MatchNormalizedFold(query, r.Name) || lfuzzy.MatchNormalizedFold(query, r.EmailOrEmpty()) {
			out = append(out, r)
		}
	}
	return out
}
