package index

import "time"

// Posting records one occurrence of a term: the document it appears in and
// its 0-based position in that document's token stream.
type Posting struct {
	URL      string `json:"url"`
	Position int    `json:"position"`
}

// Document is the public view of a stored document record.
type Document struct {
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	WordCount int       `json:"word_count"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Stats summarizes the size of the index.
type Stats struct {
	TermCount     int `json:"term_count"`
	DocumentCount int `json:"document_count"`
	LinkCount     int `json:"link_count"`
}

// Graph is a frozen copy of the link graph restricted to indexed URLs.
// Nodes is sorted; every inbound list is sorted and only names nodes.
type Graph struct {
	Nodes   []string
	Inbound map[string][]string
}

// OutDegrees derives the out-edge count of every node from the inbound
// adjacency.
func (g Graph) OutDegrees() map[string]int {
	out := make(map[string]int, len(g.Nodes))
	for _, from := range g.Inbound {
		for _, src := range from {
			out[src]++
		}
	}
	return out
}

// docRecord is the stored form of a document. Text holds the compressed body.
type docRecord struct {
	Text      []byte    `json:"encodedText"`
	WordCount int       `json:"wordCount"`
	Title     string    `json:"title,omitempty"`
	IndexedAt time.Time `json:"indexedAt"`
}

func (r docRecord) document(url string) Document {
	return Document{
		URL:       url,
		Title:     r.Title,
		WordCount: r.WordCount,
		IndexedAt: r.IndexedAt,
	}
}
