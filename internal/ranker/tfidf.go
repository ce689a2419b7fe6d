package ranker

import (
	"math"

	"github.com/JakeFAU/roosearch/internal/index"
)

// IDF returns ln(n / (df+1)). A term present in every document scores
// below zero.
func IDF(n, df int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Log(float64(n) / float64(df+1))
}

// TermFrequencies counts postings per document.
func TermFrequencies(postings []index.Posting) map[string]int {
	tf := make(map[string]int)
	for _, p := range postings {
		tf[p.URL]++
	}
	return tf
}

// TermWeights is the TF-IDF breakdown of one term against a store.
type TermWeights struct {
	IDF float64
	TF  map[string]int
}

// TFIDF looks up term in store and returns its idf with per-document term
// frequencies. The document frequency is the number of distinct URLs in
// the posting list.
func TFIDF(store *index.Store, term string) TermWeights {
	return Weigh(store.DocumentCount(), store.Postings(term))
}

// Weigh computes the TF-IDF breakdown of an already fetched posting list
// against a corpus of n documents.
func Weigh(n int, postings []index.Posting) TermWeights {
	tf := TermFrequencies(postings)
	return TermWeights{
		IDF: IDF(n, len(tf)),
		TF:  tf,
	}
}

// Weight is tf(url) * idf.
func (w TermWeights) Weight(url string) float64 {
	return float64(w.TF[url]) * w.IDF
}
