package catalog

import (
	"sort"
	"strings"

	"github.com/vertexsales/salesbot/rag"
)

// SearchConfig tunes the boosted search pipeline, mirroring
// config.SearchConfig.
type SearchConfig struct {
	MinScore     float64
	NameBoost    float64
	ArticleBoost float64
	MaxResults   int
}

// Result is one ranked catalog search hit.
type Result struct {
	ProductID   string
	ProductName string
	Article     string
	RawScore    float64
	BoostedScore float64
}

// rankResults applies the boost/filter/sort/cap pipeline to raw vector
// search candidates, per the product search design:
//  1. compute post-boost score (name/article substring boosts, article
//     boost strictly exceeds name boost when both apply — enforced by
//     config validation, not here)
//  2. filter out candidates below MinScore
//  3. sort by boosted score desc, tie-break by raw score, then product id
//  4. cap at MaxResults
func rankResults(query string, candidates []rag.VectorSearchResult, cfg SearchConfig) []Result {
	lowerQuery := strings.ToLower(query)

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		name, _ := c.Document.Metadata["product_name"].(string)
		article, _ := c.Document.Metadata["article"].(string)

		boost := 0.0
		if name != "" && strings.Contains(lowerQuery, strings.ToLower(name)) {
			boost += cfg.NameBoost
		}
		if article != "" && strings.Contains(lowerQuery, strings.ToLower(article)) {
			boost += cfg.ArticleBoost
		}

		boosted := c.Score + boost
		if boosted < cfg.MinScore {
			continue
		}

		results = append(results, Result{
			ProductID:    c.Document.ID,
			ProductName:  name,
			Article:      article,
			RawScore:     c.Score,
			BoostedScore: boosted,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].BoostedScore != results[j].BoostedScore {
			return results[i].BoostedScore > results[j].BoostedScore
		}
		if results[i].RawScore != results[j].RawScore {
			return results[i].RawScore > results[j].RawScore
		}
		return results[i].ProductID < results[j].ProductID
	})

	max := cfg.MaxResults
	if max <= 0 || max > len(results) {
		max = len(results)
	}
	return results[:max]
}
