// Package classify maps extracted page text onto a bounded set of topic
// labels via keyword matching.
package classify

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// maxLabels bounds the number of topics emitted per page.
const maxLabels = 3

var punctuation = regexp.MustCompile(`[^\w\s]+`)

// TopicKeywords pairs a topic name with its trigger keywords. The mapping is
// an ordered slice, not a map: qualifying topics are emitted in declaration
// order, so ordering is part of the contract.
type TopicKeywords struct {
	Name     string   `mapstructure:"name" json:"name"`
	Keywords []string `mapstructure:"keywords" json:"keywords"`
}

// Classifier implements crawler.Classifier. The keyword table is injected at
// construction so tests can substitute alternate mappings; there is no
// mutable global state and Classify is side-effect-free.
type Classifier struct {
	topics []TopicKeywords
	sets   []map[string]struct{}
	logger *zap.Logger
}

// New builds a Classifier over the given mapping.
func New(topics []TopicKeywords, logger *zap.Logger) *Classifier {
	sets := make([]map[string]struct{}, len(topics))
	for i, topic := range topics {
		set := make(map[string]struct{}, len(topic.Keywords))
		for _, kw := range topic.Keywords {
			set[strings.ToLower(kw)] = struct{}{}
		}
		sets[i] = set
	}
	return &Classifier{topics: topics, sets: sets, logger: logger}
}

// Classify concatenates the three text sources, normalizes them, and emits
// every topic whose keyword set intersects the document's word set, in
// declaration order, truncated to three labels. Empty input yields an empty
// list. Identical input always yields identical output.
func (c *Classifier) Classify(title, description, text string) []string {
	words := tokenize(strings.Join([]string{title, description, text}, " "))
	if len(words) == 0 {
		return nil
	}

	var labels []string
	for i, topic := range c.topics {
		if intersects(words, c.sets[i]) {
			labels = append(labels, topic.Name)
			if len(labels) == maxLabels {
				break
			}
		}
	}
	return labels
}

// tokenize lowercases, strips punctuation to spaces, and splits into a set
// of unique words.
func tokenize(input string) map[string]struct{} {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(input), " ")
	fields := strings.Fields(cleaned)
	words := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		words[f] = struct{}{}
	}
	return words
}

func intersects(words, keywords map[string]struct{}) bool {
	// Iterate the smaller side.
	if len(keywords) < len(words) {
		for kw := range keywords {
			if _, ok := words[kw]; ok {
				return true
			}
		}
		return false
	}
	for w := range words {
		if _, ok := keywords[w]; ok {
			return true
		}
	}
	return false
}

// DefaultTopics is the stock topic/keyword table used when the configuration
// does not supply one.
func DefaultTopics() []TopicKeywords {
	return []TopicKeywords{
		{Name: "technology", Keywords: []string{"technology", "software", "hardware", "computer", "digital", "ai", "machine learning", "programming", "code"}},
		{Name: "business", Keywords: []string{"business", "finance", "economy", "market", "investment", "startup", "company", "corporate"}},
		{Name: "health", Keywords: []string{"health", "medical", "medicine", "healthcare", "wellness", "fitness", "doctor", "hospital"}},
		{Name: "sports", Keywords: []string{"sports", "athletics", "football", "basketball", "baseball", "soccer", "game", "team"}},
		{Name: "politics", Keywords: []string{"politics", "government", "election", "policy", "democracy", "president", "congress"}},
		{Name: "entertainment", Keywords: []string{"entertainment", "movie", "music", "celebrity", "film", "television", "show"}},
		{Name: "science", Keywords: []string{"science", "research", "study", "experiment", "discovery", "scientific", "laboratory"}},
		{Name: "education", Keywords: []string{"education", "learning", "school", "university", "teaching", "student", "course"}},
		{Name: "travel", Keywords: []string{"travel", "tourism", "vacation", "destination", "hotel", "trip", "journey"}},
		{Name: "food", Keywords: []string{"food", "cooking", "recipe", "restaurant", "cuisine", "kitchen", "chef"}},
		{Name: "automotive", Keywords: []string{"car", "automotive", "vehicle", "automobile", "driving", "motor", "engine"}},
		{Name: "fashion", Keywords: []string{"fashion", "style", "clothing", "design", "trend", "wear", "outfit"}},
		{Name: "real_estate", Keywords: []string{"real estate", "property", "housing", "home", "mortgage", "house", "apartment"}},
		{Name: "environment", Keywords: []string{"environment", "climate", "sustainability", "green", "ecology", "nature", "earth"}},
	}
}
