package models

import "strings"

// SentimentColumns are the score columns of message_sentiment. The sentiment
// model emits a probability over exactly these three classes.
var SentimentColumns = []string{"positive", "neutral", "negative"}

// TopicLabels are the candidate labels submitted to the zero-shot tagger,
// in the same phrasing the model was prompted with.
var TopicLabels = []string{
	"economics, finance and markets",
	"corporate, business, industry and innovation",
	"technology, ai and digital platforms",
	"geopolitics, war, security and international relations",
	"domestic politics, elections and government",
	"energy, commodities and environment",
	"society, human rights and public health",
	"sports, entertainment and culture",
}

// TopicColumns are the message_tag score columns, one per topic label,
// in the same order as TopicLabels.
var TopicColumns = topicColumns()

func topicColumns() []string {
	cols := make([]string, len(TopicLabels))
	for i, label := range TopicLabels {
		cols[i] = TopicColumn(label)
	}
	return cols
}

// TopicColumn converts a human-readable topic label into its column name.
func TopicColumn(label string) string {
	s := strings.ToLower(label)
	s = strings.ReplaceAll(s, ",", "")
	return strings.ReplaceAll(s, " ", "_")
}
