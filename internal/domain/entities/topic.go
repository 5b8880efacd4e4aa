package entities

import "time"

// GroupingKind distinguishes how a topic aggregate was produced: from an
// explicit stored label or from an unsupervised cluster id.
type GroupingKind string

const (
	GroupingExplicitLabel GroupingKind = "label"
	GroupingClusterID     GroupingKind = "cluster"
)

// Topic is a derived aggregate over facts sharing a theme. It is computed on
// demand by grouping facts, never persisted as authoritative state.
type Topic struct {
	Name            string       `json:"topic"`
	Kind            GroupingKind `json:"kind,omitempty"`
	FactCount       int          `json:"fact_count"`
	LatestTimestamp time.Time    `json:"latest_timestamp"`
}

// FactCluster is one group produced by unsupervised clustering over fact
// embeddings. MainTopics lists the distinct explicit labels of its members.
type FactCluster struct {
	ID         int      `json:"cluster_id"`
	Facts      []Fact   `json:"facts"`
	MainTopics []string `json:"main_topics,omitempty"`
}

// TopicCount pairs a topic label with how many facts carry it.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// PatternAnalysis summarizes journaling activity over a trailing window:
// which topics dominated, how fact types were distributed and how much was
// written per day. Computed from stored facts, no LLM involved.
type PatternAnalysis struct {
	PeriodDays    int            `json:"analysis_period_days"`
	TotalFacts    int            `json:"total_facts"`
	TopTopics     []TopicCount   `json:"top_topics"`
	FactTypes     map[string]int `json:"fact_type_distribution"`
	DailyActivity map[string]int `json:"daily_activity"`
	MostActiveDay string         `json:"most_active_day,omitempty"`
}
