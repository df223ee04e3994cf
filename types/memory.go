package types

import "time"

// InteractionContext is the snapshot the orchestrator hands to memory.
type InteractionContext struct {
	Message              string               `json:"message"`
	Location             Location             `json:"location"`
	Language             string               `json:"language"`
	Category             string               `json:"category"`
	Severity             Severity             `json:"severity"`
	InitialInstructions  []string             `json:"initial_instructions"`
	FeedSnippet          string               `json:"disaster_feed"`
	IsFollowUp           bool                 `json:"is_follow_up"`
	ConversationStep     int                  `json:"conversation_step"`
	Conversation         *ConversationHistory `json:"conversation,omitempty"`
	SituationalAwareness SituationalAwareness `json:"situational_awareness"`
	HistoricalContext    RelevantContext      `json:"historical_context"`
	Timestamp            time.Time            `json:"timestamp"`
}

// Interaction is the persisted memory record.
type Interaction struct {
	ID           string             `json:"message_id"`
	Timestamp    time.Time          `json:"timestamp"`
	Context      InteractionContext `json:"context"`
	Plan         Plan               `json:"plan"`
	ExecutionLog ExecutionLog       `json:"execution_log"`
	LocationHash string             `json:"location_hash"`
	Category     string             `json:"category"`
	Severity     Severity           `json:"severity"`
}

// InteractionSummary is one entry of the rolling history.
type InteractionSummary struct {
	ID           string    `json:"message_id"`
	Timestamp    time.Time `json:"timestamp"`
	Category     string    `json:"category"`
	Severity     Severity  `json:"severity"`
	LocationHash string    `json:"location_hash"`
}

type LocationPattern struct {
	IncidentCount int            `json:"incident_count"`
	Categories    map[string]int `json:"categories"`
	Severities    map[string]int `json:"severities"`
	FirstSeen     time.Time      `json:"first_seen"`
	LastSeen      time.Time      `json:"last_seen"`
}

type CategoryLearning struct {
	TotalIncidents   int            `json:"total_incidents"`
	SuccessfulPlans  int            `json:"successful_plans"`
	CommonActions    map[string]int `json:"common_actions"`
	FeedbackCount    int            `json:"feedback_count"`
	PositiveFeedback int            `json:"positive_feedback"`
}

type SimilarIncident struct {
	Type     string            `json:"type"` // location_match | category_match
	Location *LocationPattern  `json:"location,omitempty"`
	Category *CategoryLearning `json:"category,omitempty"`
}

type RecentActivity struct {
	NearbyIncidents int        `json:"nearby_incidents"`
	ActivityLevel   string     `json:"activity_level"`
	LastIncident    *time.Time `json:"last_incident"`
}

type EffectivenessData struct {
	SampleSize   int     `json:"sample_size"`
	SuccessRate  float64 `json:"success_rate"`
	FeedbackRate float64 `json:"positive_feedback_rate"`
}

// RelevantContext is the bundle returned by memory for one emergency.
type RelevantContext struct {
	SimilarIncidents []SimilarIncident `json:"similar_incidents"`
	LocationPatterns LocationPattern   `json:"location_patterns"`
	CategoryInsights CategoryLearning  `json:"category_insights"`
	RecentActivity   RecentActivity    `json:"recent_activity"`
	Effectiveness    EffectivenessData `json:"effectiveness_data"`
}

type TimePatterns struct {
	PeakHours []string `json:"peak_hours"`
	Trend     string   `json:"trend"` // rising | falling | stable
}

type ResourceStrain struct {
	StrainLevel     string   `json:"strain_level"` // normal | elevated | high
	Bottlenecks     []string `json:"bottlenecks"`
	Recommendations []string `json:"recommendations"`
}

// SituationalAwareness summarizes recent reports around a location.
type SituationalAwareness struct {
	ActiveIncidents      int               `json:"active_incidents"`
	TrendingCategories   map[string]int    `json:"trending_categories"`
	SeverityDistribution map[string]int    `json:"severity_distribution"`
	GeographicClusters   []IncidentCluster `json:"geographic_clusters"`
	TimePatterns         TimePatterns      `json:"time_patterns"`
	ResourceStrain       ResourceStrain    `json:"resource_strain_indicators"`
}

// Feedback is a citizen's rating of a response.
type Feedback struct {
	Helpful bool      `json:"helpful"`
	Rating  int       `json:"rating"`
	Comment string    `json:"comment,omitempty"`
	At      time.Time `json:"timestamp"`
}

// Positive is true for feedback marked helpful or rated 4 and above.
func (f Feedback) Positive() bool {
	return f.Helpful || f.Rating >= 4
}
