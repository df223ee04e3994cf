package types

import "time"

// EmergencyReport is one persisted citizen submission plus its outcome.
// ParentID is a weak reference to the conversation starter.
type EmergencyReport struct {
	ID          string      `firestore:"-" gorm:"primaryKey;size:26" json:"id"`
	Message     string      `firestore:"message" json:"message"`
	MessageType MessageType `firestore:"messageType" gorm:"size:10;default:text" json:"message_type"`
	Lat         float64     `firestore:"lat" gorm:"index:idx_reports_coords" json:"lat"`
	Lon         float64     `firestore:"lon" gorm:"index:idx_reports_coords" json:"lon"`
	Language    string      `firestore:"language" gorm:"size:10" json:"language"`

	Category     string   `firestore:"category" gorm:"size:100;index" json:"category"`
	Severity     Severity `firestore:"severity" gorm:"size:4;index" json:"severity"`
	Instructions []string `firestore:"instructions" gorm:"serializer:json" json:"instructions"`
	FeedSnippet  string   `firestore:"feedSnippet" json:"feed_snippet"`
	ResponseMS   int64    `firestore:"responseMs" json:"response_ms"`

	ClientIP  string `firestore:"clientIp" gorm:"size:45" json:"client_ip,omitempty"`
	UserAgent string `firestore:"userAgent" json:"user_agent,omitempty"`
	SessionID string `firestore:"sessionId" gorm:"size:64" json:"session_id,omitempty"`

	ReceivedAt  time.Time  `firestore:"receivedAt" gorm:"index" json:"received_at"`
	ProcessedAt *time.Time `firestore:"processedAt" json:"processed_at,omitempty"`

	HasError     bool   `firestore:"hasError" json:"has_error"`
	ErrorMessage string `firestore:"errorMessage" json:"error_message,omitempty"`

	ParentID           string             `firestore:"parentId" gorm:"size:26;index" json:"parent_id,omitempty"`
	Step               int                `firestore:"step" json:"step"`
	IsStarter          bool               `firestore:"isStarter" json:"is_starter"`
	ConversationStatus ConversationStatus `firestore:"conversationStatus" gorm:"size:10" json:"conversation_status"`
	NeedsFollowUp      bool               `firestore:"needsFollowUp" json:"needs_follow_up"`
	FollowUpQuestion   string             `firestore:"followUpQuestion" json:"follow_up_question,omitempty"`
}

func (EmergencyReport) TableName() string { return "emergency_reports" }

// ConversationTurn is one prior message in a conversation.
type ConversationTurn struct {
	Step      int       `json:"step"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationHistory is what the planner folds into a follow-up plan.
type ConversationHistory struct {
	StarterID       string             `json:"starter_id"`
	Step            int                `json:"step"`
	Turns           []ConversationTurn `json:"previous_messages"`
	CurrentSeverity Severity           `json:"current_severity"`
	CurrentCategory string             `json:"current_category"`
	Status          ConversationStatus `json:"conversation_status"`
	SessionID       string             `json:"session_id,omitempty"`
}
