package types

// Classification is what the classifier returns for one message.
type Classification struct {
	Category     string   `json:"category"`
	Severity     Severity `json:"severity"`
	Instructions []string `json:"instructions"`
}
