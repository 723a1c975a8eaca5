package models

import "time"

// Pesticide is a chemical or organic control product with its use instructions.
type Pesticide struct {
	Name      string `json:"name" yaml:"name"`
	Dosage    string `json:"dosage" yaml:"dosage"`
	Frequency string `json:"frequency" yaml:"frequency"`
	Safety    string `json:"safety" yaml:"safety"`
	Type      string `json:"type" yaml:"type"` // "chemical" | "organic" | "N/A"
}

// Treatment is the knowledge-base entry for one disease class label.
type Treatment struct {
	Label          string      `json:"label" yaml:"label"`
	Plant          string      `json:"plant" yaml:"plant"`
	Condition      string      `json:"condition" yaml:"condition"`
	SeverityRisk   string      `json:"severity_risk" yaml:"severity_risk"`
	IsHealthy      bool        `json:"is_healthy" yaml:"is_healthy"`
	Description    string      `json:"description" yaml:"description"`
	Pesticides     []Pesticide `json:"pesticides" yaml:"pesticides"`
	Organic        []string    `json:"organic" yaml:"organic"`
	Prevention     []string    `json:"prevention" yaml:"prevention"`
	ETL            string      `json:"etl" yaml:"etl"`
	FertilizerNote string      `json:"fertilizer_note" yaml:"fertilizer_note"`
}

// LabelScore is one ranked class with its confidence.
type LabelScore struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Prediction is what a classifier returns for one leaf image.
type Prediction struct {
	ClassName  string       `json:"class_name"`
	Confidence float64      `json:"confidence"`
	Top5       []LabelScore `json:"top5"`
}

// PredictionResult is a prediction joined with its treatment data.
type PredictionResult struct {
	ClassName      string       `json:"class_name"`
	Plant          string       `json:"plant"`
	Condition      string       `json:"condition"`
	IsHealthy      bool         `json:"is_healthy"`
	Confidence     float64      `json:"confidence"`
	ConfidencePct  string       `json:"confidence_pct"`
	SeverityRisk   string       `json:"severity_risk"`
	Description    string       `json:"description"`
	Pesticides     []Pesticide  `json:"pesticides"`
	Organic        []string     `json:"organic"`
	Prevention     []string     `json:"prevention"`
	ETL            string       `json:"etl"`
	FertilizerNote string       `json:"fertilizer_note"`
	Top5           []LabelScore `json:"top5"`
}

// HistoryEntry records one completed scan.
type HistoryEntry struct {
	ID           string    `json:"id" db:"id"`
	Timestamp    time.Time `json:"timestamp" db:"created_at"`
	ClassName    string    `json:"class_name" db:"class_name"`
	Plant        string    `json:"plant" db:"plant"`
	Condition    string    `json:"condition" db:"condition"`
	IsHealthy    bool      `json:"is_healthy" db:"is_healthy"`
	Confidence   float64   `json:"confidence" db:"confidence"`
	SeverityRisk string    `json:"severity_risk" db:"severity_risk"`
}

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of the assistant conversation.
type ChatMessage struct {
	ID        int64     `json:"-" db:"id"`
	Role      ChatRole  `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
}

// CatalogueItem is a purchasable fertilizer as listed to clients.
type CatalogueItem struct {
	Name          string `json:"name" yaml:"name" db:"name"`
	NPK           string `json:"npk" yaml:"npk" db:"npk"`
	PriceINRPerMT int    `json:"price_inr_per_mt" yaml:"price_inr_per_mt" db:"price_inr_per_mt"`
	Scheme        string `json:"scheme" yaml:"scheme" db:"scheme"`
	BestFor       string `json:"best_for" yaml:"best_for" db:"best_for"`
}
