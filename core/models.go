package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Intent classifies the purpose of a user query. The set is closed:
// the router only understands these values, and anything the analyzer
// cannot map onto them falls back to IntentGeneral.
type Intent int

const (
	// IntentGeneral is the default classification when nothing more
	// specific applies, or when classification itself failed.
	IntentGeneral Intent = iota + 1
	// IntentCurrentInfo marks queries about recent or live information.
	IntentCurrentInfo
	// IntentHistorical marks queries about past events or stored knowledge.
	IntentHistorical
	// IntentPrediction marks queries asking about future outcomes.
	IntentPrediction
	// IntentTechnical marks how-to and reference questions.
	IntentTechnical
	// IntentOffTopic marks queries outside the assistant's scope.
	IntentOffTopic
)

var intentNames = map[Intent]string{
	IntentGeneral:     "general",
	IntentCurrentInfo: "current_info",
	IntentHistorical:  "historical",
	IntentPrediction:  "prediction",
	IntentTechnical:   "technical",
	IntentOffTopic:    "off_topic",
}

// String returns the wire name of the intent ("current_info", "historical", ...).
func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return "general"
}

// ParseIntent maps a wire name back to an Intent.
// Returns false if the name is not one of the closed set.
func ParseIntent(name string) (Intent, bool) {
	for intent, n := range intentNames {
		if n == name {
			return intent, true
		}
	}
	return IntentGeneral, false
}

// ServiceMode describes which resilience tier produced a result.
type ServiceMode int

const (
	// ModeFull means the primary path succeeded end to end.
	ModeFull ServiceMode = iota
	// ModeDegraded means the first fallback produced the result.
	ModeDegraded
	// ModeMinimal means a later fallback produced the result, or a
	// stage was skipped entirely after exhausting its fallbacks.
	ModeMinimal
)

// String returns the wire name of the service mode.
func (m ServiceMode) String() string {
	switch m {
	case ModeDegraded:
		return "degraded"
	case ModeMinimal:
		return "minimal"
	default:
		return "full"
	}
}

// Worst returns the more degraded of the two modes.
func (m ServiceMode) Worst(other ServiceMode) ServiceMode {
	if other > m {
		return other
	}
	return m
}

// QueryAnalysis is the structured output of query classification.
type QueryAnalysis struct {
	Intent     Intent
	Confidence float32
	// Entities maps a category (e.g. "topic", "person", "timeframe")
	// to the ordered entity strings extracted for it.
	Entities map[string][]string
}

// Document is a unit of stored knowledge retrieved by semantic search.
// Vector is populated at ingestion time and used for similarity search.
type Document struct {
	Id          ID
	Content     string
	Source      string
	Title       string
	Vector      []float32
	PublishedAt time.Time
	InsertedAt  time.Time
	UpdatedAt   time.Time
	Metadata    map[string]string
}

// ScoredDocument is a document paired with its retrieval relevance score.
type ScoredDocument struct {
	Document *Document
	Score    float32
}

// SearchResult is a single hit returned by the web-search backend.
type SearchResult struct {
	Content     string
	URL         string
	Title       string
	Score       float32
	PublishedAt time.Time
}

// MessageRole identifies the author of a conversation message.
type MessageRole int

const (
	// RoleUser represents the human user.
	RoleUser MessageRole = iota + 1
	// RoleAssistant represents the AI assistant.
	RoleAssistant
	// RoleSystem represents system instructions.
	RoleSystem
)

// Message is a single conversation turn handed to the generation backend.
type Message struct {
	Role    MessageRole
	Content string
}

// HistoryEntry is a persisted conversation turn, keyed by session.
type HistoryEntry struct {
	Id         ID
	SessionId  string
	Role       MessageRole
	Contents   string
	Timestamp  time.Time // When the message was originally sent
	InsertedAt time.Time // When the entry was inserted into the database
}
