package models

import "time"

// CheckpointType is the normalized category of a carrier scan.
type CheckpointType string

const (
	CheckpointLabel          CheckpointType = "LABEL"
	CheckpointPickup         CheckpointType = "PICKUP"
	CheckpointHub            CheckpointType = "HUB"
	CheckpointLocal          CheckpointType = "LOCAL"
	CheckpointOutForDelivery CheckpointType = "OUT_FOR_DELIVERY"
	CheckpointDelivered      CheckpointType = "DELIVERED"
	CheckpointException      CheckpointType = "EXCEPTION"
	CheckpointReturn         CheckpointType = "RETURN"
	CheckpointAttempt        CheckpointType = "ATTEMPT"
	CheckpointUnknown        CheckpointType = "UNKNOWN"
)

// Negative reports whether the checkpoint type signals trouble with the shipment.
func (t CheckpointType) Negative() bool {
	switch t {
	case CheckpointException, CheckpointReturn, CheckpointAttempt:
		return true
	default:
		return false
	}
}

// Forward reports whether the checkpoint type represents network progress towards the recipient.
func (t CheckpointType) Forward() bool {
	switch t {
	case CheckpointHub, CheckpointLocal, CheckpointOutForDelivery:
		return true
	default:
		return false
	}
}

// Sentiment tags a checkpoint as good, neutral or bad news.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Checkpoint is a single normalized carrier scan. Checkpoints are append-only.
type Checkpoint struct {
	ShipmentID  string
	OccurredAt  time.Time
	Status      string
	Substatus   string
	Description string
	Location    string
	Type        CheckpointType
	Sentiment   Sentiment
}
