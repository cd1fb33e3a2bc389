package broadcast

import (
	"encoding/json"
	"time"

	"signal-feed/internal/cache"
)

// PriceEntry is the per-symbol payload pushed to subscribers.
type PriceEntry struct {
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
	Change24h float64 `json:"change_24h"`
	Source    string  `json:"source"`
}

// PricesMessage is the broadcast envelope: {"type":"prices","data":{...}}.
type PricesMessage struct {
	Type string                `json:"type"`
	Data map[string]PriceEntry `json:"data"`
}

// NewPricesMessage converts a cache snapshot into the wire envelope.
func NewPricesMessage(snap cache.Snapshot) PricesMessage {
	data := make(map[string]PriceEntry, len(snap))
	for symbol, q := range snap {
		data[symbol] = PriceEntry{
			Price:     q.Price.InexactFloat64(),
			Timestamp: q.ObservedAt.UTC().Format(time.RFC3339Nano),
			Change24h: q.Change24h.InexactFloat64(),
			Source:    q.Source,
		}
	}
	return PricesMessage{Type: "prices", Data: data}
}

// EncodeSnapshot renders the wire bytes for a snapshot.
func EncodeSnapshot(snap cache.Snapshot) ([]byte, error) {
	return json.Marshal(NewPricesMessage(snap))
}
