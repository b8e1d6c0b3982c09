// Package graphpub publishes processed post semantics to the knowledge
// graph stream.
package graphpub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"

	"github.com/sensenets/sensegraph/semantics"
)

// Subject for graph ingestion.
const GraphIngestSubject = "graph.ingest.entity"

const tripleSource = "sensegraph.semantics"

// EntityIngestMessage is the message format for graph ingestion.
// Matches the format used by other semstreams components.
type EntityIngestMessage struct {
	ID        string           `json:"id"`
	Triples   []message.Triple `json:"triples"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// PublishPostSemantics publishes a post's stored triples as one graph
// entity. A nil NATS client is a graceful no-op so embedded runs work
// without a broker.
func PublishPostSemantics(ctx context.Context, nc *natsclient.Client, postID string, triples []semantics.Triple) error {
	if nc == nil {
		return nil // Skip publishing if no NATS client (graceful degradation)
	}
	if len(triples) == 0 {
		return nil
	}

	now := time.Now()
	entityID := PostEntityID(postID)

	out := make([]message.Triple, 0, len(triples))
	for _, triple := range triples {
		out = append(out, message.Triple{
			Subject:    triple.Subject,
			Predicate:  triple.Predicate,
			Object:     triple.Object,
			Source:     tripleSource,
			Timestamp:  now,
			Confidence: 1.0,
		})
	}

	msg := EntityIngestMessage{
		ID:        entityID,
		Triples:   out,
		UpdatedAt: now,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal post entity: %w", err)
	}

	if err := nc.PublishToStream(ctx, GraphIngestSubject, data); err != nil {
		return fmt.Errorf("publish post entity: %w", err)
	}

	return nil
}

// PostEntityID generates a consistent entity ID for a post.
// Format: sensegraph.post.<id>
func PostEntityID(postID string) string {
	return fmt.Sprintf("sensegraph.post.%s", postID)
}
