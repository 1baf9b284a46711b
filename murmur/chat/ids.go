package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewConversationID generates a session identifier for callers that did not
// supply one: a UTC timestamp for sortable file names plus a uuid fragment
// for uniqueness within the same second.
func NewConversationID() string {
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
}
