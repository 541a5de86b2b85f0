package collab

import (
	"fmt"
	"time"
)

// parseDueDate accepts RFC 3339 timestamps or plain dates. Empty clears the date.
func parseDueDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: dueDate must be YYYY-MM-DD or RFC 3339", ErrInvalidInput)
}
