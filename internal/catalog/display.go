package catalog

import (
	"fmt"
	"time"
)

// ReadableDate formats an RFC 3339 item timestamp for display in the
// result list, e.g. "1/2/2023, 3:04 PM UTC".
func ReadableDate(iso string) (string, error) {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return "", fmt.Errorf("failed to parse timestamp %q: %w", iso, err)
	}
	return t.Format("1/2/2006, 3:04 PM MST"), nil
}
