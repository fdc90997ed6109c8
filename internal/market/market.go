// Package market implements the marketplace operations on top of the
// product store, the document store and the image bucket.
package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

// timeLayout is RFC 3339 with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseProductID parses a product id from a path or form value.
func ParseProductID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid product id %q", model.ErrValidation, s)
	}
	return id, nil
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrValidation, fmt.Sprintf(format, args...))
}
