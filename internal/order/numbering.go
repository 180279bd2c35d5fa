package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewNumber returns ORD-YYYYMMDD-XXXXXXXX with a random hex suffix. The
// unique index on order_number catches the rare collision.
func NewNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "ORD-" + now.UTC().Format("20060102") + "-" + suffix
}
