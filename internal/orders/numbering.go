package orders

import (
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/ventiahq/ventia-backend/pkg/errors"
)

// numberAllocator issues sequential, human-readable order numbers per
// workspace. The highest existing number is scanned inside the creating
// transaction; the unique index on (workspace, number) catches races and the
// caller retries the allocation.
type numberAllocator struct {
	prefix      string
	width       int
	maxAttempts int
}

func newNumberAllocator(prefix string, width, maxAttempts int) numberAllocator {
	if prefix == "" {
		prefix = "ORD-"
	}
	if width <= 0 {
		width = 6
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return numberAllocator{prefix: prefix, width: width, maxAttempts: maxAttempts}
}

// next derives the successor of the highest assigned number. An empty input
// starts the sequence; malformed stored numbers are rejected rather than
// silently restarted.
func (a numberAllocator) next(highest string) (string, error) {
	if highest == "" {
		return a.format(1), nil
	}
	seq, ok := a.parse(highest)
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "stored order number is malformed").
			WithDetails(map[string]any{"order_number": highest})
	}
	return a.format(seq + 1), nil
}

func (a numberAllocator) format(seq int) string {
	return fmt.Sprintf("%s%0*d", a.prefix, a.width, seq)
}

func (a numberAllocator) parse(number string) (int, bool) {
	if !strings.HasPrefix(number, a.prefix) {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(number, a.prefix))
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}
