// Package validation holds the business rules shared by the course services.
package validation

import (
	"fmt"
	"strings"

	"github.com/geocoder89/coursehub/internal/apperr"
)

// Violations collects rule failures so a request is rejected once with all
// of them.
type Violations []string

func (v *Violations) Add(format string, args ...any) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func (v Violations) Empty() bool {
	return len(v) == 0
}

// Err is nil when nothing was collected.
func (v Violations) Err() error {
	if len(v) == 0 {
		return nil
	}
	details := make([]string, len(v))
	copy(details, v)
	return apperr.Invalid("%s", strings.Join(v, "; ")).WithDetails(details)
}
