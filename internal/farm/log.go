package farm

import (
	"fmt"

	"github.com/xtrntr/farmduel/internal/models"
)

// Logf builds a successful log entry stamped with the farm's day
func (f *Farm) Logf(action, format string, args ...any) models.LogEntry {
	return models.LogEntry{
		Day:     f.Day,
		Farm:    f.ID,
		Action:  action,
		Details: fmt.Sprintf(format, args...),
		OK:      true,
	}
}

// Fail builds a failed log entry. A non-zero penalty is deducted from energy
// and noted in the details.
func (f *Farm) Fail(action string, err error, penalty int) models.LogEntry {
	details := err.Error()
	if penalty > 0 {
		f.Penalize(penalty)
		details = fmt.Sprintf("%s; energy penalty of %d applied", details, penalty)
	}
	return models.LogEntry{
		Day:     f.Day,
		Farm:    f.ID,
		Action:  "Failed " + action,
		Details: details,
		Err:     err,
	}
}
