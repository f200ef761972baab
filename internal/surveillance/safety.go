package surveillance

import (
	"fmt"

	"go.uber.org/zap"
)

// SkipReport names a group (or whole analyzer) that was skipped during a
// run, and why. A run always returns whatever was successfully computed
// plus the skip list; one bad group never aborts the rest of the batch.
type SkipReport struct {
	Analyzer string `json:"analyzer"`
	GroupKey string `json:"group_key"`
	Reason   string `json:"reason"`
}

// guardGroup runs one group's evaluation, converting a panic into a skip
// entry so the remaining groups still complete.
func guardGroup(analyzer, groupKey string, logger *zap.SugaredLogger, skips *[]SkipReport, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("panic: %v", r)
			if logger != nil {
				logger.Warnw("analyzer group skipped",
					"analyzer", analyzer,
					"group", groupKey,
					"reason", reason,
				)
			}
			*skips = append(*skips, SkipReport{Analyzer: analyzer, GroupKey: groupKey, Reason: reason})
		}
	}()
	fn()
}
