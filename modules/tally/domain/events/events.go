package events

import "github.com/vtlabs/tallysync/modules/tally/domain/entities/syncrun"

// SyncCompleted is published on the event bus after every finished run,
// degraded or not.
type SyncCompleted struct {
	Result *syncrun.Result
}
