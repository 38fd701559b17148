package models

// PriorityImmediate is the fixed priority for user-initiated actions
// (manual recheck, create, edit, clone, import). Scheduler-issued items use
// the current epoch second as priority, so immediate items always win.
const PriorityImmediate int64 = 1

// QueueItem is one pending check request. Lower priority values are
// dispatched first; ties are served in push order.
type QueueItem struct {
	Priority   int64
	UUID       string
	NotifyOnly bool // re-send the latest notification without fetching
}

// SchedulerItem builds a scheduler-originated item priced at the given
// epoch second.
func SchedulerItem(uuid string, epoch int64) QueueItem {
	return QueueItem{Priority: epoch, UUID: uuid}
}

// ImmediateItem builds a user-originated item that preempts scheduler work.
func ImmediateItem(uuid string) QueueItem {
	return QueueItem{Priority: PriorityImmediate, UUID: uuid}
}
