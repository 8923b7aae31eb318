package notify

import (
	"trafficscope/internal/model"
)

// MaxLoggedNotifications caps the bounded notification log.
const MaxLoggedNotifications = 30

// RunTimeData holds the notification engine's view of the world between
// ticks: the aggregator totals as of the current tick, the totals of the
// previous tick, and the bounded newest-first notification log.
type RunTimeData struct {
	TotSentPackets     uint64
	TotReceivedPackets uint64
	TotSentBytes       uint64
	TotReceivedBytes   uint64

	TotSentPacketsPrev     uint64
	TotReceivedPacketsPrev uint64
	TotSentBytesPrev       uint64
	TotReceivedBytesPrev   uint64

	logged []model.LoggedNotification
}

// Push prepends a notification to the log, evicting the oldest entry once
// the cap is reached.
func (rt *RunTimeData) Push(n model.LoggedNotification) {
	if len(rt.logged) >= MaxLoggedNotifications {
		rt.logged = rt.logged[:MaxLoggedNotifications-1]
	}
	rt.logged = append([]model.LoggedNotification{n}, rt.logged...)
}

// Notifications returns a copy of the log, newest first.
func (rt *RunTimeData) Notifications() []model.LoggedNotification {
	out := make([]model.LoggedNotification, len(rt.logged))
	copy(out, rt.logged)
	return out
}

// RollPrevTotals promotes the current totals to the previous-tick slots.
// The driver calls this after each tick.
func (rt *RunTimeData) RollPrevTotals() {
	rt.TotSentPacketsPrev = rt.TotSentPackets
	rt.TotReceivedPacketsPrev = rt.TotReceivedPackets
	rt.TotSentBytesPrev = rt.TotSentBytes
	rt.TotReceivedBytesPrev = rt.TotReceivedBytes
}
