package web

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"gpsmon/internal/cmdchan"
	"gpsmon/internal/gpsmon"
	"gpsmon/internal/notify"
)

type status struct {
	start    time.Time
	mon      Monitor
	commands *cmdchan.Channel
	feed     *notify.Broadcaster
}

func newStatus(d Deps) *status {
	return &status{
		start:    time.Now().UTC(),
		mon:      d.Monitor,
		commands: d.Commands,
		feed:     d.Feed,
	}
}

// StatusSnapshot is the body of GET /api/status. The *_human fields are for
// people; scripts should use the raw values.
type StatusSnapshot struct {
	Service      string          `json:"service"`
	NowUTC       string          `json:"now_utc"`
	UptimeSec    int64           `json:"uptime_sec"`
	UptimeHuman  string          `json:"uptime_human"`
	InStateHuman string          `json:"in_state_human,omitempty"`
	StepsHuman   string          `json:"steps_human"`
	Monitor      gpsmon.Snapshot `json:"monitor"`
	Commands     cmdchan.Stats   `json:"commands"`
	NotifyMissed uint64          `json:"notify_missed"`
}

func (s *status) snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	snap := s.mon.Snapshot()
	out := StatusSnapshot{
		Service:     "gpsmon",
		NowUTC:      nowUTC.Format(time.RFC3339Nano),
		UptimeSec:   int64(nowUTC.Sub(s.start).Seconds()),
		UptimeHuman: relTime(s.start, nowUTC),
		StepsHuman:  humanize.Comma(int64(snap.Steps)),
		Monitor:     snap,
	}
	if !snap.Since.IsZero() {
		out.InStateHuman = relTime(snap.Since, nowUTC)
	}
	if s.commands != nil {
		out.Commands = s.commands.Stats()
	}
	if s.feed != nil {
		out.NotifyMissed = s.feed.Missed()
	}
	return out
}

func relTime(from, to time.Time) string {
	return strings.TrimSpace(humanize.RelTime(from, to, "", ""))
}
