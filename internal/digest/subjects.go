package digest

import (
	"strings"
	"time"
)

// Subject lines rotate weekly. {DATE} expands to the current month and day so
// a line can carry the send date.
var subjectLines = []string{
	"Your weekly campaign digest",
	"Your weekly campaign roundup!",
	"A weekly campaign digest just for you!",
	"Your weekly campaign digest: {DATE}",
	"{DATE}: Your weekly campaign digest!",
	"Tips for your campaigns!",
	"Comin' atcha: tips for your campaign!",
	"*|FNAME|* - It's your {DATE} campaign digest",
	"Just for you: campaign tips",
	"Your weekly campaign tips",
	"{DATE}: campaign tips for you",
	"You signed up for campaigns. Here's how to rock them!",
	"Tips for you (and only you!)",
	"Ready for your weekly campaign tips?",
	"Your weekly campaign tips: comin' atcha!",
	"Fresh out the oven (just for you!)",
}

// SubjectForDate picks the subject of the week: ISO week number modulo the
// list length, so every run in a given week uses the same line and the list
// cycles forward week over week.
func SubjectForDate(now time.Time) string {
	_, week := now.ISOWeek()
	line := subjectLines[week%len(subjectLines)]
	return strings.ReplaceAll(line, "{DATE}", now.Format("January 2"))
}
