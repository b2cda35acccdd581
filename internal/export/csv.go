package export

import (
	"errors"
	"strings"
	"time"

	"idscan/internal/model"
)

// ErrEmptySession is returned when there is nothing to export.
var ErrEmptySession = errors.New("session has no records")

const header = "Name,Identifier,Slot,Date,Time\n"

// CSV renders the session's records as a table, one row per record in
// current order (newest first), every field quoted. Pure function of the
// session: the same input always yields identical bytes.
func CSV(sess *model.Session) ([]byte, error) {
	if sess == nil || len(sess.Records) == 0 {
		return nil, ErrEmptySession
	}

	var b strings.Builder
	b.WriteString(header)
	for _, r := range sess.Records {
		writeRow(&b, r.StudentName, r.Identifier, r.SlotName, r.CaptureDate, r.CaptureTime)
	}
	return []byte(b.String()), nil
}

func writeRow(b *strings.Builder, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}

// Filename derives the download name from the slot and a date:
// attendance_<slot with spaces underscored>_<YYYY-MM-DD>.csv
func Filename(slot string, date time.Time) string {
	return "attendance_" + strings.Join(strings.Fields(slot), "_") + "_" + date.Format("2006-01-02") + ".csv"
}
