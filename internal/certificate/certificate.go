// Package certificate renders per-student completion certificates and
// bundles them for download.
package certificate

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/stream-course/internal/team"
)

// View is the content of one certificate.
type View struct {
	Index      int       `json:"index"`
	Student    string    `json:"student"`
	School     string    `json:"school"`
	ClassLevel string    `json:"class"`
	Course     string    `json:"course"`
	Issued     time.Time `json:"issued"`
}

// Date formats the issue date as day/month/year without padding.
func (v View) Date() string {
	return v.Issued.Format("2/1/2006")
}

// Body is the sentence naming the school and class.
func (v View) Body() string {
	return "of " + v.School + " (Class " + v.ClassLevel + ") has successfully completed the one-month course in"
}

// Views returns one certificate per student, in the team's student order.
func Views(t team.Account, courseName string, issued time.Time) []View {
	views := make([]View, len(t.Students))
	for i, s := range t.Students {
		views[i] = View{
			Index:      i,
			Student:    clean(s),
			School:     clean(t.School.Name),
			ClassLevel: t.ClassLevel,
			Course:     clean(courseName),
			Issued:     issued,
		}
	}
	return views
}

// clean composes combining marks so names render as single glyphs.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
