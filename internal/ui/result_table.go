package ui

import (
	"fmt"
	"sync"

	"github.com/noah-isme/finals-finder/internal/models"
)

// DefaultScrollThreshold is the distance from the bottom, in pixels, that triggers a page load.
const DefaultScrollThreshold = 100

// Row is one rendered exam.
type Row struct {
	Key        string
	Label      string
	CourseName string
	Date       string
	Start      string
	End        string
	Location   string
}

// ScrollPosition is the geometry of the result viewport reported by the browser.
type ScrollPosition struct {
	Top          float64 `form:"top" json:"top"`
	Height       float64 `form:"height" json:"height"`
	ClientHeight float64 `form:"client" json:"client"`
}

// ResultTable formats rows and turns scroll positions into next-page requests.
type ResultTable struct {
	formatter *Formatter
	threshold float64

	mu sync.Mutex
	// armed is cleared after a request and set again once the viewport leaves the threshold
	// zone, the content grows past disarmedAt, or the requested page is seen to finish.
	armed       bool
	disarmedAt  float64
	sawFetching bool
}

// NewResultTable builds a table. A non-positive threshold uses DefaultScrollThreshold.
func NewResultTable(formatter *Formatter, threshold int) *ResultTable {
	if threshold <= 0 {
		threshold = DefaultScrollThreshold
	}
	return &ResultTable{formatter: formatter, threshold: float64(threshold), armed: true}
}

// Rows formats exams in order. Keys pair the CRN with the position since CRNs can repeat.
func (t *ResultTable) Rows(exams []models.Exam) []Row {
	rows := make([]Row, 0, len(exams))
	for i, exam := range exams {
		rows = append(rows, Row{
			Key:        fmt.Sprintf("%s-%d", exam.CRN, i),
			Label:      ExamLabel(exam),
			CourseName: exam.CourseName,
			Date:       t.formatter.Date(exam.StartTime),
			Start:      t.formatter.Time(exam.StartTime),
			End:        t.formatter.Time(exam.EndTime),
			Location:   exam.Location,
		})
	}
	return rows
}

// ExamLabel is the composite "EXAM: subject number section crn" label.
func ExamLabel(exam models.Exam) string {
	return fmt.Sprintf("EXAM: %s %s %s %s", exam.Subject, exam.CourseNumber, exam.Section, exam.CRN)
}

// NearBottom reports whether pos is within the threshold of the end of the content.
func (t *ResultTable) NearBottom(pos ScrollPosition) bool {
	return pos.Top+pos.ClientHeight >= pos.Height-t.threshold
}

// OnScroll requests the next page through fetchNext when pos is near the bottom, a next page
// exists and nothing is in flight. It requests at most once per threshold crossing and reports
// whether a request was issued.
func (t *ResultTable) OnScroll(pos ScrollPosition, hasNextPage, fetchingNextPage bool, fetchNext func() bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.armed {
		switch {
		case fetchingNextPage:
			t.sawFetching = true
		case t.sawFetching:
			// an empty page leaves the height unchanged
			t.armed = true
		}
	}
	if !t.NearBottom(pos) {
		t.rearm()
		return false
	}
	if !t.armed && pos.Height > t.disarmedAt {
		t.rearm()
	}
	if !t.armed || !hasNextPage || fetchingNextPage {
		return false
	}
	if !fetchNext() {
		return false
	}
	t.armed = false
	t.disarmedAt = pos.Height
	t.sawFetching = false
	return true
}

func (t *ResultTable) rearm() {
	t.armed = true
	t.sawFetching = false
}

// Reset re-arms the trigger. Called when the filter changes and the content is replaced.
func (t *ResultTable) Reset() {
	t.mu.Lock()
	t.rearm()
	t.disarmedAt = 0
	t.mu.Unlock()
}
