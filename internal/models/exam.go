package models

// Exam is a single final exam entry. Start and end times are wall-clock timestamps without an offset
// (for example "2025-12-08T08:00:00").
type Exam struct {
	Subject      string `db:"subject" json:"subject"`
	CourseNumber string `db:"course_number" json:"course_number"`
	Section      string `db:"section" json:"section"`
	CRN          string `db:"crn" json:"crn"`
	CourseName   string `db:"course_name" json:"course_name"`
	StartTime    string `db:"start_time" json:"start_time"`
	EndTime      string `db:"end_time" json:"end_time"`
	Location     string `db:"location" json:"location"`
	TermCode     string `db:"term_code" json:"term_code"`
}

// Pagination is the paging metadata attached to exam listings.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// NewPagination derives hasMore from the page window.
func NewPagination(page, limit, total int) Pagination {
	return Pagination{Page: page, Limit: limit, Total: total, HasMore: page*limit < total}
}

// ExamFilter is the conjunctive filter combination. Empty fields do not filter.
// It is comparable and doubles as the cache key of an exam listing.
type ExamFilter struct {
	Query    string `json:"q,omitempty" validate:"omitempty,max=100,searchquery"`
	Date     string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Location string `json:"location,omitempty" validate:"omitempty,max=100"`
}

// IsZero reports whether no filter is active.
func (f ExamFilter) IsZero() bool {
	return f == ExamFilter{}
}

// ExamSearchParams adds an optional page window to a filter. Zero Page or Limit means unset.
type ExamSearchParams struct {
	ExamFilter
	Page  int `json:"page,omitempty" validate:"gte=0"`
	Limit int `json:"limit,omitempty" validate:"gte=0"`
}

// ExamsResponse is the body of GET /exams.
type ExamsResponse struct {
	Data       []Exam     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// DatesResponse is the body of GET /filters/dates.
type DatesResponse struct {
	Data []string `json:"data"`
}

// BuildingLocation groups exam rooms by building.
type BuildingLocation struct {
	Building string   `json:"building"`
	Rooms    []string `json:"rooms"`
}

// LocationsResponse is the body of GET /filters/locations.
type LocationsResponse struct {
	Data []BuildingLocation `json:"data"`
}

// Buildings returns the building names in response order.
func (r *LocationsResponse) Buildings() []string {
	if r == nil {
		return nil
	}
	buildings := make([]string, 0, len(r.Data))
	for _, loc := range r.Data {
		buildings = append(buildings, loc.Building)
	}
	return buildings
}
