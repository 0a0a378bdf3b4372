package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/finals-finder/internal/models"
)

const examSchema = `
CREATE TABLE IF NOT EXISTS exams (
	id            BIGSERIAL PRIMARY KEY,
	term_code     TEXT NOT NULL,
	position      INTEGER NOT NULL,
	subject       TEXT NOT NULL DEFAULT '',
	course_number TEXT NOT NULL DEFAULT '',
	section       TEXT NOT NULL DEFAULT '',
	crn           TEXT NOT NULL DEFAULT '',
	course_name   TEXT NOT NULL DEFAULT '',
	start_time    TIMESTAMP,
	end_time      TIMESTAMP,
	location      TEXT NOT NULL DEFAULT '',
	UNIQUE (term_code, position)
);
CREATE INDEX IF NOT EXISTS idx_exams_start_date ON exams (CAST(start_time AS date));
CREATE INDEX IF NOT EXISTS idx_exams_crn ON exams (crn)`

const examColumns = `subject, course_number, section, crn, course_name,
	COALESCE(to_char(start_time, 'YYYY-MM-DD"T"HH24:MI:SS'), '') AS start_time,
	COALESCE(to_char(end_time, 'YYYY-MM-DD"T"HH24:MI:SS'), '') AS end_time,
	location, term_code`

// ExamRepository reads and loads the exam schedule.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository instantiates an exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// EnsureSchema creates the exams table and its indexes when missing.
func (r *ExamRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(examSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure exam schema: %w", err)
		}
	}
	return nil
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List returns one page of exams matching every non-empty filter field, in import order, with
// the total number of matches.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter, page, limit int) ([]models.Exam, int, error) {
	base := "FROM exams WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Query != "" {
		args = append(args, "%"+escapeLike(filter.Query)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(course_number ILIKE $%d OR course_name ILIKE $%d OR crn ILIKE $%d)", n, n, n))
	}
	if filter.Date != "" {
		args = append(args, filter.Date)
		conditions = append(conditions, fmt.Sprintf("CAST(start_time AS date) = CAST($%d AS date)", len(args)))
	}
	if filter.Location != "" {
		args = append(args, "%"+escapeLike(filter.Location)+"%")
		conditions = append(conditions, fmt.Sprintf("location ILIKE $%d", len(args)))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf("SELECT %s %s ORDER BY term_code, position LIMIT %d OFFSET %d", examColumns, base, limit, offset)
	exams := []models.Exam{}
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}
	return exams, total, nil
}

// Dates returns the distinct exam dates as YYYY-MM-DD, ascending.
func (r *ExamRepository) Dates(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT to_char(start_time, 'YYYY-MM-DD') AS exam_date FROM exams WHERE start_time IS NOT NULL ORDER BY exam_date`
	dates := []string{}
	if err := r.db.SelectContext(ctx, &dates, query); err != nil {
		return nil, fmt.Errorf("list exam dates: %w", err)
	}
	return dates, nil
}

// Locations returns the distinct non-blank locations, trimmed.
func (r *ExamRepository) Locations(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT TRIM(location) AS location FROM exams WHERE TRIM(location) <> '' ORDER BY location`
	locations := []string{}
	if err := r.db.SelectContext(ctx, &locations, query); err != nil {
		return nil, fmt.Errorf("list exam locations: %w", err)
	}
	return locations, nil
}

type examRow struct {
	models.Exam
	Position int `db:"position"`
}

const insertExam = `INSERT INTO exams (term_code, position, subject, course_number, section, crn, course_name, start_time, end_time, location)
VALUES (:term_code, :position, :subject, :course_number, :section, :crn, :course_name,
	CAST(NULLIF(:start_time, '') AS timestamp), CAST(NULLIF(:end_time, '') AS timestamp), :location)`

// ReplaceTerm swaps every exam of termCode for exams in a single transaction. Exams keep their
// slice order as their listing order.
func (r *ExamRepository) ReplaceTerm(ctx context.Context, termCode string, exams []models.Exam) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin exam import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM exams WHERE term_code = $1`, termCode); err != nil {
		return fmt.Errorf("clear term %s: %w", termCode, err)
	}

	stmt, err := tx.PrepareNamedContext(ctx, insertExam)
	if err != nil {
		return fmt.Errorf("prepare exam insert: %w", err)
	}
	defer stmt.Close()

	for i, exam := range exams {
		exam.TermCode = termCode
		if _, err = stmt.ExecContext(ctx, examRow{Exam: exam, Position: i}); err != nil {
			return fmt.Errorf("insert exam %s at %d: %w", exam.CRN, i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit exam import: %w", err)
	}
	return nil
}
