package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"prepx/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// Sessions

func (r Repo) InsertSession(ctx context.Context, s domain.Session) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO sessions(id,created_at) VALUES (?,?)`, s.ID, s.CreatedAt)
	return err
}

func (r Repo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var s domain.Session
	err := r.DB.QueryRowContext(ctx, `SELECT id,created_at FROM sessions WHERE id=?`, id).
		Scan(&s.ID, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// EnsureSession inserts the session if it does not exist yet.
func (r Repo) EnsureSession(ctx context.Context, s domain.Session) error {
	_, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO sessions(id,created_at) VALUES (?,?)`, s.ID, s.CreatedAt)
	return err
}

// SingleSession returns the workspace's session when exactly one exists.
func (r Repo) SingleSession(ctx context.Context) (domain.Session, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,created_at FROM sessions ORDER BY created_at LIMIT 2`)
	if err != nil {
		return domain.Session{}, err
	}
	defer rows.Close()
	var found []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.CreatedAt); err != nil {
			return domain.Session{}, err
		}
		found = append(found, s)
	}
	if err := rows.Err(); err != nil {
		return domain.Session{}, err
	}
	switch len(found) {
	case 0:
		return domain.Session{}, ErrNotFound
	case 1:
		return found[0], nil
	default:
		return domain.Session{}, errors.New("multiple sessions exist; use --session")
	}
}

// Courses

func (r Repo) InsertCourse(ctx context.Context, c domain.Course) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO courses(id,session_id,code,name,exam_date,color,created_at) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.SessionID, c.Code, c.Name, nullable(c.ExamDate), nullable(c.Color), c.CreatedAt)
	return err
}

func (r Repo) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id,session_id,code,name,COALESCE(exam_date,''),COALESCE(color,''),created_at FROM courses WHERE id=?`, id)
	return scanCourse(row)
}

func scanCourse(row *sql.Row) (domain.Course, error) {
	var c domain.Course
	err := row.Scan(&c.ID, &c.SessionID, &c.Code, &c.Name, &c.ExamDate, &c.Color, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListCourses(ctx context.Context, sessionID string) ([]domain.Course, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,session_id,code,name,COALESCE(exam_date,''),COALESCE(color,''),created_at
		 FROM courses WHERE session_id=? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Course
	for rows.Next() {
		var c domain.Course
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Code, &c.Name, &c.ExamDate, &c.Color, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// UpdateCourse edits the display fields. The course id is immutable: a
// plan that references it stays valid across code renames.
func (r Repo) UpdateCourse(ctx context.Context, id string, code, name, examDate *string) error {
	var (
		fields []string
		args   []any
	)
	if code != nil {
		fields = append(fields, "code=?")
		args = append(args, *code)
	}
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if examDate != nil {
		fields = append(fields, "exam_date=?")
		args = append(args, nullable(*examDate))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	q := "UPDATE courses SET " + joinFields(fields) + " WHERE id=?"
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func joinFields(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += ","
		}
		out += f
	}
	return out
}

// Documents

func (r Repo) InsertDocument(ctx context.Context, d domain.DocumentRef) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO documents(id,course_id,kind,name,text,page_count,created_at) VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.CourseID, string(d.Kind), nullable(d.Name), d.Text, d.PageCount, d.CreatedAt)
	return err
}

// GetDocument returns the most recent document of a kind for a course,
// or ErrNotFound.
func (r Repo) GetDocument(ctx context.Context, courseID string, kind domain.DocKind) (domain.DocumentRef, error) {
	var d domain.DocumentRef
	var kindStr, name string
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,course_id,kind,COALESCE(name,''),text,page_count,created_at
		 FROM documents WHERE course_id=? AND kind=? ORDER BY created_at DESC, id DESC LIMIT 1`,
		courseID, string(kind)).
		Scan(&d.ID, &d.CourseID, &kindStr, &name, &d.Text, &d.PageCount, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	d.Kind = domain.DocKind(kindStr)
	d.Name = name
	return d, err
}

// Runs

func (r Repo) InsertRun(ctx context.Context, run domain.Run) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO runs(id,session_id,status,error,started_at,finished_at) VALUES (?,?,?,?,?,?)`,
		run.ID, run.SessionID, string(run.Status), nullable(run.Error), run.StartedAt, nullable(run.FinishedAt))
	return err
}

func (r Repo) GetRun(ctx context.Context, id string) (domain.Run, error) {
	return scanRun(r.DB.QueryRowContext(ctx,
		`SELECT id,session_id,status,COALESCE(error,''),started_at,COALESCE(finished_at,'') FROM runs WHERE id=?`, id))
}

// LatestRun returns the most recently started run for a session.
func (r Repo) LatestRun(ctx context.Context, sessionID string) (domain.Run, error) {
	return scanRun(r.DB.QueryRowContext(ctx,
		`SELECT id,session_id,status,COALESCE(error,''),started_at,COALESCE(finished_at,'')
		 FROM runs WHERE session_id=? ORDER BY started_at DESC, id DESC LIMIT 1`, sessionID))
}

// ActiveRun returns the running run for a session, or ErrNotFound.
func (r Repo) ActiveRun(ctx context.Context, sessionID string) (domain.Run, error) {
	return scanRun(r.DB.QueryRowContext(ctx,
		`SELECT id,session_id,status,COALESCE(error,''),started_at,COALESCE(finished_at,'')
		 FROM runs WHERE session_id=? AND status='running' ORDER BY started_at DESC LIMIT 1`, sessionID))
}

func scanRun(row *sql.Row) (domain.Run, error) {
	var run domain.Run
	var status string
	err := row.Scan(&run.ID, &run.SessionID, &status, &run.Error, &run.StartedAt, &run.FinishedAt)
	if err == sql.ErrNoRows {
		return run, ErrNotFound
	}
	run.Status = domain.RunState(status)
	return run, err
}

// FinishRun records the terminal state of a run.
func (r Repo) FinishRun(ctx context.Context, id string, status domain.RunState, errMsg, finishedAt string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE runs SET status=?, error=?, finished_at=? WHERE id=?`,
		string(status), nullable(errMsg), finishedAt, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Study tasks

// ReplaceTasks stores a run's plan atomically.
func (r Repo) ReplaceTasks(ctx context.Context, runID string, tasks []domain.StudyTask) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM study_tasks WHERE run_id=?`, runID); err != nil {
		return err
	}
	for i, t := range tasks {
		completed, isReview := 0, 0
		if t.Completed {
			completed = 1
		}
		if t.IsReview {
			isReview = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO study_tasks(run_id,date,course_id,course,course_color,topic,task_type,duration_hours,resources,notes,completed,is_review,seq)
			 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			runID, t.Date, t.CourseID, t.Course, nullable(t.CourseColor), t.Topic, string(t.Kind),
			t.DurationHours, nullable(t.Resources), nullable(t.Notes), completed, isReview, i); err != nil {
			return fmt.Errorf("insert task %s/%s/%s: %w", t.CourseID, t.Topic, t.Kind, err)
		}
	}
	return tx.Commit()
}

// ListTasks returns a run's plan in scheduling order.
func (r Repo) ListTasks(ctx context.Context, runID string) ([]domain.StudyTask, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT date,course_id,course,COALESCE(course_color,''),topic,task_type,duration_hours,COALESCE(resources,''),COALESCE(notes,''),completed,is_review
		 FROM study_tasks WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StudyTask
	for rows.Next() {
		var t domain.StudyTask
		var kind string
		var completed, isReview int
		if err := rows.Scan(&t.Date, &t.CourseID, &t.Course, &t.CourseColor, &t.Topic, &kind,
			&t.DurationHours, &t.Resources, &t.Notes, &completed, &isReview); err != nil {
			return nil, err
		}
		t.Kind = domain.TaskKind(kind)
		t.Completed = completed != 0
		t.IsReview = isReview != 0
		res = append(res, t)
	}
	return res, rows.Err()
}
