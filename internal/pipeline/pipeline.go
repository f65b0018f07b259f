package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"prepx/internal/config"
	"prepx/internal/domain"
	"prepx/internal/events"
	"prepx/internal/extract"
	"prepx/internal/repo"
	"prepx/internal/scheduler"
	"prepx/internal/stage"
)

// ErrRunActive is returned when a session already has a pipeline running.
// Runs for one session never interleave.
var ErrRunActive = errors.New("a run is already active for this session")

// Engine owns pipeline execution: one background run per request, the
// per-run progress log, and the only cross-course view of the data.
type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Log       events.Log
	Broadcast *events.Broadcaster
	Env       stage.Env
	Config    *config.Config
	Now       func() time.Time

	mu     sync.Mutex
	active map[string]context.CancelFunc // session id -> abort
}

// New wires an Engine from its parts.
func New(db *sql.DB, cfg *config.Config, client extract.Client) *Engine {
	caps := stage.Caps{
		MaxModules:      cfg.Limits.MaxModules,
		MaxModuleTopics: cfg.Limits.MaxModuleTopics,
		MaxScopeTopics:  cfg.Limits.MaxScopeTopics,
		TocPages:        cfg.Limits.TocPages,
		SamplePages:     cfg.Limits.SamplePages,
		MaxMapperChars:  cfg.Limits.MaxMapperChars,
	}
	return &Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Log:       events.Log{DB: db},
		Broadcast: events.NewBroadcaster(),
		Env: stage.Env{
			Client:    client,
			Limiter:   extract.NewRateLimiter(time.Duration(cfg.Extractor.MinIntervalMs) * time.Millisecond),
			Isolation: extract.NewIsolationManager(),
			Caps:      caps,
		},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// CourseOverride carries per-course values from the plan request. The id
// must match an existing course; code, name and exam date override the
// stored values for this run.
type CourseOverride struct {
	ID       string
	Code     string
	Name     string
	ExamDate string
}

// StartOptions parameterize one pipeline run.
type StartOptions struct {
	SessionID   string
	Courses     []CourseOverride
	Constraints domain.Constraints
}

// Start begins a pipeline run in the background and returns immediately
// with the run acknowledgment. A second start for a session whose run is
// still active fails with ErrRunActive.
func (e *Engine) Start(ctx context.Context, opts StartOptions) (domain.Run, error) {
	if opts.SessionID == "" {
		return domain.Run{}, errors.New("session id is required")
	}
	courses, err := e.loadCourses(ctx, opts)
	if err != nil {
		return domain.Run{}, err
	}
	cons := e.normalizeConstraints(opts.Constraints)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		e.active = make(map[string]context.CancelFunc)
	}
	if _, busy := e.active[opts.SessionID]; busy {
		return domain.Run{}, ErrRunActive
	}

	run := domain.Run{
		ID:        uuid.NewString(),
		SessionID: opts.SessionID,
		Status:    domain.RunRunning,
		StartedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertRun(ctx, run); err != nil {
		return domain.Run{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.active[opts.SessionID] = cancel

	go e.execute(runCtx, run, courses, cons)
	return run, nil
}

// Abort cancels the active run for a session, if any. The abort takes
// effect at the next stage boundary.
func (e *Engine) Abort(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancel, ok := e.active[sessionID]
	if ok {
		cancel()
	}
	return ok
}

func (e *Engine) release(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cancel, ok := e.active[sessionID]; ok {
		cancel()
		delete(e.active, sessionID)
	}
}

// loadCourses resolves the run's course list: stored courses with
// request overrides applied and palette colors filled in.
func (e *Engine) loadCourses(ctx context.Context, opts StartOptions) ([]domain.Course, error) {
	stored, err := e.Repo.ListCourses(ctx, opts.SessionID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Course, len(stored))
	for i := range stored {
		byID[stored[i].ID] = &stored[i]
	}
	var courses []domain.Course
	if len(opts.Courses) == 0 {
		courses = stored
	} else {
		for _, ov := range opts.Courses {
			c, ok := byID[ov.ID]
			if !ok {
				return nil, fmt.Errorf("course %s: %w", ov.ID, repo.ErrNotFound)
			}
			merged := *c
			if ov.Code != "" {
				merged.Code = ov.Code
			}
			if ov.Name != "" {
				merged.Name = ov.Name
			}
			if ov.ExamDate != "" {
				merged.ExamDate = ov.ExamDate
			}
			courses = append(courses, merged)
		}
	}
	for i := range courses {
		if courses[i].Color == "" {
			courses[i].Color = domain.PaletteColor(i)
		}
	}
	return courses, nil
}

func (e *Engine) normalizeConstraints(c domain.Constraints) domain.Constraints {
	if c.WeekdayHours <= 0 {
		c.WeekdayHours = e.Config.Defaults.WeekdayHours
	}
	if c.WeekendHours <= 0 {
		c.WeekendHours = e.Config.Defaults.WeekendHours
	}
	switch c.ReviewFrequency {
	case domain.ReviewDaily, domain.ReviewEvery2, domain.ReviewWeekly:
	default:
		c.ReviewFrequency = domain.ReviewCadence(e.Config.Defaults.ReviewFrequency)
	}
	return c
}

// courseData is one course's aggregated stage output.
type courseData struct {
	course   domain.Course
	examDate string
	topics   []domain.TopicRef
	mappings []domain.Mapping
}

// execute is the run body. It owns the run's event log and always emits
// exactly one terminal event, success or error.
func (e *Engine) execute(ctx context.Context, run domain.Run, courses []domain.Course, cons domain.Constraints) {
	defer e.release(run.SessionID)

	watch := newWatchdog(ctx, e.stallLimit())
	defer watch.stop()
	emit := func(agent, msg string, status domain.EventStatus) {
		watch.progress()
		ev, err := e.Log.Append(context.Background(), run.ID, domain.ProgressEvent{
			Agent: agent, Message: msg, Status: status,
		})
		if err == nil {
			e.Broadcast.Publish(run.ID, ev)
		}
	}

	fail := func(msg string) {
		_ = e.Repo.FinishRun(context.Background(), run.ID, domain.RunFailed, msg, e.now().UTC().Format(time.RFC3339))
		ev, err := e.Log.Append(context.Background(), run.ID, domain.ProgressEvent{
			Agent: "System", Message: "Pipeline failed: " + msg, Status: domain.StatusError, Done: true,
		})
		if err == nil {
			e.Broadcast.Publish(run.ID, ev)
		}
		e.Broadcast.CloseRun(run.ID)
	}

	var all []courseData
	total := len(courses)
	for i, course := range courses {
		if err := watch.ctx.Err(); err != nil {
			fail(abortReason(watch))
			return
		}
		data := e.analyzeCourse(watch.ctx, course, i+1, total, emit)
		all = append(all, data)
	}

	if err := watch.ctx.Err(); err != nil {
		fail(abortReason(watch))
		return
	}

	// Aggregate and schedule.
	var totalEst float64
	for _, cd := range all {
		for _, m := range cd.mappings {
			totalEst += m.EstimatedHours
		}
	}
	emit("ChiefOrchestrator", fmt.Sprintf("Synthesizing schedule across %d courses (~%.0fh of content)...", total, totalEst), domain.StatusLoading)

	input := scheduler.Input{
		Today:       e.now().Truncate(24 * time.Hour),
		Constraints: cons,
	}
	for _, cd := range all {
		input.Courses = append(input.Courses, scheduler.CourseInput{
			ID:       cd.course.ID,
			Code:     cd.course.Code,
			Color:    cd.course.Color,
			ExamDate: cd.examDate,
			Topics:   cd.topics,
			Mappings: cd.mappings,
		})
	}
	result, err := scheduler.Solve(input)
	if err != nil {
		fail(err.Error())
		return
	}
	if err := e.Repo.ReplaceTasks(context.Background(), run.ID, result.Tasks); err != nil {
		fail("storing plan: " + err.Error())
		return
	}

	days := map[string]bool{}
	for _, t := range result.Tasks {
		days[t.Date] = true
	}
	emit("ChiefOrchestrator", fmt.Sprintf("Plan complete — %d study sessions scheduled across %d days.", len(result.Tasks), len(days)), domain.StatusSuccess)
	for _, d := range result.Dropped {
		emit("ChiefOrchestrator", fmt.Sprintf("Dropped %q (%s importance): not enough capacity before the exam.", d.Topic, d.Importance), domain.StatusSuccess)
	}

	_ = e.Repo.FinishRun(context.Background(), run.ID, domain.RunDone, "", e.now().UTC().Format(time.RFC3339))
	ev, err := e.Log.Append(context.Background(), run.ID, domain.ProgressEvent{
		Agent: "System", Message: "All agents finished.", Status: domain.StatusSuccess, Done: true,
	})
	if err == nil {
		e.Broadcast.Publish(run.ID, ev)
	}
	e.Broadcast.CloseRun(run.ID)
}

func (e *Engine) stallLimit() time.Duration {
	sec := e.Config.Limits.WatchdogStallSec
	if sec <= 0 {
		sec = 300
	}
	return time.Duration(sec) * time.Second
}

func abortReason(w *watchdog) string {
	if w.stalled() {
		return "watchdog: run made no progress"
	}
	return "run canceled"
}

// analyzeCourse runs the four per-course stages in strict sequence. A
// stage failure substitutes an empty record and the course continues;
// only the fallback resolver yielding zero topics makes the course
// contribute nothing.
func (e *Engine) analyzeCourse(ctx context.Context, course domain.Course, num, total int, emit func(string, string, domain.EventStatus)) courseData {
	data := courseData{course: course}

	// 1. Structure: syllabus -> modules.
	emit("SyllabusExpert", fmt.Sprintf("Analyzing syllabus for %s...", course.Code), domain.StatusLoading)
	var modules domain.ModuleRecord
	syllabus, derr := e.Repo.GetDocument(ctx, course.ID, domain.DocSyllabus)
	switch {
	case errors.Is(derr, repo.ErrNotFound):
		modules = domain.ModuleRecord{CourseName: course.Name, CourseCode: course.Code}
		emit("SyllabusExpert", fmt.Sprintf("No syllabus for %s — skipping structure analysis.", course.Code), domain.StatusSuccess)
	case derr != nil:
		emit("SyllabusExpert", fmt.Sprintf("Loading syllabus for %s failed: %v", course.Code, derr), domain.StatusError)
	default:
		rec, err := stage.Structure(ctx, e.Env, syllabus.Text)
		if err != nil {
			emit("SyllabusExpert", fmt.Sprintf("Syllabus analysis for %s failed: %v", course.Code, err), domain.StatusError)
		} else {
			modules = rec
			emit("SyllabusExpert", fmt.Sprintf("Syllabus extracted for %s — %d modules identified.", course.Code, len(modules.Modules)), domain.StatusSuccess)
		}
	}

	// 2. Scope: exam overview -> topics + exam date candidate.
	emit("ExamScopeAnalyst", fmt.Sprintf("Analyzing midterm overview for %s...", course.Code), domain.StatusLoading)
	var scope domain.ScopeRecord
	overview, derr := e.Repo.GetDocument(ctx, course.ID, domain.DocExamOverview)
	switch {
	case errors.Is(derr, repo.ErrNotFound):
		// Absent overview: the stage is skipped entirely and an empty
		// record triggers the fallback below.
	case derr != nil:
		emit("ExamScopeAnalyst", fmt.Sprintf("Loading overview for %s failed: %v", course.Code, derr), domain.StatusError)
	default:
		rec, err := stage.Scope(ctx, e.Env, overview.Text)
		if err != nil {
			emit("ExamScopeAnalyst", fmt.Sprintf("Overview analysis for %s failed: %v", course.Code, err), domain.StatusError)
		} else {
			scope = rec
		}
	}

	// Exam date: user-entered beats detected beats unknown.
	data.examDate = course.ExamDate
	if data.examDate == "" {
		data.examDate = scope.ExamDate
	}
	if data.examDate != "" {
		source := " (manual override)"
		if course.ExamDate == "" {
			source = " (from midterm overview)"
		}
		emit("ExamScopeAnalyst", fmt.Sprintf("Exam date for %s: %s%s", course.Code, data.examDate, source), domain.StatusSuccess)
	}

	// Fallback substitution.
	if len(scope.Topics) == 0 && len(modules.Modules) > 0 {
		emit("ExamScopeAnalyst", fmt.Sprintf("No topics from midterm overview — falling back to %d syllabus modules as topics.", len(modules.Modules)), domain.StatusLoading)
	}
	data.topics = stage.Resolve(scope, modules)
	if len(scope.Topics) == 0 && len(data.topics) > 0 {
		emit("ExamScopeAnalyst", fmt.Sprintf("Fallback: %d topics derived from syllabus modules.", len(data.topics)), domain.StatusSuccess)
	}
	emit("ExamScopeAnalyst", fmt.Sprintf("Exam scope for %s: %d topics — %s", course.Code, len(data.topics), topicPreview(data.topics)), domain.StatusSuccess)

	// 3+4. Locator and Mapper against the textbook.
	emit("TocNavigator", fmt.Sprintf("Scanning textbook TOC for %s to find relevant chapters...", course.Code), domain.StatusLoading)
	names := stage.TopicNames(data.topics)
	textbook, derr := e.Repo.GetDocument(ctx, course.ID, domain.DocTextbook)
	if errors.Is(derr, repo.ErrNotFound) {
		// No textbook: locator never runs, mapper works without page hints.
		emit("TocNavigator", fmt.Sprintf("No textbook uploaded for %s — skipping.", course.Code), domain.StatusSuccess)
		data.mappings = stage.DefaultMapping(names).Mappings
	} else if derr != nil {
		emit("TocNavigator", fmt.Sprintf("Loading textbook for %s failed: %v", course.Code, derr), domain.StatusError)
		data.mappings = stage.DefaultMapping(names).Mappings
	} else {
		var locator domain.LocatorRecord
		rec, err := stage.Locator(ctx, e.Env, textbook.Text, names)
		if err != nil {
			emit("TocNavigator", fmt.Sprintf("TOC scan for %s failed: %v", course.Code, err), domain.StatusError)
		} else {
			locator = rec
			emit("TocNavigator", fmt.Sprintf("TOC scan complete for %s.", course.Code), domain.StatusSuccess)
		}

		mapped, err := stage.Mapper(ctx, e.Env, textbook.Text, locator, names)
		if err != nil {
			emit("StudyGuideGuru", fmt.Sprintf("Resource mapping for %s failed: %v", course.Code, err), domain.StatusError)
			mapped = stage.DefaultMapping(names)
		}
		data.mappings = mapped.Mappings
	}

	var totalHours float64
	for _, m := range data.mappings {
		totalHours += m.EstimatedHours
	}
	emit("StudyGuideGuru", fmt.Sprintf("Resource mapping for %s: %d topics mapped, ~%.1fh estimated.", course.Code, len(data.mappings), totalHours), domain.StatusSuccess)
	emit("System", fmt.Sprintf("Course %d/%d fully analyzed: %s", num, total, course.Code), domain.StatusSuccess)

	return data
}

// topicPreview shows the first few topic names, original log style.
func topicPreview(topics []domain.TopicRef) string {
	names := make([]string, 0, 4)
	for i, t := range topics {
		if i == 4 {
			break
		}
		names = append(names, t.Name)
	}
	preview := strings.Join(names, ", ")
	if len(topics) > 4 {
		preview += fmt.Sprintf(" (+%d more)", len(topics)-4)
	}
	return preview
}
