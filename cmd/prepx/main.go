package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"prepx/internal/app"
	"prepx/internal/config"
	"prepx/internal/db"
	"prepx/internal/domain"
	"prepx/internal/events"
	"prepx/internal/export"
	"prepx/internal/extract"
	"prepx/internal/migrate"
	"prepx/internal/pipeline"
	"prepx/internal/repo"
	"prepx/internal/server"
	"prepx/internal/stage"
)

var rootCmd = &cobra.Command{
	Use:   "prepx",
	Short: "PrepX CLI",
	Long: `PrepX turns course documents into a day-by-day study plan.
Core concepts:
- Workspace: your .prepx directory with the database; tuning lives in prepx.yml.
- Session: one student's courses, documents and runs.
- Course: what you are preparing for, with an exam date when known.
- Documents: extracted text of the syllabus, exam overview and textbook per course.
- Run: one pipeline execution; agents analyze each course, then a global
  scheduler packs learn/practice/review blocks into your daily hour budgets.
- Log: the agents' progress feed, view with 'prepx log tail' or stream over the API.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PREPX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("session", "", "session id (defaults to the workspace's single session)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("session", rootCmd.PersistentFlags().Lookup("session"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(courseCmd())
	rootCmd.AddCommand(docCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default prepx.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func courseCmd() *cobra.Command {
	course := &cobra.Command{
		Use:   "course",
		Short: "Manage courses",
	}
	course.AddCommand(courseAddCmd())
	course.AddCommand(courseListCmd())
	course.AddCommand(courseUpdateCmd())
	return course
}

func courseAddCmd() *cobra.Command {
	var code, name, examDate string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a course to the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if code == "" || name == "" {
				return fmt.Errorf("--code and --name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *pipeline.Engine, s domain.Session) error {
				existing, err := e.Repo.ListCourses(ctx, s.ID)
				if err != nil {
					return err
				}
				c := domain.Course{
					ID:        newID(),
					SessionID: s.ID,
					Code:      code,
					Name:      name,
					ExamDate:  examDate,
					Color:     domain.PaletteColor(len(existing)),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertCourse(ctx, c); err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "course code, e.g. CS201")
	cmd.Flags().StringVar(&name, "name", "", "course name")
	cmd.Flags().StringVar(&examDate, "exam-date", "", "exam date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func courseListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List courses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *pipeline.Engine, s domain.Session) error {
				items, err := e.Repo.ListCourses(ctx, s.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "Code", "Name", "Exam Date"})
				for _, c := range items {
					t.AppendRow(table.Row{c.ID, c.Code, c.Name, c.ExamDate})
				}
				t.Render()
				return nil
			})
		},
	}
	return cmd
}

func courseUpdateCmd() *cobra.Command {
	var code, name, examDate string
	cmd := &cobra.Command{
		Use:   "update <course-id>",
		Short: "Update a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var codePtr, namePtr, datePtr *string
			if cmd.Flags().Changed("code") {
				codePtr = &code
			}
			if cmd.Flags().Changed("name") {
				namePtr = &name
			}
			if cmd.Flags().Changed("exam-date") {
				datePtr = &examDate
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *pipeline.Engine, s domain.Session) error {
				if err := e.Repo.UpdateCourse(ctx, args[0], codePtr, namePtr, datePtr); err != nil {
					return err
				}
				c, err := e.Repo.GetCourse(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "course code")
	cmd.Flags().StringVar(&name, "name", "", "course name")
	cmd.Flags().StringVar(&examDate, "exam-date", "", "exam date (YYYY-MM-DD)")
	return cmd
}

func docCmd() *cobra.Command {
	doc := &cobra.Command{
		Use:   "doc",
		Short: "Manage course documents",
		Long:  "Documents are the extracted text of a course's syllabus, exam overview or textbook. The pipeline reads whichever are present and falls back gracefully for the rest.",
	}
	doc.AddCommand(docAddCmd())
	return doc
}

func docAddCmd() *cobra.Command {
	var courseID, kind, name, file string
	var pages int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Attach a document's text to a course",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.ValidDocKinds[kind] {
				return fmt.Errorf("kind must be syllabus, exam_overview or textbook")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			text := string(data)
			if pages == 0 {
				pages = stage.CountPages(text)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *pipeline.Engine, s domain.Session) error {
				if _, err := e.Repo.GetCourse(ctx, courseID); err != nil {
					return err
				}
				d := domain.DocumentRef{
					ID:        newID(),
					CourseID:  courseID,
					Kind:      domain.DocKind(kind),
					Name:      name,
					Text:      text,
					PageCount: pages,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertDocument(ctx, d); err != nil {
					return err
				}
				fmt.Printf("Attached %s (%d chars) to course %s\n", kind, len(text), courseID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&courseID, "course", "", "course id")
	cmd.Flags().StringVar(&kind, "kind", "", "syllabus, exam_overview or textbook")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&file, "file", "", "path to the extracted text file")
	cmd.Flags().IntVar(&pages, "pages", 0, "page count, if known")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func planCmd() *cobra.Command {
	plan := &cobra.Command{
		Use:   "plan",
		Short: "Generate and inspect study plans",
	}
	plan.AddCommand(planRunCmd())
	plan.AddCommand(planShowCmd())
	plan.AddCommand(planExportCmd())
	return plan
}

func planRunCmd() *cobra.Command {
	var weekday, weekend float64
	var noStudy []string
	var review string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the planning pipeline and follow its progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *pipeline.Engine, s domain.Session) error {
				cons := domain.Constraints{
					WeekdayHours:    weekday,
					WeekendHours:    weekend,
					NoStudyDates:    noStudy,
					ReviewFrequency: domain.ReviewCadence(review),
				}
				run, err := e.Start(ctx, pipeline.StartOptions{SessionID: s.ID, Constraints: cons})
				if err != nil {
					return err
				}
				fmt.Printf("Run %s started\n", run.ID)
				return followRun(ctx, e.Log, run.ID)
			})
		},
	}
	cmd.Flags().Float64Var(&weekday, "weekday-hours", 0, "weekday budget in hours (0 = config default)")
	cmd.Flags().Float64Var(&weekend, "weekend-hours", 0, "weekend budget in hours (0 = config default)")
	cmd.Flags().StringSliceVar(&noStudy, "no-study", nil, "blocked dates (YYYY-MM-DD, repeatable)")
	cmd.Flags().StringVar(&review, "review", "", "review cadence: daily, every_2_days, weekly")
	return cmd
}

// followRun polls the progress log and prints new entries until the
// terminal event arrives. Polling keeps the CLI correct even if it ever
// runs against a pipeline it did not start itself.
func followRun(ctx context.Context, log events.Log, runID string) error {
	var lastID int64
	for {
		snapshot, err := log.Snapshot(ctx, runID)
		if err != nil {
			return err
		}
		for _, ev := range snapshot {
			if ev.ID <= lastID {
				continue
			}
			lastID = ev.ID
			fmt.Printf("[%s] %-18s %s\n", ev.Timestamp, ev.Agent, ev.Message)
			if ev.Done {
				if ev.Status == domain.StatusError {
					return fmt.Errorf("run failed: %s", ev.Message)
				}
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(300 * time.Millisecond):
		}
	}
}

func planShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the latest study plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *pipeline.Engine, s domain.Session) error {
				tasks, err := latestPlan(ctx, e, s.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"Date", "Course", "Topic", "Task Type", "Hours"})
				for _, task := range tasks {
					t.AppendRow(table.Row{task.Date, task.Course, task.Topic, task.Kind, task.DurationHours})
				}
				t.Render()
				return nil
			})
		},
	}
	return cmd
}

func planExportCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the latest plan as CSV or Markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *pipeline.Engine, s domain.Session) error {
				tasks, err := latestPlan(ctx, e, s.ID)
				if err != nil {
					return err
				}
				w := os.Stdout
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				switch format {
				case "csv":
					return export.WriteCSV(w, tasks)
				case "md", "markdown":
					return export.WriteMarkdown(w, tasks)
				default:
					return fmt.Errorf("format must be csv or md")
				}
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv or md")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}

func latestPlan(ctx context.Context, e *pipeline.Engine, sessionID string) ([]domain.StudyTask, error) {
	run, err := e.Repo.LatestRun(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("no run yet; start one with prepx plan run")
		}
		return nil, err
	}
	switch run.Status {
	case domain.RunRunning:
		return nil, fmt.Errorf("run %s is still processing", run.ID)
	case domain.RunFailed:
		return nil, fmt.Errorf("run %s failed: %s", run.ID, run.Error)
	}
	return e.Repo.ListTasks(ctx, run.ID)
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Inspect run progress logs"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest run's progress log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *pipeline.Engine, s domain.Session) error {
				run, err := e.Repo.LatestRun(ctx, s.ID)
				if err != nil {
					return err
				}
				snapshot, err := e.Log.Snapshot(ctx, run.ID)
				if err != nil {
					return err
				}
				if n > 0 && len(snapshot) > n {
					snapshot = snapshot[len(snapshot)-n:]
				}
				if viper.GetBool("json") {
					return printJSON(snapshot)
				}
				for _, ev := range snapshot {
					fmt.Printf("[%s] %-18s %-7s %s\n", ev.Timestamp, ev.Agent, ev.Status, ev.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 50, "number of entries")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			client := extract.NewHTTPClient(extract.ClientConfig{
				Endpoint:   cfg.Extractor.Endpoint,
				Model:      cfg.Extractor.Model,
				MaxRetries: cfg.Extractor.MaxRetries,
				Timeout:    time.Duration(cfg.Extractor.TimeoutMs) * time.Millisecond,
			}, extract.NewLogObserver(os.Stderr))
			e := pipeline.New(conn, cfg, client)
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving PrepX API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path")
	return cmd
}

// --- helpers ---

func newID() string { return uuid.NewString() }

func withEngine(ctx context.Context, fn func(context.Context, *pipeline.Engine, domain.Session) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	client := extract.NewHTTPClient(extract.ClientConfig{
		Endpoint:   cfg.Extractor.Endpoint,
		Model:      cfg.Extractor.Model,
		MaxRetries: cfg.Extractor.MaxRetries,
		Timeout:    time.Duration(cfg.Extractor.TimeoutMs) * time.Millisecond,
	}, extract.NewLogObserver(os.Stderr))
	e := pipeline.New(conn, cfg, client)
	s, err := app.ResolveSession(ctx, viper.GetString("session"), e.Repo)
	if err != nil {
		return err
	}
	return fn(ctx, e, s)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
