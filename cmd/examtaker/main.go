package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openexams/examtaker/internal/export"
	"github.com/openexams/examtaker/internal/grader"
	"github.com/openexams/examtaker/internal/handler"
	"github.com/openexams/examtaker/internal/migrate"
	"github.com/openexams/examtaker/internal/model"
	"github.com/openexams/examtaker/internal/session"
	"github.com/openexams/examtaker/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examtaker",
		Short: "Local exam-taking app with AI-assisted grading",
	}

	serve := serveCmd()
	root.AddCommand(serve, migrateCmd(), gradeCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examtaker --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "examtaker.db", "SQLite database path")
	addLLMFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <exam.json>",
		Short: "Upgrade an exam document to the current protocol version",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrate,
	}
	f := cmd.Flags()
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Run AI grading over the completed exam in the database",
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.String("db", "examtaker.db", "SQLite database path")
	addLLMFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the current exam as a JSON dump or Markdown report",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "examtaker.db", "SQLite database path")
	f.StringP("format", "f", "markdown", "Output format (markdown, json)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for LLM (empty disables AI grading)")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Float64("llm-temperature", 0.7, "LLM sampling temperature")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMTAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examtaker")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examtaker")
	v.AddConfigPath("/etc/examtaker")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// newGraderClient builds the grading client from flags, or returns nil when
// no API key is configured.
func newGraderClient(v *viper.Viper) (*grader.OpenAIClient, error) {
	key := v.GetString("llm-key")
	if key == "" {
		return nil, nil
	}
	return grader.NewOpenAIClient(grader.Config{
		BaseURL:     v.GetString("llm-url"),
		APIKey:      key,
		Model:       v.GetString("llm-model"),
		Temperature: float32(v.GetFloat64("llm-temperature")),
	})
}

// restoreSession rehydrates the session from a previous run, if one was saved.
func restoreSession(sess *session.Session, db *store.Store) error {
	phase, studyMode, exam, rec, err := db.LoadSession()
	if err != nil {
		return err
	}
	if phase == session.PhaseEmpty {
		return nil
	}
	sess.Restore(phase, studyMode, exam, rec)
	slog.Info("restored session", "phase", phase, "study_mode", studyMode)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	sess := session.New()
	if err := restoreSession(sess, db); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	client, err := newGraderClient(v)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	var grading grader.Client
	if client != nil {
		grading = client
		slog.Info("AI grading enabled", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	} else {
		slog.Info("AI grading disabled: no API key configured")
	}

	h := handler.New(sess, db, grading)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server", "addr", addr, "db", v.GetString("db"))
	return http.ListenAndServe(addr, r)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	exam, err := model.Parse(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	upgraded, logLines, err := migrate.Migrate(exam)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", args[0], err)
	}
	for _, line := range logLines {
		fmt.Fprintln(os.Stderr, line)
	}

	out, err := json.MarshalIndent(upgraded, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return writeOutput(v.GetString("output"), append(out, '\n'))
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	phase, studyMode, exam, rec, err := db.LoadSession()
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if phase != session.PhaseCompleted {
		return fmt.Errorf("no completed exam to grade (phase %q)", phase)
	}

	client, err := newGraderClient(v)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	if client == nil {
		return fmt.Errorf("AI grading requires an API key: set --llm-key or EXAMTAKER_LLM_KEY")
	}

	questions := grader.Collect(exam)
	if len(questions) == 0 {
		fmt.Println("No AI-judged answers to grade.")
		return nil
	}

	reports := grader.GradeAll(context.Background(), questions, rec, client, func(r grader.Report) {
		fmt.Printf("%s: %s\n", r.QuestionID, r.Status)
	})

	if err := db.SaveSession(phase, studyMode, exam, rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := db.AppendHistory(rec); err != nil {
		return fmt.Errorf("update history: %w", err)
	}

	failed := 0
	for _, r := range reports {
		if r.Status == grader.StatusError {
			failed++
		}
	}
	fmt.Printf("Graded %d questions (%d failed). Score: %g/%g\n",
		len(reports), failed, rec.ObtainedScore, rec.TotalScore)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	phase, _, exam, rec, err := db.LoadSession()
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if phase == session.PhaseEmpty || exam == nil {
		return fmt.Errorf("no exam in the database")
	}

	var out []byte
	switch strings.ToLower(v.GetString("format")) {
	case "json":
		out, err = export.JSON(exam)
		if err != nil {
			return fmt.Errorf("export JSON: %w", err)
		}
		out = append(out, '\n')
	case "markdown", "md":
		md, err := export.Markdown(exam, rec, nil)
		if err != nil {
			return fmt.Errorf("export Markdown: %w", err)
		}
		out = []byte(md)
	default:
		return fmt.Errorf("unknown format %q (want markdown or json)", v.GetString("format"))
	}

	return writeOutput(v.GetString("output"), out)
}

func writeOutput(path string, data []byte) error {
	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
