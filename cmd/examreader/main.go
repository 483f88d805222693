package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/examreader/internal/assistant"
	"github.com/pavelanni/examreader/internal/command"
	"github.com/pavelanni/examreader/internal/exam"
	"github.com/pavelanni/examreader/internal/extract"
	"github.com/pavelanni/examreader/internal/handler"
	appI18n "github.com/pavelanni/examreader/internal/i18n"
	"github.com/pavelanni/examreader/internal/llm"
	"github.com/pavelanni/examreader/internal/model"
	"github.com/pavelanni/examreader/internal/pdftext"
	"github.com/pavelanni/examreader/internal/speech"
	"github.com/pavelanni/examreader/internal/store"
)

//go:generate templ generate -path ../../internal

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examreader",
		Short: "Voice-driven exam reader for blind and visually impaired students",
	}

	serve := serveCmd()
	root.AddCommand(serve, extractCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examreader --addr ...` still works.
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
	f.String("db", "examreader.db", "SQLite database path")
	f.StringP("lang", "l", "en", "Narration language (en, ru)")
	addLLMFlags(f)
	f.String("tts-backend", "none", "Speech synthesis backend (openai, command, none)")
	f.String("tts-command", "espeak-ng", "Synthesizer program for the command backend")
	f.String("tts-model", "tts-1", "Speech synthesis model")
	f.String("tts-voice", "alloy", "Speech synthesis voice")
	f.String("stt-backend", "none", "Speech transcription backend (openai, none)")
	f.String("stt-model", "whisper-1", "Speech transcription model")
	f.String("audio-dir", "audio", "Directory for generated narration audio")
	f.String("pdftotext", "pdftotext", "Path to the pdftotext program")
	f.Duration("session-ttl", exam.DefaultTTL, "Idle time after which a session expires")
	f.String("admin-password", "", "Admin password for /api/admin (or set EXAMREADER_ADMIN_PASSWORD)")
	addLogFlags(f)
	return cmd
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract questions from a PDF or text file and print them as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}
	f := cmd.Flags()
	addLLMFlags(f)
	f.String("pdftotext", "pdftotext", "Path to the pdftotext program")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored answer sheets as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "examreader.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func addLLMFlags(f *pflag.FlagSet) {
	f.String("llm-backend", "openai", "Remote model backend (openai, anythingllm, none)")
	f.String("llm-url", "http://localhost:11434/v1", "Remote model API base URL")
	f.String("llm-key", "ollama", "API key for the remote model")
	f.String("llm-model", "llama3.2", "Remote model name (openai backend)")
	f.String("llm-workspace", "exams", "Workspace slug (anythingllm backend)")
	f.Duration("llm-timeout", llm.DefaultTimeout, "Timeout for one remote model call")
	f.Int("max-prompt-chars", 0, "Exam text characters sent to the remote model (0 = default)")
}

func addLogFlags(f *pflag.FlagSet) {
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

	v.SetEnvPrefix("EXAMREADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examreader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examreader")
	v.AddConfigPath("/etc/examreader")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// newCompleter builds the configured remote model client. It returns nil when
// the backend is disabled or unreachable, which leaves only the local tiers.
func newCompleter(ctx context.Context, v *viper.Viper) llm.Completer {
	var c llm.Completer
	backend := strings.ToLower(v.GetString("llm-backend"))
	switch backend {
	case "openai":
		c = llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), v.GetDuration("llm-timeout"))
	case "anythingllm":
		c = llm.NewAnythingLLM(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-workspace"), v.GetDuration("llm-timeout"))
	case "none", "":
		slog.Info("remote model disabled")
		return nil
	default:
		slog.Warn("unknown llm-backend, remote model disabled", "backend", backend)
		return nil
	}

	if err := c.Ping(ctx); err != nil {
		slog.Warn("remote model unreachable, using local parsers only", "backend", backend, "url", v.GetString("llm-url"), "error", err)
		return nil
	}
	slog.Info("remote model OK", "backend", backend, "url", v.GetString("llm-url"))
	return c
}

func newSynthesizer(v *viper.Viper, dir *speech.Dir) speech.Synthesizer {
	switch backend := strings.ToLower(v.GetString("tts-backend")); backend {
	case "openai":
		api := speech.NewOpenAIClient(v.GetString("llm-url"), v.GetString("llm-key"))
		return speech.NewOpenAISynthesizer(api, v.GetString("tts-model"), v.GetString("tts-voice"), dir)
	case "command":
		return speech.NewCommandSynthesizer(v.GetString("tts-command"), "", dir)
	case "none", "":
		return nil
	default:
		slog.Warn("unknown tts-backend, speech synthesis disabled", "backend", backend)
		return nil
	}
}

func newTranscriber(v *viper.Viper) speech.Transcriber {
	switch backend := strings.ToLower(v.GetString("stt-backend")); backend {
	case "openai":
		api := speech.NewOpenAIClient(v.GetString("llm-url"), v.GetString("llm-key"))
		return speech.NewOpenAITranscriber(api, v.GetString("stt-model"), v.GetString("lang"))
	case "none", "":
		return nil
	default:
		slog.Warn("unknown stt-backend, speech transcription disabled", "backend", backend)
		return nil
	}
}

func newInterpreter(c llm.Completer) command.Interpreter {
	if c == nil {
		return command.Pattern{}
	}
	return command.Fallback{Primary: command.NewRemote(c), Secondary: command.Pattern{}}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if password := v.GetString("admin-password"); password != "" {
		if err := db.UpsertAdmin("admin", password); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		slog.Info("admin account ready", "username", "admin")
	} else if n, err := db.AdminCount(); err == nil && n == 0 {
		slog.Warn("no admin password set, admin endpoints are inaccessible")
	}

	audio, err := speech.NewDir(v.GetString("audio-dir"))
	if err != nil {
		return fmt.Errorf("create audio dir: %w", err)
	}

	completer := newCompleter(ctx, v)
	synth := newSynthesizer(v, audio)
	stt := newTranscriber(v)

	ttl := v.GetDuration("session-ttl")
	sessions := exam.NewStore(ttl, nil)
	go sessions.RunSweeper(ctx, sweepInterval(ttl))

	a := assistant.New(assistant.Deps{
		Extractor:   extract.New(completer, v.GetInt("max-prompt-chars")),
		Interpreter: newInterpreter(completer),
		Sessions:    sessions,
		Store:       db,
		Synthesizer: synth,
		Transcriber: stt,
		PDF:         pdftext.New(v.GetString("pdftotext")),
	})

	backends := map[string]string{
		"llm": backendName(v.GetString("llm-backend"), completer != nil),
		"tts": backendName(v.GetString("tts-backend"), synth != nil),
		"stt": backendName(v.GetString("stt-backend"), stt != nil),
	}
	h := handler.New(handler.Config{
		Assistant: a,
		Store:     db,
		Audio:     audio,
		Backends:  backends,
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"llm", backends["llm"],
		"tts", backends["tts"],
		"stt", backends["stt"],
		"session_ttl", ttl,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func backendName(configured string, enabled bool) string {
	if !enabled {
		return "none"
	}
	return strings.ToLower(configured)
}

// sweepInterval checks for idle sessions a few times per TTL.
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = exam.DefaultTTL
	}
	return max(ttl/8, time.Minute)
}

func runExtract(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	path := args[0]
	var text string
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		t, err := pdftext.New(v.GetString("pdftotext")).ExtractFile(ctx, path)
		if err != nil {
			return fmt.Errorf("extract text from %s: %w", path, err)
		}
		text = t
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		text = string(data)
	}

	res := extract.New(newCompleter(ctx, v), v.GetInt("max-prompt-chars")).ExtractWithTier(ctx, text)
	out := struct {
		Source         string           `json:"source"`
		Tier           string           `json:"extraction_tier"`
		TotalQuestions int              `json:"total_questions"`
		Questions      []model.Question `json:"questions"`
	}{
		Source:         path,
		Tier:           res.Tier,
		TotalQuestions: len(res.Questions),
		Questions:      res.Questions,
	}
	if out.Questions == nil {
		out.Questions = []model.Question{}
	}
	if err := writeOutput(v.GetString("output"), out); err != nil {
		return err
	}
	if len(res.Questions) == 0 {
		return assistant.ErrNoQuestions
	}
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

	export, err := db.ExportAllSheets()
	if err != nil {
		return fmt.Errorf("export answer sheets: %w", err)
	}
	slog.Info("exporting answer sheets", "count", export.Count)
	return writeOutput(v.GetString("output"), export)
}

// writeOutput writes v as indented JSON to outPath, or stdout for "-".
func writeOutput(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
