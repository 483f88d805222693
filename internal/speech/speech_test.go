package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func newDir(t *testing.T) *Dir {
	t.Helper()
	d, err := NewDir(filepath.Join(t.TempDir(), "audio"))
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	return d
}

func readAudio(t *testing.T, d *Dir, name string) string {
	t.Helper()
	f, err := d.Open(name)
	if err != nil {
		t.Fatalf("Open(%q): %v", name, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestOpenAISynthesizer(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake"))
	}))
	defer srv.Close()

	d := newDir(t)
	s := NewOpenAISynthesizer(NewOpenAIClient(srv.URL+"/v1", "key"), "", "nova", d)

	name, err := s.Synthesize(context.Background(), "Question 1 of 3.", true)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.HasSuffix(name, ".mp3") {
		t.Errorf("name = %q, want .mp3", name)
	}
	if body := readAudio(t, d, name); body != "ID3fake" {
		t.Errorf("audio = %q", body)
	}
	if got["input"] != "Question 1 of 3." || got["voice"] != "nova" || got["model"] != "tts-1" {
		t.Errorf("request = %v", got)
	}
	if got["speed"] != SlowSpeed {
		t.Errorf("speed = %v, want %v", got["speed"], SlowSpeed)
	}
}

func TestOpenAISynthesizerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := newDir(t)
	s := NewOpenAISynthesizer(NewOpenAIClient(srv.URL+"/v1", "key"), "", "", d)
	if _, err := s.Synthesize(context.Background(), "hello", false); err == nil {
		t.Fatal("expected error")
	}
	if _, err := s.Synthesize(context.Background(), "  ", false); err == nil {
		t.Fatal("expected error for empty text")
	}
	entries, _ := os.ReadDir(d.Path())
	if len(entries) != 0 {
		t.Errorf("failed synthesis left %d files", len(entries))
	}
}

func TestOpenAITranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("response_format") != "verbose_json" {
			http.Error(w, "want verbose_json", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task":"transcribe","language":"english","duration":1.2,"text":" next question ","segments":[{"id":0,"avg_logprob":0},{"id":1,"avg_logprob":-0.6931471805599453}]}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranscriber(NewOpenAIClient(srv.URL+"/v1", "key"), "", "en")
	got, err := tr.Transcribe(context.Background(), strings.NewReader("RIFFfake"), "cmd.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "next question" {
		t.Errorf("text = %q", got.Text)
	}
	if got.Confidence != 0.75 {
		t.Errorf("confidence = %v, want 0.75", got.Confidence)
	}
}

func TestCommandSynthesizer(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}
	bin := filepath.Join(t.TempDir(), "fake-espeak")
	// $2 is the -w output path; $4 is the rate.
	script := "#!/bin/sh\nprintf '%s:' \"$4\" > \"$2\"\ncat >> \"$2\"\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	d := newDir(t)
	s := NewCommandSynthesizer(bin, "", d)
	name, err := s.Synthesize(context.Background(), "hello there", true)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.HasSuffix(name, ".wav") {
		t.Errorf("name = %q", name)
	}
	if body := readAudio(t, d, name); body != "120:hello there" {
		t.Errorf("audio = %q", body)
	}

	failing := NewCommandSynthesizer(filepath.Join(t.TempDir(), "missing"), "", d)
	if _, err := failing.Synthesize(context.Background(), "hi", false); err == nil {
		t.Error("expected error for missing program")
	}
}

func TestDirOpenRejectsForeignNames(t *testing.T) {
	d := newDir(t)
	for _, name := range []string{"../secret.mp3", "notes.txt", "", "a/b.wav"} {
		if _, err := d.Open(name); err != ErrInvalidName {
			t.Errorf("Open(%q) err = %v, want ErrInvalidName", name, err)
		}
	}
	if ContentType("x.wav") != "audio/wav" || ContentType("x.mp3") != "audio/mpeg" {
		t.Error("unexpected content types")
	}
}
