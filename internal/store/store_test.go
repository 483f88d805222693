package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pavelanni/examreader/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSheet(id string, answered int, completed time.Time) model.AnswerSheet {
	sheet := model.AnswerSheet{
		SessionID:      id,
		ExamTitle:      "Biology " + id,
		CompletedAt:    &completed,
		TotalQuestions: 2,
		AnsweredCount:  answered,
	}
	for i := 0; i < 2; i++ {
		e := model.SheetEntry{QuestionNumber: i + 1, Label: "Q", QuestionText: "text", Answer: model.Unanswered, Status: model.Unanswered}
		if i < answered {
			e.Answer, e.Status = "A", model.Answered
		}
		sheet.Answers = append(sheet.Answers, e)
	}
	sheet.CompletionPercentage = float64(answered) * 50
	return sheet
}

func TestAnswerSheetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetAnswerSheet("missing")
	if err != nil || got != nil {
		t.Fatalf("GetAnswerSheet(missing) = %v, %v; want nil, nil", got, err)
	}

	completed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.SaveAnswerSheet(testSheet("s1", 1, completed)); err != nil {
		t.Fatalf("SaveAnswerSheet: %v", err)
	}
	got, err = s.GetAnswerSheet("s1")
	if err != nil || got == nil {
		t.Fatalf("GetAnswerSheet: %v, %v", got, err)
	}
	if got.AnsweredCount != 1 || len(got.Answers) != 2 || got.Answers[0].Answer != "A" {
		t.Errorf("sheet = %+v", got)
	}
	if !got.CompletedAt.Equal(completed) {
		t.Errorf("completed at = %v", got.CompletedAt)
	}
}

func TestSaveAnswerSheetUpsert(t *testing.T) {
	s := newTestStore(t)
	completed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := s.SaveAnswerSheet(testSheet("s1", 1, completed)); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAnswerSheet(testSheet("s1", 2, completed)); err != nil {
		t.Fatalf("second save: %v", err)
	}

	count, err := s.AnswerSheetCount()
	if err != nil || count != 1 {
		t.Fatalf("AnswerSheetCount = %d, %v; want 1", count, err)
	}
	got, _ := s.GetAnswerSheet("s1")
	if got.AnsweredCount != 2 {
		t.Errorf("upsert kept the old sheet: %+v", got)
	}
}

func TestListAndExportSheets(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	written := base
	s.now = func() time.Time { return written }

	for i, id := range []string{"b", "a", "c"} {
		written = base.Add(time.Duration(i) * time.Minute)
		if err := s.SaveAnswerSheet(testSheet(id, i%3, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListAnswerSheets()
	if err != nil {
		t.Fatalf("ListAnswerSheets: %v", err)
	}
	if len(list) != 3 || list[0].SessionID != "c" || list[2].SessionID != "b" {
		t.Fatalf("list order = %+v", list)
	}
	if list[0].CompletedAt == nil || list[0].ExamTitle != "Biology c" {
		t.Errorf("summary = %+v", list[0])
	}

	export, err := s.ExportAllSheets()
	if err != nil {
		t.Fatalf("ExportAllSheets: %v", err)
	}
	if export.Count != 3 || export.Sheets[0].SessionID != "b" || export.Sheets[2].SessionID != "c" {
		t.Errorf("export = %+v", export)
	}
}

func TestExportEmpty(t *testing.T) {
	s := newTestStore(t)
	export, err := s.ExportAllSheets()
	if err != nil {
		t.Fatal(err)
	}
	if export.Count != 0 || export.Sheets == nil {
		t.Errorf("empty export = %+v", export)
	}
}

func TestExtractionCache(t *testing.T) {
	s := newTestStore(t)
	hash := TextHash("Question 1: What is 2+2?")
	if hash != TextHash("Question 1: What is 2+2?") || hash == TextHash("other") {
		t.Fatal("TextHash is not a stable content hash")
	}

	_, _, ok, err := s.GetCachedQuestions(hash)
	if err != nil || ok {
		t.Fatalf("empty cache: ok = %v, err = %v", ok, err)
	}

	qs := []model.Question{{Number: "1", Text: "What is 2+2?", Options: []model.Option{{Label: "A)", Text: "4"}}}}
	if err := s.PutCachedQuestions(hash, "fallback", qs); err != nil {
		t.Fatalf("PutCachedQuestions: %v", err)
	}
	got, tier, ok, err := s.GetCachedQuestions(hash)
	if err != nil || !ok {
		t.Fatalf("GetCachedQuestions: ok = %v, err = %v", ok, err)
	}
	if tier != "fallback" || len(got) != 1 || got[0].Options[0].Text != "4" {
		t.Errorf("cached = %+v (%s)", got, tier)
	}

	if err := s.PutCachedQuestions(hash, "remote", qs); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, tier, _, _ := s.GetCachedQuestions(hash); tier != "remote" {
		t.Errorf("tier after overwrite = %q", tier)
	}
}

func TestAdminAuth(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.AuthenticateAdmin("admin", "secret")
	if err != nil || ok {
		t.Fatalf("no admin yet: ok = %v, err = %v", ok, err)
	}
	if err := s.UpsertAdmin("admin", "secret"); err != nil {
		t.Fatalf("UpsertAdmin: %v", err)
	}
	if ok, _ := s.AuthenticateAdmin("admin", "secret"); !ok {
		t.Error("correct password rejected")
	}
	if ok, _ := s.AuthenticateAdmin("admin", "wrong"); ok {
		t.Error("wrong password accepted")
	}

	if err := s.UpsertAdmin("admin", "new-secret"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if ok, _ := s.AuthenticateAdmin("admin", "secret"); ok {
		t.Error("old password still accepted")
	}
	if n, _ := s.AdminCount(); n != 1 {
		t.Errorf("AdminCount = %d, want 1", n)
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "examreader.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New(%q): %v", path, err)
	}
	defer s.Close()
	if err := s.SaveAnswerSheet(testSheet("x", 0, time.Now())); err != nil {
		t.Errorf("save on file database: %v", err)
	}
}

func TestNewRejectsNonDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	junk := bytes.Repeat([]byte("not a sqlite database\n"), 200)
	if err := os.WriteFile(path, junk, 0o644); err != nil {
		t.Fatal(err)
	}
	if s, err := New(path); err == nil {
		s.Close()
		t.Fatal("expected error opening a non-database file")
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, junk) {
		t.Error("file was modified")
	}
}
