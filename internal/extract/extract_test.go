package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pavelanni/examreader/internal/llm"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
	last  llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.last = req
	return f.reply, f.err
}

func (f *fakeCompleter) Ping(context.Context) error { return nil }

const sampleExam = `Midterm Exam
Introduction to Biology

Question 1: What is the powerhouse of the cell?
A) Nucleus
B) Mitochondria
C) Ribosome
D) Golgi apparatus

Question 2: Which molecule carries genetic information?
A) ATP
B) DNA
C) Glucose
D) Water
`

func TestExtractRemote(t *testing.T) {
	fc := &fakeCompleter{reply: "```json\n" + `[
		{"question_number": 1, "question_text": "What is 2+2?", "options": [{"label": "A", "text": "3"}, "B) 4"]},
		{"question_number": "2", "question_text": "Name a primary color.", "options": []},
		{"question_number": 3},
		"not an object"
	]` + "\n```"}

	ex := New(fc, 100)
	res := ex.ExtractWithTier(context.Background(), sampleExam)
	if res.Tier != TierRemote {
		t.Fatalf("tier = %q, want remote", res.Tier)
	}
	if len(res.Questions) != 2 {
		t.Fatalf("got %d questions, want 2 (malformed items dropped)", len(res.Questions))
	}
	q := res.Questions[0]
	if q.Number != "1" || q.Text != "What is 2+2?" {
		t.Errorf("question 0 = %+v", q)
	}
	if len(q.Options) != 2 || q.Options[0].Label != "A)" || q.Options[1].Label != "B)" || q.Options[1].Text != "4" {
		t.Errorf("options = %+v", q.Options)
	}
	if res.Questions[1].Number != "2" {
		t.Errorf("string question number not kept: %q", res.Questions[1].Number)
	}
	if fc.calls != 1 {
		t.Errorf("remote called %d times, want exactly 1", fc.calls)
	}
	if strings.Contains(fc.last.User, "Golgi") {
		t.Error("exam text beyond max chars should not be sent")
	}
}

func TestExtractRemoteWrappedObject(t *testing.T) {
	fc := &fakeCompleter{reply: `Here are the questions: {"questions": [{"number": 7, "question": "Which planet is largest?", "options": ["A. Mars", "b) Jupiter"]}]}`}

	qs := New(fc, 0).Extract(context.Background(), sampleExam)
	if len(qs) != 1 {
		t.Fatalf("got %d questions, want 1", len(qs))
	}
	if qs[0].Number != "7" || qs[0].Text != "Which planet is largest?" {
		t.Errorf("question = %+v", qs[0])
	}
	if qs[0].Options[1].Label != "B)" || qs[0].Options[1].Text != "Jupiter" {
		t.Errorf("options = %+v", qs[0].Options)
	}
}

func TestExtractFallsBack(t *testing.T) {
	tests := []struct {
		name string
		fc   *fakeCompleter
	}{
		{"remote error", &fakeCompleter{err: errors.New("connection refused")}},
		{"non json", &fakeCompleter{reply: "I cannot help with that."}},
		{"empty array", &fakeCompleter{reply: "[]"}},
		{"all malformed", &fakeCompleter{reply: `[{"options": []}, 42]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(tt.fc, 0).ExtractWithTier(context.Background(), sampleExam)
			if res.Tier != TierFallback {
				t.Fatalf("tier = %q, want fallback", res.Tier)
			}
			if len(res.Questions) != 2 {
				t.Errorf("got %d questions, want 2", len(res.Questions))
			}
		})
	}
}

func TestExtractRemoteDisabled(t *testing.T) {
	res := New(nil, 0).ExtractWithTier(context.Background(), sampleExam)
	if res.Tier != TierFallback {
		t.Fatalf("tier = %q, want fallback", res.Tier)
	}
	q := res.Questions[1]
	if q.Number != "2" || q.Text != "Which molecule carries genetic information?" {
		t.Errorf("question = %+v", q)
	}
	if len(q.Options) != 4 || q.Options[1].Text != "DNA" {
		t.Errorf("options = %+v", q.Options)
	}
}

func TestExtractEmpty(t *testing.T) {
	fc := &fakeCompleter{}
	res := New(fc, 0).ExtractWithTier(context.Background(), "  \n ")
	if len(res.Questions) != 0 || res.Tier != TierNone {
		t.Errorf("empty text = %+v", res)
	}
	if fc.calls != 0 {
		t.Error("remote should not be called for empty text")
	}

	qs := New(nil, 0).Extract(context.Background(), "This document has no questions at all.")
	if len(qs) != 0 {
		t.Errorf("expected no questions, got %+v", qs)
	}
}

func TestFallbackOneQuestionPerBlock(t *testing.T) {
	for _, n := range []int{1, 2, 5, 12} {
		t.Run(fmt.Sprintf("%d blocks", n), func(t *testing.T) {
			var sb strings.Builder
			for i := 1; i <= n; i++ {
				fmt.Fprintf(&sb, "Question %d: What is the value of item number %d? A) first %d B) second %d\n", i, i, i, i)
			}
			qs := ParseFallback(sb.String())
			if len(qs) != n {
				t.Fatalf("got %d questions, want %d", len(qs), n)
			}
			for i, q := range qs {
				if q.Number != fmt.Sprint(i+1) {
					t.Errorf("question %d number = %q", i, q.Number)
				}
				if len(q.Options) != 2 {
					t.Errorf("question %d options = %+v", i, q.Options)
				}
				if strings.Contains(q.Text, "A)") {
					t.Errorf("option text left in body: %q", q.Text)
				}
			}
		})
	}
}

func TestParseFallbackFormats(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantCount   int
		wantText    string
		wantOptions []string
	}{
		{
			name:        "Q prefix with dotted options",
			text:        "Q1. Which gas do plants absorb?\nA. Oxygen\nB. Carbon dioxide\nQ2. Which organ pumps blood?\nA. Heart\nB. Lung\n",
			wantCount:   2,
			wantText:    "Which gas do plants absorb?",
			wantOptions: []string{"Oxygen", "Carbon dioxide"},
		},
		{
			name:        "bare numbers",
			text:        "1. Who wrote the Odyssey?\n(A) Homer\n(B) Virgil\n2) What is the boiling point of water?\n(A) 90 C\n(B) 100 C\n",
			wantCount:   2,
			wantText:    "Who wrote the Odyssey?",
			wantOptions: []string{"Homer", "Virgil"},
		},
		{
			name:        "lowercase labels",
			text:        "Question 1 - Select the prime number below.\na) 4\nb) 7\nc) 9\n",
			wantCount:   1,
			wantText:    "- Select the prime number below.",
			wantOptions: []string{"4", "7", "9"},
		},
		{
			name:        "bare letters in sequence",
			text:        "Question 1: Pick the largest ocean.\nA Atlantic\nB Pacific\nC Indian\n",
			wantCount:   1,
			wantText:    "Pick the largest ocean.",
			wantOptions: []string{"Atlantic", "Pacific", "Indian"},
		},
		{
			name:        "option continuation lines",
			text:        "Question 1: Which statement is correct?\nA) The earth is flat and\n   rests on a turtle\nB) The earth orbits the sun\n",
			wantCount:   1,
			wantText:    "Which statement is correct?",
			wantOptions: []string{"The earth is flat and rests on a turtle", "The earth orbits the sun"},
		},
		{
			name:      "free text question",
			text:      "Question 1: Describe the water cycle in your own words.\n",
			wantCount: 1,
			wantText:  "Describe the water cycle in your own words.",
		},
		{
			name:      "short bodies dropped",
			text:      "Question 1: Why?\nA) yes\nQuestion 2: Explain photosynthesis briefly.\n",
			wantCount: 1,
			wantText:  "Explain photosynthesis briefly.",
		},
		{
			name:        "windows newlines",
			text:        "Question 1: What colour is the sky?\r\nA) Blue\r\nB) Green\r\n",
			wantCount:   1,
			wantText:    "What colour is the sky?",
			wantOptions: []string{"Blue", "Green"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := ParseFallback(tt.text)
			if len(qs) != tt.wantCount {
				t.Fatalf("got %d questions, want %d: %+v", len(qs), tt.wantCount, qs)
			}
			q := qs[0]
			if q.Text != tt.wantText {
				t.Errorf("text = %q, want %q", q.Text, tt.wantText)
			}
			if len(q.Options) != len(tt.wantOptions) {
				t.Fatalf("options = %+v, want %v", q.Options, tt.wantOptions)
			}
			for i, want := range tt.wantOptions {
				if q.Options[i].Text != want {
					t.Errorf("option %d = %q, want %q", i, q.Options[i].Text, want)
				}
				if wantLabel := string(rune('A'+i)) + ")"; q.Options[i].Label != wantLabel {
					t.Errorf("option %d label = %q, want %q", i, q.Options[i].Label, wantLabel)
				}
			}
		})
	}
}

func TestParseLoose(t *testing.T) {
	text := "Exam\n1 Which element has the symbol O?\nA Oxygen\nB Gold\n2 Which element has the symbol Fe?\nA Iron\nB Tin\n"
	if qs := ParseFallback(text); len(qs) != 0 {
		t.Fatalf("fallback unexpectedly matched: %+v", qs)
	}
	qs := ParseLoose(text)
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2: %+v", len(qs), qs)
	}
	if qs[1].Number != "2" || qs[1].Text != "Which element has the symbol Fe?" {
		t.Errorf("question = %+v", qs[1])
	}
	if len(qs[1].Options) != 2 || qs[1].Options[0].Text != "Iron" {
		t.Errorf("options = %+v", qs[1].Options)
	}

	res := New(nil, 0).ExtractWithTier(context.Background(), text)
	if res.Tier != TierLoose {
		t.Errorf("tier = %q, want loose", res.Tier)
	}
}
