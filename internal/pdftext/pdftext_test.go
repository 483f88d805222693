package pdftext

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func fakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}
	bin := filepath.Join(t.TempDir(), "pdftotext")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin
}

func TestExtractFile(t *testing.T) {
	// Arguments are: -layout -enc UTF-8 <file> -
	bin := fakeTool(t, "cat \"$4\"\n")
	pdf := filepath.Join(t.TempDir(), "exam.pdf")
	if err := os.WriteFile(pdf, []byte("Question 1: What is 2+2?\nA) 3\nB) 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	text, err := New(bin).ExtractFile(context.Background(), pdf)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if text != "Question 1: What is 2+2?\nA) 3\nB) 4\n" {
		t.Errorf("text = %q", text)
	}
}

func TestExtractFileErrors(t *testing.T) {
	t.Run("tool fails", func(t *testing.T) {
		bin := fakeTool(t, "echo 'Syntax Error: broken' >&2\nexit 1\n")
		if _, err := New(bin).ExtractFile(context.Background(), "x.pdf"); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("no text", func(t *testing.T) {
		bin := fakeTool(t, "printf '\\f  \\n'\n")
		_, err := New(bin).ExtractFile(context.Background(), "scan.pdf")
		if !errors.Is(err, ErrNoText) {
			t.Errorf("err = %v, want ErrNoText", err)
		}
	})
}
