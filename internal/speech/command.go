package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Words per minute for the command synthesizer.
const (
	normalRate = 165
	slowRate   = 120
)

// CommandSynthesizer runs an espeak-compatible program:
//
//	<bin> -w <out.wav> -s <rate> [-v <voice>] --stdin
//
// with the narration on standard input.
type CommandSynthesizer struct {
	bin   string
	voice string
	dir   *Dir
}

// NewCommandSynthesizer creates a synthesizer. An empty bin defaults to espeak-ng.
func NewCommandSynthesizer(bin, voice string, dir *Dir) *CommandSynthesizer {
	if bin == "" {
		bin = "espeak-ng"
	}
	return &CommandSynthesizer{bin: bin, voice: voice, dir: dir}
}

// WithVoice returns a copy passing -v id to the program.
func (s *CommandSynthesizer) WithVoice(id string) Synthesizer {
	c := *s
	c.voice = id
	return &c
}

// Synthesize renders text to a wav file.
func (s *CommandSynthesizer) Synthesize(ctx context.Context, text string, slower bool) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("nothing to synthesize")
	}
	rate := normalRate
	if slower {
		rate = slowRate
	}
	name, full := s.dir.newFile("wav")
	args := []string{"-w", full, "-s", strconv.Itoa(rate)}
	if s.voice != "" {
		args = append(args, "-v", s.voice)
	}
	args = append(args, "--stdin")

	cmd := exec.CommandContext(ctx, s.bin, args...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("%s: %w: %s", s.bin, err, strings.TrimSpace(stderr.String()))
	}
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("%s produced no audio: %w", s.bin, err)
	}
	return name, nil
}
