package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// SlowSpeed is the playback speed used for "repeat slower".
const SlowSpeed = 0.75

// OpenAISynthesizer uses an OpenAI-compatible speech endpoint.
type OpenAISynthesizer struct {
	api   *openai.Client
	model string
	voice string
	dir   *Dir
}

// NewOpenAIClient builds the API client shared by the synthesizer and the transcriber.
func NewOpenAIClient(baseURL, apiKey string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// NewOpenAISynthesizer creates a synthesizer writing mp3 files into dir.
func NewOpenAISynthesizer(api *openai.Client, model, voice string, dir *Dir) *OpenAISynthesizer {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAISynthesizer{api: api, model: model, voice: voice, dir: dir}
}

// WithVoice returns a copy speaking with voice id.
func (s *OpenAISynthesizer) WithVoice(id string) Synthesizer {
	c := *s
	c.voice = id
	return &c
}

// Voices lists the built-in voices of the speech endpoint.
func (s *OpenAISynthesizer) Voices() []Voice {
	ids := []openai.SpeechVoice{
		openai.VoiceAlloy, openai.VoiceEcho, openai.VoiceFable,
		openai.VoiceOnyx, openai.VoiceNova, openai.VoiceShimmer,
	}
	voices := make([]Voice, 0, len(ids))
	for _, id := range ids {
		voices = append(voices, Voice{ID: string(id), Name: strings.ToUpper(string(id[:1])) + string(id[1:])})
	}
	return voices
}

// Synthesize renders text to an mp3 file.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string, slower bool) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("nothing to synthesize")
	}
	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}
	if slower {
		req.Speed = SlowSpeed
	}
	resp, err := s.api.CreateSpeech(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	name, full := s.dir.newFile("mp3")
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(f, resp); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close audio file: %w", err)
	}
	return name, nil
}

// OpenAITranscriber uses an OpenAI-compatible transcription endpoint.
type OpenAITranscriber struct {
	api      *openai.Client
	model    string
	language string
}

// NewOpenAITranscriber creates a transcriber. language may be empty for autodetection.
func NewOpenAITranscriber(api *openai.Client, model, language string) *OpenAITranscriber {
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAITranscriber{api: api, model: model, language: language}
}

// Transcribe sends the clip for recognition. Confidence is the mean segment
// probability derived from the average log-probabilities.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (Transcription, error) {
	if filename == "" {
		filename = "command.webm"
	}
	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: filename,
		Reader:   audio,
		Language: t.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcription{}, fmt.Errorf("create transcription: %w", err)
	}

	tr := Transcription{Text: strings.TrimSpace(resp.Text), Language: resp.Language}
	if n := len(resp.Segments); n > 0 {
		var sum float64
		for _, seg := range resp.Segments {
			sum += math.Exp(seg.AvgLogprob)
		}
		tr.Confidence = math.Round(sum/float64(n)*100) / 100
	}
	return tr, nil
}
