// Package tts synthesizes reply audio through a speech engine, caches the
// blobs and tracks the monthly character budget.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/openai/openai-go/v3"
)

var ErrNoSynthesizer = errors.New("tts: no synthesizer configured")

// Synthesizer turns text into an encoded audio blob.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audio []byte, format string, err error)
}

type OpenAISynth struct {
	client openai.Client
	model  string
	voice  string
	format string
}

func NewOpenAISynth(client openai.Client, model, voice string) *OpenAISynth {
	if model == "" {
		model = openai.SpeechModelGPT4oMiniTTS
	}
	if voice == "" {
		voice = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}
	return &OpenAISynth{client: client, model: model, voice: voice, format: string(openai.AudioSpeechNewParamsResponseFormatMP3)}
}

func (s *OpenAISynth) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          s.model,
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(s.format),
	})
	if err != nil {
		return nil, "", fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read speech audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", errors.New("speech request returned no audio")
	}
	return audio, s.format, nil
}
