package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

type synthesizeRequest struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RemoteSpeaker asks an HTTP text-to-speech service for audio and hands the
// decoded clip to a Player. The service answers POST {text, languageCode}
// with {audioContent} holding base64 audio.
type RemoteSpeaker struct {
	httpClient *resty.Client
	endpoint   string
	player     Player
	logger     zerolog.Logger
}

func NewRemoteSpeaker(endpoint, apiKey string, player Player, logger zerolog.Logger) *RemoteSpeaker {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &RemoteSpeaker{
		httpClient: client,
		endpoint:   endpoint,
		player:     player,
		logger:     logger.With().Str("component", "speech.remote").Logger(),
	}
}

// Synthesize returns the raw audio for text.
func (s *RemoteSpeaker) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	var result synthesizeResponse
	var apiErr errorResponse
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(synthesizeRequest{Text: text, LanguageCode: lang}).
		SetResult(&result).
		SetError(&apiErr).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("call speech service: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("speech service returned %d: %s", resp.StatusCode(), apiErr.Error)
	}
	if result.AudioContent == "" {
		return nil, fmt.Errorf("speech service returned no audio")
	}

	audio, err := base64.StdEncoding.DecodeString(result.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return audio, nil
}

func (s *RemoteSpeaker) Speak(ctx context.Context, text, lang string) error {
	audio, err := s.Synthesize(ctx, text, lang)
	if err != nil {
		return err
	}
	s.logger.Debug().Int("bytes", len(audio)).Str("lang", lang).Msg("audio synthesized")
	return s.player.Play(ctx, audio)
}
