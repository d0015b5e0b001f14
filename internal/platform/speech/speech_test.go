package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingPlayer struct {
	audio []byte
	err   error
}

func (p *recordingPlayer) Play(_ context.Context, audio []byte) error {
	p.audio = audio
	return p.err
}

func TestRemoteSpeaker_Speak(t *testing.T) {
	var got synthesizeRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(synthesizeResponse{
			AudioContent: base64.StdEncoding.EncodeToString([]byte("RIFF-audio")),
		})
	}))
	defer srv.Close()

	player := &recordingPlayer{}
	s := NewRemoteSpeaker(srv.URL+"/v1/synthesize", "key-123", player, zerolog.Nop())

	if err := s.Speak(context.Background(), "たなかさん、3番ベッドへ", "ja-JP"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "たなかさん、3番ベッドへ" || got.LanguageCode != "ja-JP" {
		t.Errorf("unexpected request %+v", got)
	}
	if auth != "Bearer key-123" {
		t.Errorf("expected bearer auth, got %q", auth)
	}
	if string(player.audio) != "RIFF-audio" {
		t.Errorf("expected decoded audio, got %q", player.audio)
	}
}

func TestRemoteSpeaker_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errorResponse{Error: "unsupported language"})
	}))
	defer srv.Close()

	player := &recordingPlayer{}
	s := NewRemoteSpeaker(srv.URL, "", player, zerolog.Nop())

	if err := s.Speak(context.Background(), "x", "xx-XX"); err == nil {
		t.Fatal("expected error from speech service")
	}
	if player.audio != nil {
		t.Error("player should not be called on error")
	}
}

func TestRemoteSpeaker_EmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := NewRemoteSpeaker(srv.URL, "", &recordingPlayer{}, zerolog.Nop())
	if _, err := s.Synthesize(context.Background(), "x", "ja-JP"); err == nil {
		t.Fatal("expected error for missing audio")
	}
}

func TestLogSpeaker_CancelStopsPlayback(t *testing.T) {
	s := NewLogSpeaker(zerolog.Nop(), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Speak(ctx, "hello", "ja-JP") }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("speak did not return after cancel")
	}
}

func TestCommandSpeaker_Args(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"say", []string{"hello"}},
		{"say -v Kyoko", []string{"-v", "Kyoko", "hello"}},
		{"espeak-ng -v {lang} {text}", []string{"-v", "ja-JP", "hello"}},
		{"tts --lang={lang}", []string{"--lang=ja-JP", "hello"}},
	}
	for _, tt := range tests {
		s, err := NewCommandSpeaker(tt.line)
		if err != nil {
			t.Fatalf("NewCommandSpeaker(%q): %v", tt.line, err)
		}
		if got := s.args("hello", "ja-JP"); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%q: expected %v, got %v", tt.line, tt.want, got)
		}
	}
}

func TestCommandPlayer_Args(t *testing.T) {
	p, _ := NewCommandPlayer("aplay -q")
	if got := p.args("/tmp/a.wav"); !reflect.DeepEqual(got, []string{"-q", "/tmp/a.wav"}) {
		t.Errorf("unexpected args %v", got)
	}
	p, _ = NewCommandPlayer("ffplay -nodisp -autoexit {file}")
	if got := p.args("/tmp/a.wav"); !reflect.DeepEqual(got, []string{"-nodisp", "-autoexit", "/tmp/a.wav"}) {
		t.Errorf("unexpected args %v", got)
	}
}

func TestNew_Drivers(t *testing.T) {
	if _, err := New(Config{Driver: "log"}, zerolog.Nop()); err != nil {
		t.Errorf("log driver: %v", err)
	}
	if _, err := New(Config{Driver: "command"}, zerolog.Nop()); err == nil {
		t.Error("expected error for command driver without command")
	}
	if _, err := New(Config{Driver: "remote", Endpoint: "http://tts", PlayerCommand: "aplay"}, zerolog.Nop()); err != nil {
		t.Errorf("remote driver: %v", err)
	}
	if _, err := New(Config{Driver: "bogus"}, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown driver")
	}
}
