package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/common"
	"github.com/ternarybob/musicdoc/internal/interfaces"
)

type fakeSpeaker struct {
	fail     map[string]bool
	delay    time.Duration
	inFlight int32
	maxSeen  int32
}

func (f *fakeSpeaker) Name() string { return "fake" }

func (f *fakeSpeaker) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	if f.fail[text] {
		return nil, "", errors.New("synthesis failed")
	}
	return []byte("audio:" + text), "mp3", nil
}

func newTestService(t *testing.T, synth interfaces.SpeechSynthesizer, concurrency int) (*Service, string) {
	dir := filepath.Join(t.TempDir(), "tts")
	return NewService(synth, dir, "/tts", concurrency, arbor.NewLogger()), dir
}

func TestSynthesizeBatch_OrderedWithNilForEmptyAndFailed(t *testing.T) {
	svc, dir := newTestService(t, &fakeSpeaker{fail: map[string]bool{"bad": true}}, 2)

	urls, err := svc.SynthesizeBatch(context.Background(), []string{"one", "  ", "bad", "four"}, interfaces.BatchOptions{PlaylistID: "pl1", JobID: "job_1"})
	require.NoError(t, err)
	require.Len(t, urls, 4)

	require.NotNil(t, urls[0])
	assert.Equal(t, "/tts/pl1_0.mp3", *urls[0])
	assert.Nil(t, urls[1])
	assert.Nil(t, urls[2])
	require.NotNil(t, urls[3])
	assert.Equal(t, "/tts/pl1_3.mp3", *urls[3])

	data, err := os.ReadFile(filepath.Join(dir, "pl1_3.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "audio:four", string(data))
}

func TestSynthesizeBatch_TimestampNamesWithoutPlaylist(t *testing.T) {
	svc, _ := newTestService(t, &fakeSpeaker{}, 1)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	urls, err := svc.SynthesizeBatch(context.Background(), []string{"a", "b"}, interfaces.BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "/tts/tts_1700000000000_0.mp3", *urls[0])
	assert.Equal(t, "/tts/tts_1700000000000_1.mp3", *urls[1])
}

func TestSynthesizeBatch_PlaylistIDCannotEscapeOutputDir(t *testing.T) {
	svc, dir := newTestService(t, &fakeSpeaker{}, 1)

	urls, err := svc.SynthesizeBatch(context.Background(), []string{"a"}, interfaces.BatchOptions{PlaylistID: "../../etc/pl"})
	require.NoError(t, err)
	require.NotNil(t, urls[0])
	assert.Equal(t, "/tts/etc_pl_0.mp3", *urls[0])

	_, err = os.Stat(filepath.Join(dir, "etc_pl_0.mp3"))
	assert.NoError(t, err)
}

func TestSynthesizeBatch_BoundedConcurrencyAndProgress(t *testing.T) {
	speaker := &fakeSpeaker{delay: 20 * time.Millisecond}
	svc, _ := newTestService(t, speaker, 2)

	var mu sync.Mutex
	var reported []int
	texts := []string{"1", "2", "3", "4", "5", "6"}
	_, err := svc.SynthesizeBatch(context.Background(), texts, interfaces.BatchOptions{
		OnProgress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, len(texts), total)
			reported = append(reported, done)
		},
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt32(&speaker.maxSeen), int32(2))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, reported)
}

func TestSynthesizeBatch_CancelledReturnsPartial(t *testing.T) {
	svc, _ := newTestService(t, &fakeSpeaker{delay: time.Second}, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	urls, err := svc.SynthesizeBatch(ctx, []string{"a", "b", "c"}, interfaces.BatchOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, urls, 3)
	for _, u := range urls {
		assert.Nil(t, u)
	}
}

func TestSynthesizeBatch_EmptyInput(t *testing.T) {
	svc, dir := newTestService(t, &fakeSpeaker{}, 1)
	urls, err := svc.SynthesizeBatch(context.Background(), nil, interfaces.BatchOptions{})
	require.NoError(t, err)
	assert.Empty(t, urls)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMockSpeakerWritesWav(t *testing.T) {
	svc, dir := newTestService(t, MockSpeaker{}, 1)
	urls, err := svc.SynthesizeBatch(context.Background(), []string{"hello"}, interfaces.BatchOptions{PlaylistID: "p"})
	require.NoError(t, err)
	require.NotNil(t, urls[0])
	assert.True(t, strings.HasSuffix(*urls[0], ".wav"))

	data, err := os.ReadFile(filepath.Join(dir, "p_0.wav"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Len(t, data, 44+mockSampleRate/2*2)
}

func TestNewSynthesizer(t *testing.T) {
	config := common.NewDefaultConfig()
	logger := arbor.NewLogger()

	config.TTS.Provider = "mock"
	s, err := NewSynthesizer(config, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, "mock", s.Name())

	config.TTS.Provider = "gemini"
	s, err = NewSynthesizer(config, nil, logger)
	require.NoError(t, err)
	gs := s.(*GeminiSpeaker)
	assert.Equal(t, defaultGeminiVoice, gs.voice)
	assert.Equal(t, defaultGeminiTTSModel, gs.model)

	config.TTS.Provider = "espeak"
	_, err = NewSynthesizer(config, nil, logger)
	assert.Error(t, err)
}
