// Package tts turns narration segments into audio files served under the tts URL prefix.
package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/interfaces"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds simultaneous synthesis calls
const DefaultConcurrency = 3

// Service synthesizes narration batches and writes the audio to disk
type Service struct {
	synth       interfaces.SpeechSynthesizer
	outputDir   string
	urlPrefix   string
	concurrency int
	logger      arbor.ILogger
	now         func() time.Time
}

var _ interfaces.NarrationService = (*Service)(nil)

// NewService creates a narration service writing into outputDir and publishing under urlPrefix
func NewService(synth interfaces.SpeechSynthesizer, outputDir, urlPrefix string, concurrency int, logger arbor.ILogger) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &Service{
		synth:       synth,
		outputDir:   outputDir,
		urlPrefix:   urlPrefix,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// OutputDir returns the directory audio files are written to
func (s *Service) OutputDir() string {
	return s.outputDir
}

// SynthesizeBatch returns one URL per input text in input order. Empty texts and failed
// segments yield nil. A cancelled context stops outstanding segments and is returned
// together with whatever finished.
func (s *Service) SynthesizeBatch(ctx context.Context, texts []string, opts interfaces.BatchOptions) ([]*string, error) {
	urls := make([]*string, len(texts))
	if len(texts) == 0 {
		return urls, nil
	}

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return urls, fmt.Errorf("create tts output dir: %w", err)
	}

	stamp := s.now().UnixMilli()
	total := len(texts)

	var progressMu sync.Mutex
	done := 0
	settle := func() {
		if opts.OnProgress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		done++
		opts.OnProgress(done, total)
	}

	s.logger.Debug().
		Str("job_id", opts.JobID).
		Str("playlist_id", opts.PlaylistID).
		Str("synthesizer", s.synth.Name()).
		Int("segments", total).
		Msg("Narration batch started")

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for i, text := range texts {
		i, text := i, strings.TrimSpace(text)
		g.Go(func() error {
			defer settle()
			if text == "" || ctx.Err() != nil {
				return nil
			}
			url, err := s.synthesizeOne(ctx, text, s.fileBase(opts.PlaylistID, stamp, i))
			if err != nil {
				s.logger.Warn().
					Err(err).
					Str("job_id", opts.JobID).
					Int("segment", i).
					Msg("Narration segment failed")
				return nil
			}
			urls[i] = &url
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, u := range urls {
		if u != nil {
			ok++
		}
	}
	s.logger.Info().
		Str("job_id", opts.JobID).
		Int("segments", total).
		Int("synthesized", ok).
		Msg("Narration batch finished")

	if err := ctx.Err(); err != nil {
		return urls, err
	}
	return urls, nil
}

func (s *Service) fileBase(playlistID string, stamp int64, i int) string {
	if safe := sanitizeName(playlistID); safe != "" {
		return fmt.Sprintf("%s_%d", safe, i)
	}
	return fmt.Sprintf("tts_%d_%d", stamp, i)
}

func (s *Service) synthesizeOne(ctx context.Context, text, base string) (string, error) {
	audio, ext, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}
	if ext == "" {
		ext = "mp3"
	}

	name := base + "." + ext
	if err := os.WriteFile(filepath.Join(s.outputDir, name), audio, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return s.urlPrefix + name, nil
}

// sanitizeName keeps [A-Za-z0-9_-] so caller ids cannot escape the output dir
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
