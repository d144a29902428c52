// Package multimodal provides support for working with the multimodal (mtmd)
// API of llamacpp via yzma. It covers decoding image buffers into bitmaps,
// tokenizing prompts that interleave text and images, and evaluating the
// resulting chunks against a model context.
package multimodal

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hybridgroup/yzma/pkg/llama"
	"github.com/hybridgroup/yzma/pkg/mtmd"
)

// LogLevel represents the logging level.
type LogLevel int

// Set of logging levels supported by llamacpp.
const (
	LogSilent LogLevel = iota + 1
	LogNormal
)

var (
	libraryLocation string
	initOnce        sync.Once
	initErr         error
)

// Init initializes the llamacpp backend support. It must be called once
// before any session is created.
func Init(libPath string, logLevel LogLevel) error {
	initOnce.Do(func() {
		if err := llama.Load(libPath); err != nil {
			initErr = fmt.Errorf("unable to load library: %w", err)
			return
		}

		if err := mtmd.Load(libPath); err != nil {
			initErr = fmt.Errorf("unable to load mtmd library: %w", err)
			return
		}

		libraryLocation = libPath

		llama.Init()

		switch logLevel {
		case LogSilent:
			llama.LogSet(llama.LogSilent())
			mtmd.LogSet(llama.LogSilent())
		default:
			llama.LogSet(llama.LogNormal)
			mtmd.LogSet(llama.LogNormal)
		}
	})

	return initErr
}

// DefaultMarker returns the marker the model expects in the prompt at the
// position where an image should be inserted.
func DefaultMarker() string {
	return mtmd.DefaultMarker()
}

// =============================================================================

// Multimodal provides a concurrently safe api for using the bridge. Each
// session processes one call at a time, so the pool acts as the per-session
// call queue.
type Multimodal struct {
	cfg         Config
	modelName   string
	concurrency int
	sessions    chan *Session
	wg          sync.WaitGroup
	closed      uint32
}

// New constructs a pool of sessions against the specified model and
// projector files.
func New(concurrency int, modelFile string, projFile string, cfg Config) (*Multimodal, error) {
	if libraryLocation == "" {
		return nil, fmt.Errorf("the Init() function has not been called")
	}

	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be > 0, got %d", concurrency)
	}

	sessions := make(chan *Session, concurrency)
	var firstSession *Session

	for range concurrency {
		s, err := NewSession(modelFile, projFile, cfg)
		if err != nil {
			close(sessions)
			for session := range sessions {
				session.Close()
			}

			return nil, err
		}

		sessions <- s

		if firstSession == nil {
			firstSession = s
		}
	}

	mm := Multimodal{
		cfg:         firstSession.cfg,
		modelName:   strings.TrimSuffix(filepath.Base(modelFile), filepath.Ext(modelFile)),
		concurrency: concurrency,
		sessions:    sessions,
	}

	return &mm, nil
}

// ModelConfig returns a copy of the configuration being used. This may be
// different from the configuration passed to New() if the model has
// overridden any of the settings.
func (mm *Multimodal) ModelConfig() Config {
	return mm.cfg
}

// ModelName returns the model name.
func (mm *Multimodal) ModelName() string {
	return mm.modelName
}

// Unload will close down all loaded sessions. Calls already in flight finish
// normally; new calls fail once Unload has started.
func (mm *Multimodal) Unload() {
	if !atomic.CompareAndSwapUint32(&mm.closed, 0, 1) {
		return
	}

	mm.wg.Wait()

	// Receive every session back before closing the channel. A call that
	// raced the closed flag still holds a session and returns it here, so
	// its deferred send never hits a closed channel.
	for range mm.concurrency {
		session := <-mm.sessions
		session.Close()
	}

	close(mm.sessions)
}

// ModelInfo provides support to extract the model card information.
func (mm *Multimodal) ModelInfo(ctx context.Context) (ModelInfo, error) {
	f := func(s *Session) (ModelInfo, error) {
		return s.ModelInfo(), nil
	}

	return withSession(ctx, mm, f)
}

// Tokenize leases a session, decodes the provided image buffers, and
// tokenizes the prompt against them. The flattened chunk descriptions are
// returned and every native resource acquired during the call is released
// before returning.
func (mm *Multimodal) Tokenize(ctx context.Context, text string, images [][]byte) ([]Chunk, error) {
	f := func(s *Session) ([]Chunk, error) {
		collection, err := collectionFromBuffers(s, images)
		if err != nil {
			return nil, err
		}
		defer collection.Close()

		res, err := s.Tokenize(text, collection)
		if err != nil {
			return nil, err
		}
		defer res.Close()

		return res.Chunks, nil
	}

	return withSession(ctx, mm, f)
}

// TokenizeAndEvaluate leases a session, decodes the provided image buffers,
// and runs the combined tokenize and evaluate operation, advancing the
// session's sequence position.
func (mm *Multimodal) TokenizeAndEvaluate(ctx context.Context, text string, images [][]byte) (EvalResult, error) {
	f := func(s *Session) (EvalResult, error) {
		collection, err := collectionFromBuffers(s, images)
		if err != nil {
			return EvalResult{}, err
		}
		defer collection.Close()

		return s.TokenizeAndEvaluate(text, collection)
	}

	return withSession(ctx, mm, f)
}

func collectionFromBuffers(s *Session, images [][]byte) (*BitmapCollection, error) {
	collection := NewBitmapCollection()

	for i, buf := range images {
		bitmap, err := s.NewBitmapFromBuffer(buf)
		if err != nil {
			collection.Close()
			return nil, fmt.Errorf("unable to decode image %d: %w", i, err)
		}

		err = collection.Add(bitmap)
		bitmap.Close()

		if err != nil {
			collection.Close()
			return nil, fmt.Errorf("unable to add image %d to collection: %w", i, err)
		}
	}

	return collection, nil
}
