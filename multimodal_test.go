package multimodal_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardanlabs/multimodal"
	"github.com/ardanlabs/multimodal/install"
	"github.com/hybridgroup/yzma/pkg/download"
	"golang.org/x/sync/errgroup"
)

var (
	gw        = os.Getenv("GITHUB_WORKSPACE")
	libPath   = filepath.Join(gw, "libraries")
	modelFile = filepath.Join(gw, "models", "Qwen2.5-VL-3B-Instruct-Q8_0.gguf")
	projFile  = filepath.Join(gw, "models", "mmproj-Qwen2.5-VL-3B-Instruct-Q8_0.gguf")
	imageFile = filepath.Join(gw, "images/samples", "giraffe.jpg")

	integration bool
)

func TestMain(m *testing.M) {
	fmt.Println("libPath  :", libPath)
	fmt.Println("modelFile:", modelFile)
	fmt.Println("projFile :", projFile)
	fmt.Println("imageFile:", imageFile)

	setup := func() bool {
		for _, file := range []string{modelFile, projFile, imageFile} {
			if _, err := os.Stat(file); err != nil {
				fmt.Printf("missing test asset %s, running unit tests only\n", file)
				return false
			}
		}

		if _, err := install.Libraries(libPath, download.CPU, true); err != nil {
			fmt.Printf("unable to install llama.cpp libraries: %s\n", err)
			return false
		}

		if err := multimodal.Init(libPath, multimodal.LogSilent); err != nil {
			fmt.Printf("unable to init the llamacpp library: %s\n", err)
			return false
		}

		return true
	}

	integration = setup()

	os.Exit(m.Run())
}

func newTestSession(t *testing.T) *multimodal.Session {
	t.Helper()

	if !integration {
		t.Skip("skipping test: integration assets not available")
	}

	s, err := multimodal.NewSession(modelFile, projFile, multimodal.Config{
		ContextWindow: 1024 * 4,
	})
	if err != nil {
		t.Fatalf("unable to create session: %v", err)
	}

	t.Cleanup(s.Close)

	return s
}

func loadImage(t *testing.T) []byte {
	t.Helper()

	d, err := os.ReadFile(imageFile)
	if err != nil {
		t.Fatalf("unable to read image file: %v", err)
	}

	return d
}

func TestBitmapLifecycle(t *testing.T) {
	s := newTestSession(t)

	bitmap, err := s.NewBitmapFromBuffer(loadImage(t))
	if err != nil {
		t.Fatalf("unable to decode image: %v", err)
	}
	defer bitmap.Close()

	w, h, err := bitmap.Dimensions()
	if err != nil {
		t.Fatalf("unable to read dimensions: %v", err)
	}

	if w == 0 || h == 0 {
		t.Fatalf("expected non-zero dimensions, got %dx%d", w, h)
	}

	data, err := bitmap.Data()
	if err != nil {
		t.Fatalf("unable to read data: %v", err)
	}

	if exp := int(w) * int(h) * 3; len(data) != exp {
		t.Errorf("expected %d bytes of pixel data, got %d", exp, len(data))
	}

	if err := bitmap.SetID("giraffe"); err != nil {
		t.Fatalf("unable to set id: %v", err)
	}

	id, err := bitmap.ID()
	if err != nil {
		t.Fatalf("unable to read id: %v", err)
	}

	if id != "giraffe" {
		t.Errorf("expected id %q, got %q", "giraffe", id)
	}

	if err := bitmap.Close(); err != nil {
		t.Fatalf("unable to close bitmap: %v", err)
	}

	if _, err := bitmap.Data(); !errors.Is(err, multimodal.ErrBitmapDisposed) {
		t.Errorf("Data after Close: expected ErrBitmapDisposed, got %v", err)
	}
}

func TestCollectionDeepCopy(t *testing.T) {
	s := newTestSession(t)

	bitmap, err := s.NewBitmapFromBuffer(loadImage(t))
	if err != nil {
		t.Fatalf("unable to decode image: %v", err)
	}

	collection := multimodal.NewBitmapCollection()
	defer collection.Close()

	if err := collection.Add(bitmap); err != nil {
		t.Fatalf("unable to add bitmap: %v", err)
	}

	// The collection owns an independent copy, so closing the source bitmap
	// must not affect it.
	bitmap.Close()

	if got := collection.Count(); got != 1 {
		t.Fatalf("expected count 1, got %d", got)
	}

	prompt := multimodal.DefaultMarker() + "\nWhat is in this picture?"

	res, err := s.Tokenize(prompt, collection)
	if err != nil {
		t.Fatalf("unable to tokenize against the collection copy: %v", err)
	}
	res.Close()
}

func TestTokenizeOrdering(t *testing.T) {
	s := newTestSession(t)

	bitmap, err := s.NewBitmapFromBuffer(loadImage(t))
	if err != nil {
		t.Fatalf("unable to decode image: %v", err)
	}
	defer bitmap.Close()

	if err := bitmap.SetID("giraffe"); err != nil {
		t.Fatalf("unable to set id: %v", err)
	}

	collection := multimodal.NewBitmapCollection()
	defer collection.Close()

	if err := collection.Add(bitmap); err != nil {
		t.Fatalf("unable to add bitmap: %v", err)
	}

	prompt := "Look at " + multimodal.DefaultMarker() + " and describe it."

	res, err := s.Tokenize(prompt, collection)
	if err != nil {
		t.Fatalf("unable to tokenize: %v", err)
	}
	defer res.Close()

	imageIndex := -1
	for i, chunk := range res.Chunks {
		if chunk.Type == multimodal.ChunkTypeImage {
			imageIndex = i
			break
		}
	}

	if imageIndex == -1 {
		t.Fatalf("expected an image chunk, got none in %d chunks", len(res.Chunks))
	}

	for i, chunk := range res.Chunks {
		if i != imageIndex && chunk.Type != multimodal.ChunkTypeText {
			t.Errorf("chunk %d: expected text chunk around the image, got %s", i, chunk.Type)
		}
	}

	media := res.Chunks[imageIndex].Media
	if media == nil {
		t.Fatal("expected media info on the image chunk")
	}

	if media.TokenCount <= 0 || media.NX == 0 || media.NY == 0 {
		t.Errorf("expected positive token grid, got count %d, %dx%d", media.TokenCount, media.NX, media.NY)
	}

	if media.ID != "giraffe" {
		t.Errorf("expected bitmap id to carry into the chunk, got %q", media.ID)
	}
}

func TestTokenizeEmpty(t *testing.T) {
	s := newTestSession(t)

	collection := multimodal.NewBitmapCollection()
	defer collection.Close()

	res, err := s.Tokenize("", collection)
	if err != nil {
		t.Fatalf("unable to tokenize empty input: %v", err)
	}
	defer res.Close()

	if len(res.Chunks) > 1 {
		t.Fatalf("expected zero chunks or a single text chunk, got %d", len(res.Chunks))
	}

	if len(res.Chunks) == 1 && res.Chunks[0].Type != multimodal.ChunkTypeText {
		t.Errorf("expected a text chunk, got %s", res.Chunks[0].Type)
	}
}

func TestTokenizeAndEvaluate(t *testing.T) {
	s := newTestSession(t)

	bitmap, err := s.NewBitmapFromBuffer(loadImage(t))
	if err != nil {
		t.Fatalf("unable to decode image: %v", err)
	}
	defer bitmap.Close()

	collection := multimodal.NewBitmapCollection()
	defer collection.Close()

	if err := collection.Add(bitmap); err != nil {
		t.Fatalf("unable to add bitmap: %v", err)
	}

	prompt := multimodal.DefaultMarker() + "\nWhat is in this picture?"
	before := s.SequencePosition()

	result, err := s.TokenizeAndEvaluate(prompt, collection)
	if err != nil {
		t.Fatalf("unable to tokenize and evaluate: %v", err)
	}

	if result.PreviousSequenceLength != before {
		t.Errorf("expected previous position %d, got %d", before, result.PreviousSequenceLength)
	}

	if got := result.NewSequenceLength - result.PreviousSequenceLength; got != result.TokensProcessed {
		t.Errorf("position delta %d does not match tokens processed %d", got, result.TokensProcessed)
	}

	if result.TokensProcessed < 0 {
		t.Errorf("expected non-negative tokens processed, got %d", result.TokensProcessed)
	}

	if got := s.SequencePosition(); got != result.NewSequenceLength {
		t.Errorf("expected session position %d, got %d", result.NewSequenceLength, got)
	}
}

func TestEvaluateConsumesResult(t *testing.T) {
	s := newTestSession(t)

	bitmap, err := s.NewBitmapFromBuffer(loadImage(t))
	if err != nil {
		t.Fatalf("unable to decode image: %v", err)
	}
	defer bitmap.Close()

	collection := multimodal.NewBitmapCollection()
	defer collection.Close()

	if err := collection.Add(bitmap); err != nil {
		t.Fatalf("unable to add bitmap: %v", err)
	}

	prompt := multimodal.DefaultMarker() + "\nWhat is in this picture?"

	res, err := s.Tokenize(prompt, collection)
	if err != nil {
		t.Fatalf("unable to tokenize: %v", err)
	}
	defer res.Close()

	if _, err := s.Evaluate(res); err != nil {
		t.Fatalf("unable to evaluate: %v", err)
	}

	if _, err := s.Evaluate(res); !errors.Is(err, multimodal.ErrChunksConsumed) {
		t.Errorf("second Evaluate: expected ErrChunksConsumed, got %v", err)
	}
}

func TestPool(t *testing.T) {
	if !integration {
		t.Skip("skipping test: integration assets not available")
	}

	mm, err := multimodal.New(1, modelFile, projFile, multimodal.Config{
		ContextWindow: 1024 * 4,
	})
	if err != nil {
		t.Fatalf("unable to create pool: %v", err)
	}
	defer mm.Unload()

	image := loadImage(t)
	prompt := multimodal.DefaultMarker() + "\nWhat is in this picture?"

	f := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()

		chunks, err := mm.Tokenize(ctx, prompt, [][]byte{image})
		if err != nil {
			return fmt.Errorf("tokenize: %w", err)
		}

		if len(chunks) == 0 {
			return fmt.Errorf("expected chunks, got none")
		}

		return nil
	}

	var g errgroup.Group
	for range 3 {
		g.Go(f)
	}

	if err := g.Wait(); err != nil {
		t.Errorf("error: %v", err)
	}
}
