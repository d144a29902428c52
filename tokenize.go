package multimodal

import (
	"fmt"

	"github.com/hybridgroup/yzma/pkg/llama"
	"github.com/hybridgroup/yzma/pkg/mtmd"
)

// TokenizeResult holds the outcome of a tokenize call: the flattened chunk
// descriptions plus the live native chunk list, retained so the result can
// still be evaluated. Callers that only want the chunk descriptions must
// Close the result to release the native list.
type TokenizeResult struct {
	Chunks []Chunk

	session *Session
	ptr     mtmd.InputChunks
}

// Close releases the retained native chunk list. It is safe to call multiple
// times and after Evaluate has consumed the result.
func (tr *TokenizeResult) Close() error {
	if tr == nil || tr.ptr == 0 {
		return nil
	}

	mtmd.InputChunksFree(tr.ptr)
	tr.ptr = 0

	return nil
}

// Tokenize converts the prompt text and the bitmaps in the collection into an
// ordered sequence of chunks. The prompt is always treated as a complete,
// specially delimited unit: the add_special and parse_special tokenizer flags
// are fixed policy, not caller configurable. The collection is borrowed for
// the duration of the call and stays owned by the caller.
//
// No session state is mutated by tokenization. The returned result retains
// the native chunk list until Evaluate consumes it or Close releases it.
func (s *Session) Tokenize(text string, bitmaps *BitmapCollection) (*TokenizeResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	snapshot, err := bitmaps.snapshot()
	if err != nil {
		return nil, err
	}

	chunks := mtmd.InputChunksInit()
	if chunks == 0 {
		return nil, fmt.Errorf("unable to initialize input chunks")
	}

	input := mtmd.NewInputText(text, true, true)

	if ret := mtmd.Tokenize(s.mctx, chunks, input, snapshot); ret != 0 {
		mtmd.InputChunksFree(chunks)
		return nil, &TokenizeError{Code: ret}
	}

	tr := TokenizeResult{
		Chunks:  flattenChunks(chunks),
		session: s,
		ptr:     chunks,
	}

	return &tr, nil
}

// Evaluate feeds a tokenize result into the model evaluator, advancing the
// session's sequence position. The result must have been produced by the
// same session and is consumed by the call: win or lose, the native chunk
// list is released and the result cannot be evaluated again.
//
// On failure the sequence position is left untouched. The evaluator may have
// partially advanced its internal caches; this layer only guarantees the
// counter it owns still reports the pre-call value.
func (s *Session) Evaluate(tr *TokenizeResult) (EvalResult, error) {
	if err := s.checkOpen(); err != nil {
		return EvalResult{}, err
	}

	if tr == nil || tr.ptr == 0 {
		return EvalResult{}, ErrChunksConsumed
	}

	if tr.session != s {
		return EvalResult{}, ErrWrongSession
	}

	defer tr.Close()

	nPast := s.nPast
	var newNPast llama.Pos

	// HelperEvalChunks serializes itself. The function is not thread-safe,
	// even across independent contexts.
	ret := mtmd.HelperEvalChunks(s.mctx, s.lctx, tr.ptr, nPast, 0, int32(s.cfg.NBatch), true, &newNPast)

	if ret != 0 {
		return EvalResult{}, &EvalError{Code: ret}
	}

	s.nPast = newNPast

	return EvalResult{
		TokensProcessed:        int(newNPast - nPast),
		NewSequenceLength:      int(newNPast),
		PreviousSequenceLength: int(nPast),
	}, nil
}

// TokenizeAndEvaluate runs the combined operation: tokenize the prompt and
// bitmap collection, then immediately evaluate the chunks. The native chunk
// list is released before returning regardless of outcome. On tokenizer
// failure the session is untouched; on evaluator failure the sequence
// position is untouched.
func (s *Session) TokenizeAndEvaluate(text string, bitmaps *BitmapCollection) (EvalResult, error) {
	tr, err := s.Tokenize(text, bitmaps)
	if err != nil {
		return EvalResult{}, err
	}
	defer tr.Close()

	return s.Evaluate(tr)
}

// flattenChunks converts the native chunk list into primitive chunk
// descriptions, preserving source order. Text token slices are copied out of
// native memory.
func flattenChunks(chunks mtmd.InputChunks) []Chunk {
	n := mtmd.InputChunksSize(chunks)
	result := make([]Chunk, 0, n)

	for i := range n {
		chunk := mtmd.InputChunksGet(chunks, i)

		switch mtmd.InputChunkGetType(chunk) {
		case mtmd.InputChunkTypeText:
			tokens := mtmd.InputChunkGetTokensText(chunk)
			copied := make([]llama.Token, len(tokens))
			copy(copied, tokens)

			result = append(result, Chunk{
				Type:   ChunkTypeText,
				Tokens: copied,
			})

		case mtmd.InputChunkTypeImage:
			imageTokens := mtmd.InputChunkGetTokensImage(chunk)

			result = append(result, Chunk{
				Type: ChunkTypeImage,
				Media: &MediaInfo{
					TokenCount: int(mtmd.InputChunkGetNTokens(chunk)),
					NX:         uint32(mtmd.ImageTokensGetNX(imageTokens)),
					NY:         uint32(mtmd.ImageTokensGetNY(imageTokens)),
					ID:         mtmd.InputChunkGetId(chunk),
					NPos:       int(mtmd.InputChunkGetNPos(chunk)),
				},
			})

		case mtmd.InputChunkTypeAudio:
			result = append(result, Chunk{
				Type: ChunkTypeAudio,
				Media: &MediaInfo{
					TokenCount: int(mtmd.InputChunkGetNTokens(chunk)),
					ID:         mtmd.InputChunkGetId(chunk),
					NPos:       int(mtmd.InputChunkGetNPos(chunk)),
				},
			})
		}
	}

	return result
}
