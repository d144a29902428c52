package multimodal

import "github.com/hybridgroup/yzma/pkg/llama"

// ModelInfo represents the model's card information.
type ModelInfo struct {
	Desc       string
	Size       uint64
	HasEncoder bool
	HasDecoder bool
	Vision     bool
	Audio      bool
	Metadata   map[string]string
}

// ChunkType identifies the variant of a tokenized chunk.
type ChunkType int

// Set of chunk variants produced by tokenization.
const (
	ChunkTypeText ChunkType = iota
	ChunkTypeImage
	ChunkTypeAudio
)

// String implements the fmt.Stringer interface.
func (ct ChunkType) String() string {
	switch ct {
	case ChunkTypeText:
		return "text"
	case ChunkTypeImage:
		return "image"
	case ChunkTypeAudio:
		return "audio"
	}

	return "unknown"
}

// MediaInfo describes an image or audio token block. NX and NY are the token
// grid dimensions and are zero for audio chunks. NPos is the number of
// sequence positions the block contributes, which differs from TokenCount
// for models using M-RoPE position encoding.
type MediaInfo struct {
	TokenCount int
	NX         uint32
	NY         uint32
	ID         string
	NPos       int
}

// Chunk is one unit of tokenized input: either a run of text tokens or a
// media token block. Chunk ordering matches the order text and image markers
// appear in the source prompt, and evaluation replays chunks in that order.
type Chunk struct {
	Type   ChunkType
	Tokens []llama.Token
	Media  *MediaInfo
}

// EvalResult summarizes a successful evaluate operation and the sequence
// position movement it caused.
type EvalResult struct {
	TokensProcessed        int
	NewSequenceLength      int
	PreviousSequenceLength int
}
