package multimodal

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hybridgroup/yzma/pkg/llama"
	"github.com/hybridgroup/yzma/pkg/mtmd"
)

// Session owns a model, a llama context with its KV cache, the multimodal
// projector context, and the sequence position counter that tracks how many
// positions have been committed to the running generation.
//
// A session processes one call at a time. Calls against the same session
// must be serialized by the caller, either directly or by using the
// Multimodal pool which leases each session to a single operation at a time.
type Session struct {
	id     string
	cfg    Config
	model  llama.Model
	lctx   llama.Context
	mctx   mtmd.Context
	nPast  llama.Pos
	closed bool
}

// NewSession loads the specified model and projector files and constructs a
// session for use. Pass an empty projFile to create a text-only session;
// bitmap and tokenize operations will fail with ErrNoMultimodalContext.
func NewSession(modelFile string, projFile string, cfg Config) (*Session, error) {
	if libraryLocation == "" {
		return nil, fmt.Errorf("the Init() function has not been called")
	}

	mparams := llama.ModelDefaultParams()
	if cfg.Device != "" {
		dev := llama.GGMLBackendDeviceByName(cfg.Device)
		if dev == 0 {
			return nil, fmt.Errorf("unknown device: %s", cfg.Device)
		}
		mparams.SetDevices([]llama.GGMLBackendDevice{dev})
	}

	mdl, err := llama.ModelLoadFromFile(modelFile, mparams)
	if err != nil {
		return nil, fmt.Errorf("unable to load model: %w", err)
	}

	cfg = adjustConfig(cfg, mdl)

	lctx, err := llama.InitFromModel(mdl, sessionCtxParams(cfg))
	if err != nil {
		llama.ModelFree(mdl)
		return nil, fmt.Errorf("unable to init from model: %w", err)
	}

	var mctx mtmd.Context

	if projFile != "" {
		mctxParams := mtmd.ContextParamsDefault()
		mctxParams.UseGPU = cfg.UseGPU
		mctxParams.FlashAttentionType = llama.FlashAttentionTypeAuto

		mctx, err = mtmd.InitFromFile(projFile, mdl, mctxParams)
		if err != nil {
			llama.Free(lctx)
			llama.ModelFree(mdl)
			return nil, fmt.Errorf("unable to init multimodal projector: %w", err)
		}
	}

	s := Session{
		id:    uuid.New().String(),
		cfg:   cfg,
		model: mdl,
		lctx:  lctx,
		mctx:  mctx,
	}

	return &s, nil
}

// ID returns the unique identifier assigned to this session.
func (s *Session) ID() string {
	return s.id
}

// Config returns a copy of the adjusted configuration the session runs with.
func (s *Session) Config() Config {
	return s.cfg
}

// SequencePosition returns the number of positions committed to the session's
// running generation so far.
func (s *Session) SequencePosition() int {
	return int(s.nPast)
}

// SupportsVision reports whether the bound projector supports image input.
func (s *Session) SupportsVision() bool {
	if s.closed || s.mctx == 0 {
		return false
	}

	return mtmd.SupportVision(s.mctx)
}

// SupportsAudio reports whether the bound projector supports audio input.
func (s *Session) SupportsAudio() bool {
	if s.closed || s.mctx == 0 {
		return false
	}

	return mtmd.SupportAudio(s.mctx)
}

// Close releases the session's native resources. It is safe to call multiple
// times. No operation may be in flight when Close is called.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if s.mctx != 0 {
		mtmd.Free(s.mctx)
		s.mctx = 0
	}

	llama.Synchronize(s.lctx)
	llama.Free(s.lctx)
	llama.ModelFree(s.model)
}

// ModelInfo provides support to extract the model card information.
func (s *Session) ModelInfo() ModelInfo {
	desc := llama.ModelDesc(s.model)
	size := llama.ModelSize(s.model)
	encoder := llama.ModelHasEncoder(s.model)
	decoder := llama.ModelHasDecoder(s.model)
	count := llama.ModelMetaCount(s.model)
	metadata := make(map[string]string)

	for i := range count {
		key, ok := llama.ModelMetaKeyByIndex(s.model, i)
		if !ok {
			continue
		}

		value, ok := llama.ModelMetaValStrByIndex(s.model, i)
		if !ok {
			continue
		}

		metadata[key] = value
	}

	return ModelInfo{
		Desc:       desc,
		Size:       size,
		HasEncoder: encoder,
		HasDecoder: decoder,
		Vision:     s.SupportsVision(),
		Audio:      s.SupportsAudio(),
		Metadata:   metadata,
	}
}

// checkOpen validates the session can accept a multimodal operation.
func (s *Session) checkOpen() error {
	if s == nil || s.closed {
		return ErrSessionClosed
	}

	if s.mctx == 0 {
		return ErrNoMultimodalContext
	}

	return nil
}
