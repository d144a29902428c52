package multimodal

import (
	"strconv"
	"strings"

	"github.com/hybridgroup/yzma/pkg/llama"
)

const (
	defContextWindow = 4 * 1024
	defNBatch        = 2 * 1024
	defNUBatch       = 512
)

// Config represents session level configuration. These values if configured
// incorrectly can cause the system to panic. The defaults are used when these
// values are set to 0.
//
// ContextWindow is the maximum number of tokens the model can process and
// consider at one time. When set to 0, the value found in the model metadata
// is used, falling back to 4096.
//
// NBatch is the logical batch size or the maximum number of tokens that can
// be in a single forward pass through the model at any given time. The
// evaluator splits chunk processing into pieces of at most this size.
// When set to 0, the default value is 2048.
//
// NUBatch is the physical batch size used during prompt ingestion to populate
// the KV cache. When set to 0, the default value is 512.
//
// UseGPU determines whether the multimodal projector runs on the GPU.
//
// Device is the device to use for the model. If not set, the default device
// will be used. To see what devices are available, run the llama-bench
// command found where you installed llamacpp.
// $ llama-bench --list-devices
type Config struct {
	ContextWindow int
	NBatch        int
	NUBatch       int
	UseGPU        bool
	Device        string
}

func adjustConfig(cfg Config, model llama.Model) Config {
	cfg = adjustContextWindow(cfg, model)

	if cfg.NBatch <= 0 {
		cfg.NBatch = defNBatch
	}

	if cfg.NUBatch <= 0 {
		cfg.NUBatch = defNUBatch
	}

	// NBatch is generally greater than or equal to NUBatch. The entire
	// NUBatch of tokens must fit into a physical batch for processing.
	if cfg.NUBatch > cfg.NBatch {
		cfg.NUBatch = cfg.NBatch
	}

	return cfg
}

func adjustContextWindow(cfg Config, model llama.Model) Config {
	modelCW := defContextWindow
	v, found := searchModelMeta(model, "context_length")
	if found {
		ctxLen, err := strconv.Atoi(v)
		if err == nil {
			modelCW = ctxLen
		}
	}

	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = modelCW
	}

	return cfg
}

func sessionCtxParams(cfg Config) llama.ContextParams {
	ctxParams := llama.ContextDefaultParams()

	ctxParams.NCtx = uint32(cfg.ContextWindow)
	ctxParams.NBatch = uint32(cfg.NBatch)
	ctxParams.NUbatch = uint32(cfg.NUBatch)

	return ctxParams
}

func searchModelMeta(model llama.Model, find string) (string, bool) {
	count := llama.ModelMetaCount(model)

	for i := range count {
		key, ok := llama.ModelMetaKeyByIndex(model, i)
		if !ok {
			continue
		}

		if strings.Contains(key, find) {
			value, ok := llama.ModelMetaValStrByIndex(model, i)
			if !ok {
				continue
			}

			return value, true
		}
	}

	return "", false
}
