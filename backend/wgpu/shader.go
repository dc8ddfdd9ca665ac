//go:build !nogpu

package wgpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpucmd/gpucore"
	"github.com/gogpu/gpucmd/internal/cache"
)

// wgslCacheSize bounds the number of compiled WGSL sources kept.
const wgslCacheSize = 64

// compiled holds SPIR-V produced from WGSL, keyed by source text. Pipelines
// are often rebuilt from the same source.
var compiled = cache.New[string, []byte](wgslCacheSize)

// shaderSource converts shader code into a hal source. WGSL is compiled
// to SPIR-V.
func shaderSource(code []byte, format gpucore.ShaderFormat) (hal.ShaderSource, error) {
	switch format {
	case gpucore.ShaderFormatWGSL:
		spirv, err := compiled.GetOrLoad(string(code), func() ([]byte, error) {
			return naga.Compile(string(code))
		})
		if err != nil {
			return hal.ShaderSource{}, fmt.Errorf("compile WGSL: %w", err)
		}
		return spirvSource(spirv)
	case gpucore.ShaderFormatSPIRV:
		return spirvSource(code)
	default:
		return hal.ShaderSource{}, fmt.Errorf("%w: shader format %d", gpucore.ErrUnsupported, format)
	}
}

// spirvSource packs SPIR-V bytes into little-endian 32-bit words.
func spirvSource(b []byte) (hal.ShaderSource, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return hal.ShaderSource{}, fmt.Errorf("wgpu: SPIR-V length %d is not a multiple of 4", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return hal.ShaderSource{SPIRV: words}, nil
}
