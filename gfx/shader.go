package gfx

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// SpirvMagic is the first word of every SPIR-V module.
const SpirvMagic = 0x07230203

// ErrInvalidShader is returned for code that is not a SPIR-V module.
var ErrInvalidShader = errors.New("gfx: not a SPIR-V module")

// CreateShader creates a shader module for stage from SPIR-V code.
// Malformed code is returned as an error, since shaders come from
// disk. A driver failure on valid code is fatal.
func (d *Device) CreateShader(code []byte, stage ShaderStage) (*Shader, error) {
	if len(code) < 20 || len(code)%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidShader, "%d bytes", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != SpirvMagic {
		return nil, errors.Wrapf(ErrInvalidShader, "magic %#x", magic)
	}
	if bits := uint32(stage); bits == 0 || bits&(bits-1) != 0 {
		return nil, errors.Newf("gfx: shader stage %#x must be a single stage", bits)
	}

	handle, err := d.native.CreateShaderModule(code)
	d.check(err, "gfx.CreateShaderModule()")

	s := &Shader{
		handle: handle,
		stage:  stage,
	}
	s.init(d, "shader")
	return s, nil
}

// Shader is a compiled shader module for one stage.
type Shader struct {
	resource

	handle Handle
	stage  ShaderStage
}

// Stage returns the pipeline stage the shader runs in.
func (s *Shader) Stage() ShaderStage {
	return s.stage
}

// Native returns the driver handle.
func (s *Shader) Native() Handle {
	return s.handle
}

// Release implements interface
func (s *Shader) Release() {
	if !s.drop() {
		return
	}
	s.device.native.DestroyShaderModule(s.handle)
	s.finish()
}
