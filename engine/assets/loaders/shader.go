package loaders

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pierrec/lz4"
	"github.com/spaghettifunk/portalis/engine/core"
	"github.com/spaghettifunk/portalis/engine/renderer/metadata"
)

const spirvMagic uint32 = 0x07230203

// CompressedSuffix marks shader files packed with lz4.
const CompressedSuffix = ".lz4"

type ShaderLoader struct{}

// Load reads SPIR-V code from path, decompressing it when the file name
// ends in .lz4.
func (sl *ShaderLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open shader `%s`", path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, CompressedSuffix) {
		r = lz4.NewReader(f)
	}
	code, err := DecodeSPIRV(r)
	if err != nil {
		return nil, errors.Wrapf(err, "shader `%s`", path)
	}
	return &metadata.Resource{
		Name:     strings.TrimSuffix(path, CompressedSuffix),
		FullPath: path,
		Type:     metadata.ResourceTypeShader,
		DataSize: uint64(len(code)),
		Data:     code,
	}, nil
}

// DecodeSPIRV reads r to the end and checks it looks like SPIR-V.
func DecodeSPIRV(r io.Reader) ([]byte, error) {
	code, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read shader code")
	}
	if len(code) < 4 || len(code)%4 != 0 {
		return nil, core.InvalidDataf("shader code is %d bytes, not a whole number of words", len(code))
	}
	if binary.LittleEndian.Uint32(code) != spirvMagic {
		return nil, core.InvalidDataf("shader code does not start with the SPIR-V magic number")
	}
	return code, nil
}

// CompressSPIRV packs code the way Load expects .lz4 files.
func CompressSPIRV(code []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(code); err != nil {
		return nil, errors.Wrap(err, "failed to compress shader")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to compress shader")
	}
	return buf.Bytes(), nil
}
