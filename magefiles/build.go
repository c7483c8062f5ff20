//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/spaghettifunk/portalis/engine/assets/loaders"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Compiles every GLSL stage in assets/shaders to SPIR-V.
func (Build) Shaders() error {
	return buildShaders()
}

// Compiles the shaders and packs each SPIR-V module with lz4.
func (Build) PackedShaders() error {
	mg.Deps(Build.Shaders)
	spvs, err := filepath.Glob(filepath.Join(shaderDir, "*.spv"))
	if err != nil {
		return err
	}
	for _, spv := range spvs {
		code, err := os.ReadFile(spv)
		if err != nil {
			return err
		}
		packed, err := loaders.CompressSPIRV(code)
		if err != nil {
			return fmt.Errorf("failed to pack %s: %w", spv, err)
		}
		if err := os.WriteFile(spv+loaders.CompressedSuffix, packed, 0o644); err != nil {
			return err
		}
		// The loader prefers the plain module, so drop it.
		if err := os.Remove(spv); err != nil {
			return err
		}
		fmt.Printf("Packed %s (%d -> %d bytes)\n", spv, len(code), len(packed))
	}
	return nil
}

// Builds the engine binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	if err := goTidy(); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "-o", "bin/portalis", "."), withStream())
	return err
}

func buildShaders() error {
	var stages []string
	for _, ext := range []string{"*.vert", "*.frag"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, ext))
		if err != nil {
			return err
		}
		stages = append(stages, matches...)
	}
	for _, stage := range stages {
		if _, err := executeCmd("glslc", withArgs("-I", shaderDir, stage, "-o", stage+".spv"), withStream()); err != nil {
			return err
		}
	}
	return nil
}
