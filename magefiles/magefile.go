// Package main provides build targets for the magsav project using Mage.
//
// Usage:
//
//	mage build              Compile magsav binary to bin/
//	mage install            Install magsav to GOPATH/bin
//	mage clean              Remove build artifacts
//	mage lint               Run golangci-lint
//	mage test:all           Run all tests (unit + integration)
//	mage test:unit          Run only unit tests
//	mage test:integration   Run only integration tests (builds first)
//	mage test:cover         Run unit tests with a coverage profile
//	mage test:services      Run the live Redis and Postgres tests
//	mage services:up        Start Postgres, Redis and MinIO containers
//	mage services:down      Stop them
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "magsav"
	binaryDir  = "bin"
	cmdDir     = "./cmd/magsav"
	versionVar = "github.com/mesh-intelligence/magsav/internal/cli.Version"
)

// version returns the version stamped into the binary: the nearest git tag
// without its leading v, or "dev" outside a tagged checkout.
func version() string {
	out, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || out == "" {
		return "dev"
	}
	return strings.TrimPrefix(out, "v")
}

// Build compiles the magsav binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	ldflags := "-X " + versionVar + "=" + version()
	return sh.RunV(binGo, "build", "-v", "-ldflags", ldflags, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
