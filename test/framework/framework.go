package framework

import (
	"os"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// TestFramework is used to support commonly used test features.
type TestFramework struct {
	setup    func(*TestFramework) error
	teardown func(*TestFramework) error

	tempDirs  []string
	tempFiles []string
}

// NewTestFramework creates a new test framework instance for a given
// `setup` and `teardown` function.
func NewTestFramework(setup, teardown func(*TestFramework) error) *TestFramework {
	return &TestFramework{setup: setup, teardown: teardown}
}

// NilFunc is a convenience function which simply does nothing.
func NilFunc(f *TestFramework) error {
	return nil
}

// Setup is the global initialization function which runs before each test
// suite.
func (t *TestFramework) Setup() {
	gomega.Expect(t.setup(t)).To(gomega.Succeed())
}

// Teardown is the global deinitialization function which runs after each
// test suite.
func (t *TestFramework) Teardown() {
	gomega.Expect(t.teardown(t)).To(gomega.Succeed())

	for _, d := range t.tempDirs {
		os.RemoveAll(d)
	}
	for _, f := range t.tempFiles {
		os.RemoveAll(f)
	}
}

// Describe is a convenience wrapper around the `ginkgo.Describe` function.
func (t *TestFramework) Describe(text string, body func()) bool {
	return ginkgo.Describe("warpbox: "+text, body)
}

// MustTempDir uses os.MkdirTemp to create a temporary directory with the
// given prefix. It panics on any error.
func (t *TestFramework) MustTempDir(prefix string) string {
	path, err := os.MkdirTemp("", prefix)
	if err != nil {
		panic(err)
	}
	t.tempDirs = append(t.tempDirs, path)
	return path
}

// MustTempFile uses os.CreateTemp to create a temporary file with the
// given pattern. It panics on any error.
func (t *TestFramework) MustTempFile(pattern string) string {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		panic(err)
	}
	t.tempFiles = append(t.tempFiles, f.Name())
	return f.Name()
}

// RunFrameworkSpecs is a convenience wrapper for running tests.
func RunFrameworkSpecs(t *testing.T, suiteName string) {
	ginkgo.RunSpecs(t, suiteName)
}
