package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.txt")
	require.NoError(t, os.WriteFile(path, []byte("first\n\n  second  \n\t\nthird"), 0o644))

	lines, err := readLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, lines)

	_, err = readLines(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestPick(t *testing.T) {
	assert.Equal(t, "bedrock", pick("bedrock", "openai"))
	assert.Equal(t, "openai", pick("", "openai"))
}

func TestEmbeddingOptions(t *testing.T) {
	assert.Nil(t, embeddingOptions(""))
	opts := embeddingOptions("text-embedding-3-large")
	require.NotNil(t, opts)
	assert.Equal(t, "text-embedding-3-large", *opts.Model)
}

func TestRuntimeCloseWithoutInit(t *testing.T) {
	var rt runtime
	assert.NoError(t, rt.close())
}

func TestRuntimeCloseAfterInit(t *testing.T) {
	t.Setenv("LLMFACTORY_LOG_LEVEL", "error")
	var rt runtime
	require.NoError(t, rt.init(context.Background(), "", filepath.Join(t.TempDir(), "missing.env")))
	require.NotNil(t, rt.tracer)
	assert.NoError(t, rt.close())
}
