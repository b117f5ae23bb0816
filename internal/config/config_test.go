package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOptions() Options {
	o := Defaults()
	o.Volumes = []string{"PP1024020"}
	o.TargetFolder = "201307"
	return o
}

func TestDefaults(t *testing.T) {
	o := Defaults()
	assert.True(t, o.SkipIfExists)
	assert.False(t, o.ResumeOnError)
	assert.Equal(t, int64(20000), o.SizeDiffThreshold)
	assert.Equal(t, []string{".txt", ".db", ".nrg"}, o.IgnoreExtensions)
	assert.Equal(t, "InnoVue Corp.", o.WatermarkText)
	assert.Equal(t, "A4", o.PageSize)
	assert.Equal(t, slog.LevelInfo, o.LogLevel)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TIPO_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnv("TIPO_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("TIPO_TEST_MISSING", "fallback"))
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TIPO_SRC_PREFIX", "/data/tiff")
	t.Setenv("TIPO_DST_PREFIX", "/data/pdf")
	t.Setenv("TIPO_SKIP", "12")
	t.Setenv("TIPO_SKIP_IF_EXISTS", "false")
	t.Setenv("TIPO_RESUME_ON_ERROR", "true")
	t.Setenv("TIPO_SIZE_DIFF_THRESHOLD", "5000")
	t.Setenv("TIPO_IGNORE_EXTENSIONS", "txt, .DB ,,log")
	t.Setenv("TIPO_WATERMARK_TEXT", "Example Corp.")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "TEXT")

	o, err := FromEnv(Defaults())
	require.NoError(t, err)
	assert.Equal(t, "/data/tiff", o.SrcPrefix)
	assert.Equal(t, "/data/pdf", o.DstPrefix)
	assert.Equal(t, 12, o.Skip)
	assert.False(t, o.SkipIfExists)
	assert.True(t, o.ResumeOnError)
	assert.Equal(t, int64(5000), o.SizeDiffThreshold)
	assert.Equal(t, []string{".txt", ".db", ".log"}, o.IgnoreExtensions)
	assert.Equal(t, "Example Corp.", o.WatermarkText)
	assert.Equal(t, slog.LevelDebug, o.LogLevel)
	assert.Equal(t, "text", o.LogFormat)
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Setenv("TIPO_SKIP", "many")
	t.Setenv("TIPO_RESUME_ON_ERROR", "perhaps")

	base := Defaults()
	o, err := FromEnv(base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIPO_SKIP")
	assert.Contains(t, err.Error(), "TIPO_RESUME_ON_ERROR")
	assert.Equal(t, base, o)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("TIPO_LOADED_FROM_FILE=yes\nTIPO_ALREADY_SET=file\n"), 0o644))
	t.Setenv("TIPO_ALREADY_SET", "process")
	// t.Setenv restores the variable afterwards; register the loaded one too.
	t.Setenv("TIPO_LOADED_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("TIPO_LOADED_FROM_FILE"))

	path, err := LoadEnvFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".env.local"), path)
	assert.Equal(t, "yes", os.Getenv("TIPO_LOADED_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("TIPO_ALREADY_SET"))
}

func TestLoadEnvFile_None(t *testing.T) {
	path, err := LoadEnvFile(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestParseExtensions(t *testing.T) {
	assert.Equal(t, []string{".txt", ".nrg"}, ParseExtensions("TXT,.nrg"))
	assert.Nil(t, ParseExtensions(" , "))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr string
	}{
		{"valid", func(*Options) {}, ""},
		{"no volumes", func(o *Options) { o.Volumes = nil }, "no source volumes"},
		{"no target", func(o *Options) { o.TargetFolder = "" }, "no target folder"},
		{"negative skip", func(o *Options) { o.Skip = -1 }, "skip count"},
		{"negative threshold", func(o *Options) { o.SizeDiffThreshold = -5 }, "size diff threshold"},
		{"blank watermark", func(o *Options) { o.WatermarkText = "  " }, "watermark text"},
		{"unknown page size", func(o *Options) { o.PageSize = "A99" }, "page size"},
		{"bad log format", func(o *Options) { o.LogFormat = "xml" }, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOptions()
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
