// Package config builds the immutable run options of a batch: defaults,
// then an optional .env file, then environment variables, then CLI flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Lllllllleong/tipopdf/internal/imaging"
	"github.com/Lllllllleong/tipopdf/internal/pagekey"
	"github.com/Lllllllleong/tipopdf/internal/pdf"
)

// Options configures one batch run. It is built once and passed by value.
type Options struct {
	SrcPrefix         string
	DstPrefix         string
	Volumes           []string
	TargetFolder      string
	Skip              int
	SkipIfExists      bool
	ResumeOnError     bool
	SizeDiffThreshold int64
	IgnoreExtensions  []string
	WatermarkText     string
	PageSize          string
	ReportFile        string
	MetricsFile       string
	LogLevel          slog.Level
	LogFormat         string
}

func Defaults() Options {
	return Options{
		SrcPrefix:         ".",
		DstPrefix:         ".",
		SkipIfExists:      true,
		SizeDiffThreshold: imaging.DefaultSizeDiffThreshold,
		IgnoreExtensions:  append([]string(nil), pagekey.DefaultIgnoreExtensions...),
		WatermarkText:     pdf.Author,
		PageSize:          pdf.DefaultPageSize,
		LogLevel:          slog.LevelInfo,
		LogFormat:         "json",
	}
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// LoadEnvFile loads the first of .env and .env.local found in dir.
// Variables already set in the process environment are not overridden.
// It returns the file loaded, or "" when there is none.
func LoadEnvFile(dir string) (string, error) {
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return "", fmt.Errorf("failed to load %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}

// FromEnv overlays environment variables on base.
func FromEnv(base Options) (Options, error) {
	o := base
	var errs []error

	o.SrcPrefix = GetEnv("TIPO_SRC_PREFIX", o.SrcPrefix)
	o.DstPrefix = GetEnv("TIPO_DST_PREFIX", o.DstPrefix)
	o.WatermarkText = GetEnv("TIPO_WATERMARK_TEXT", o.WatermarkText)
	o.PageSize = GetEnv("TIPO_PAGE_SIZE", o.PageSize)
	o.ReportFile = GetEnv("TIPO_REPORT_FILE", o.ReportFile)
	o.MetricsFile = GetEnv("TIPO_METRICS_FILE", o.MetricsFile)
	o.LogFormat = strings.ToLower(GetEnv("LOG_FORMAT", o.LogFormat))

	if v, ok := os.LookupEnv("TIPO_SKIP"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TIPO_SKIP: %w", err))
		}
		o.Skip = n
	}
	if v, ok := os.LookupEnv("TIPO_SKIP_IF_EXISTS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TIPO_SKIP_IF_EXISTS: %w", err))
		}
		o.SkipIfExists = b
	}
	if v, ok := os.LookupEnv("TIPO_RESUME_ON_ERROR"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TIPO_RESUME_ON_ERROR: %w", err))
		}
		o.ResumeOnError = b
	}
	if v, ok := os.LookupEnv("TIPO_SIZE_DIFF_THRESHOLD"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TIPO_SIZE_DIFF_THRESHOLD: %w", err))
		}
		o.SizeDiffThreshold = n
	}
	if v, ok := os.LookupEnv("TIPO_IGNORE_EXTENSIONS"); ok {
		o.IgnoreExtensions = ParseExtensions(v)
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if err := o.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return base, fmt.Errorf("invalid environment: %w", err)
	}
	return o, nil
}

// ParseExtensions splits a comma-separated extension list, adding the
// leading dot where missing.
func ParseExtensions(s string) []string {
	var exts []string
	for _, e := range strings.Split(s, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}

// Validate rejects options no batch can run with.
func (o Options) Validate() error {
	var errs []error
	if len(o.Volumes) == 0 {
		errs = append(errs, errors.New("no source volumes given"))
	}
	if o.TargetFolder == "" {
		errs = append(errs, errors.New("no target folder given"))
	}
	if o.Skip < 0 {
		errs = append(errs, fmt.Errorf("skip count must not be negative, got %d", o.Skip))
	}
	if o.SizeDiffThreshold < 0 {
		errs = append(errs, fmt.Errorf("size diff threshold must not be negative, got %d", o.SizeDiffThreshold))
	}
	if strings.TrimSpace(o.WatermarkText) == "" {
		errs = append(errs, errors.New("watermark text must not be empty"))
	}
	if _, err := pdf.PageDim(o.PageSize); err != nil {
		errs = append(errs, err)
	}
	switch o.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", o.LogFormat))
	}
	return errors.Join(errs...)
}
