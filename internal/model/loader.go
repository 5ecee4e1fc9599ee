package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Runtimes maps a runtime name to its implementation.
type Runtimes map[string]Runtime

// For returns the runtime called name, or when name is "" or "auto" the one
// matching the artifact's file extension.
func (r Runtimes) For(name, path string) (Runtime, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "auto" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	rt, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRuntime, name)
	}
	return rt, nil
}

type Loader struct {
	cfg      Config
	runtimes Runtimes
	fallback []string
	logger   *zap.Logger
}

// NewLoader returns a loader for cfg. fallback is the class order used when the
// label side-car is absent, normally the catalog's key order.
func NewLoader(cfg Config, runtimes Runtimes, fallback []string, logger *zap.Logger) *Loader {
	return &Loader{
		cfg:      cfg,
		runtimes: runtimes,
		fallback: fallback,
		logger:   logger,
	}
}

func (l *Loader) Load() (*Model, error) {
	if _, err := os.Stat(l.cfg.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, l.cfg.Path)
		}
		return nil, fmt.Errorf("failed to stat model: %w", err)
	}

	rt, err := l.runtimes.For(l.cfg.Runtime, l.cfg.Path)
	if err != nil {
		return nil, err
	}

	classes, err := l.classNames()
	if err != nil {
		return nil, err
	}

	interp, err := rt.Open(l.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s model: %w", rt.Name(), err)
	}

	if n := interp.OutputSize(); n > 0 && n != len(classes) {
		interp.Close()
		return nil, fmt.Errorf("%w: %d class names, model outputs %d values", ErrClassCountMismatch, len(classes), n)
	}

	l.logger.Debug("model loaded",
		zap.String("path", l.cfg.Path),
		zap.String("runtime", rt.Name()),
		zap.Int64s("input_shape", interp.InputShape()),
		zap.Strings("classes", classes),
	)

	return &Model{
		Interpreter: interp,
		Path:        l.cfg.Path,
		Classes:     classes,
	}, nil
}

func (l *Loader) classNames() ([]string, error) {
	classes, err := ReadClassNames(l.cfg.LabelMapPath)
	if err == nil {
		return classes, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	l.logger.Info("label map not found, using catalog order",
		zap.String("path", l.cfg.LabelMapPath),
		zap.Strings("classes", l.fallback),
	)
	out := make([]string, len(l.fallback))
	copy(out, l.fallback)
	return out, nil
}

// Acquire loads a fresh model for every call and closes it on release.
func (l *Loader) Acquire() (*Model, func(), error) {
	m, err := l.Load()
	if err != nil {
		return nil, nil, err
	}

	return m, func() {
		if err := m.Close(); err != nil {
			l.logger.Warn("failed to close model", zap.Error(err))
		}
	}, nil
}
