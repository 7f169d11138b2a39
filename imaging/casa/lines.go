package casa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Line test-image errors.
var (
	ErrNoSources = errors.New("casa: no valid sources")
	ErrNoFields  = errors.New("casa: field list not found in CASA output")
)

// Test-image defaults.
const (
	TestImageDir   = "test_images"
	TestImageLog   = "logs/testimage_lines.log"
	TestImageWidth = 10
)

// FieldLister returns the field names of a measurement set.
type FieldLister interface {
	Fields(ctx context.Context, vis string) ([]string, error)
}

// CASAFieldLister reads field names through the CASA metadata tool.
type CASAFieldLister struct {
	Runner Runner
	Dir    string
}

// Fields runs a metadata script and parses the printed name list.
func (l *CASAFieldLister) Fields(ctx context.Context, vis string) ([]string, error) {
	script, err := render(fieldsTemplate, fieldsScript{Vis: vis, Marker: fieldsMarker})
	if err != nil {
		return nil, err
	}
	var (
		names []string
		found bool
		perr  error
	)
	w := newLineWriter(func(line string) {
		i := strings.Index(line, fieldsMarker)
		if i < 0 || found {
			return
		}
		found = true
		perr = json.Unmarshal([]byte(strings.TrimSpace(line[i+len(fieldsMarker):])), &names)
	})
	err = l.Runner.Run(ctx, l.Dir, script, w)
	w.Flush()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoFields, vis)
	}
	if perr != nil {
		return nil, fmt.Errorf("casa: field list: %w", perr)
	}
	return names, nil
}

// HasField reports whether any field name contains source.
func HasField(fields []string, source string) bool {
	for _, f := range fields {
		if strings.Contains(f, source) {
			return true
		}
	}
	return false
}

// LineTestImages makes one quick dirty image per source and line SPW of a
// pipeline-calibrated measurement set.
type LineTestImages struct {
	Vis         string
	Sources     []string
	SPWs        []int
	Channels    []int // number of channels in each SPW
	Width       int   // channels averaged into the plane; TestImageWidth when zero
	PhaseCenter string
	WorkDir     string
	Runner      Runner
	Fields      FieldLister
	Logger      *zap.Logger
}

// ImageName returns the image prefix for source and spw.
func (t *LineTestImages) ImageName(source string, spw int) string {
	return fmt.Sprintf("%s/%s.%s.spw_%d", TestImageDir, strings.TrimSuffix(t.Vis, ".ms"), source, spw)
}

// StartChannel returns the first channel of a width-channel plane centred
// on an SPW of nchan channels.
func StartChannel(nchan, width int) int {
	return max(nchan/2-width/2, 0)
}

// ValidSources filters t.Sources down to those present in the field list,
// logging each one that is dropped.
func (t *LineTestImages) ValidSources(ctx context.Context, logger *zap.Logger) ([]string, error) {
	fields, err := t.Fields.Fields(ctx, t.Vis)
	if err != nil {
		return nil, err
	}
	var valid []string
	for _, s := range t.Sources {
		if HasField(fields, s) {
			valid = append(valid, s)
			continue
		}
		logger.Warn("no field contains the given source", zap.String("source", s))
	}
	return valid, nil
}

// Run images every valid source in every SPW. It returns the image
// prefixes written relative to WorkDir. ErrNoSources is returned, without
// imaging, when no requested source matches a field.
func (t *LineTestImages) Run(ctx context.Context) ([]string, error) {
	if len(t.Channels) != len(t.SPWs) {
		return nil, fmt.Errorf("%w: %d SPWs but %d channel counts", ErrInvalidParameters, len(t.SPWs), len(t.Channels))
	}
	if t.Vis == "" {
		return nil, fmt.Errorf("%w: empty vis", ErrInvalidParameters)
	}
	logger, closeLog, err := TeeLogger(t.Logger, filepath.Join(t.WorkDir, TestImageLog))
	if err != nil {
		return nil, err
	}
	defer closeLog()
	logger.Info("starting line test imaging", zap.String("vis", t.Vis))

	if err := os.MkdirAll(filepath.Join(t.WorkDir, TestImageDir), 0o755); err != nil {
		return nil, fmt.Errorf("casa: %w", err)
	}

	sources, err := t.ValidSources(ctx, logger)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		logger.Warn("no valid sources given, exiting without imaging")
		return nil, ErrNoSources
	}

	width := t.Width
	if width <= 0 {
		width = TestImageWidth
	}
	phase := t.PhaseCenter
	if phase == "" {
		phase = M33PhaseCenter
	}

	var images []string
	for _, src := range sources {
		for i, spw := range t.SPWs {
			if err := ctx.Err(); err != nil {
				return images, err
			}
			logger.Info(fmt.Sprintf("imaging SPW %d of %d", i, len(t.SPWs)),
				zap.String("source", src), zap.Int("spw", spw))
			name := t.ImageName(src, spw)
			script, err := render(lineImageTemplate, lineScript{
				Vis:         t.Vis,
				Source:      src,
				Field:       src + "*",
				SPW:         spw,
				SPWString:   strconv.Itoa(spw),
				ImageName:   name,
				Start:       StartChannel(t.Channels[i], width),
				Width:       width,
				PhaseCenter: phase,
			})
			if err != nil {
				return images, err
			}
			w := newLineWriter(func(line string) { logger.Debug("casa", zap.String("line", line)) })
			err = t.Runner.Run(ctx, t.WorkDir, script, w)
			w.Flush()
			if err != nil {
				return images, fmt.Errorf("casa: %s: %w", name, err)
			}
			images = append(images, name)
		}
	}
	logger.Info("finished line test imaging", zap.Int("images", len(images)))
	return images, nil
}

// TeeLogger returns base extended with a JSON file sink at path. The
// returned func flushes the file sink.
func TeeLogger(base *zap.Logger, path string) (*zap.Logger, func(), error) {
	if base == nil {
		base = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("casa: log dir: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	file, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("casa: log file: %w", err)
	}
	logger := base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, file.Core())
	}))
	return logger, func() { _ = file.Sync() }, nil
}
