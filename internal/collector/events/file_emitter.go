package events

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lugx/beacon/internal/common/configtypes"
)

const (
	DefaultMaxSize    = 100 // MB
	DefaultMaxAge     = 30  // days
	DefaultMaxBackups = 10
	DefaultTemplate   = "{timestamp}\t{id}\t{event_type}\t{page_url}\t{user_agent}\t{client_ip}"
)

// FileEmitter appends one formatted line per event to a rotated file
type FileEmitter struct {
	mu        sync.Mutex
	writer    *lumberjack.Logger
	formatter *TemplateFormatter
	logger    *zap.Logger
}

func NewFileEmitter(config configtypes.EventFileConfig, logger *zap.Logger) (*FileEmitter, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("event log path is required")
	}

	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	template := config.Template
	if template == "" {
		template = DefaultTemplate
	}
	formatter, err := NewTemplateFormatter(template)
	if err != nil {
		return nil, fmt.Errorf("invalid template for event log %s: %w", config.Path, err)
	}

	return &FileEmitter{
		writer: &lumberjack.Logger{
			Filename:   config.Path,
			MaxSize:    orDefault(config.Rotation.MaxSize, DefaultMaxSize),
			MaxAge:     orDefault(config.Rotation.MaxAge, DefaultMaxAge),
			MaxBackups: orDefault(config.Rotation.MaxBackups, DefaultMaxBackups),
			Compress:   config.Rotation.Compress,
		},
		formatter: formatter,
		logger:    logger,
	}, nil
}

func (f *FileEmitter) Emit(event *TrackedEvent) {
	line := f.formatter.Format(event) + "\n"

	f.mu.Lock()
	_, err := f.writer.Write([]byte(line))
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn("Failed to write event to log file",
			zap.String("request_id", event.RequestID),
			zap.Error(err))
	}
}

func (f *FileEmitter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writer.Close()
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
