package dynreflect

import (
	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/dynreflect/cache"
	"github.com/Konsultn-Engineering/dynreflect/config"
	"github.com/Konsultn-Engineering/dynreflect/convert"
)

type options struct {
	logger             *zap.Logger
	namespace          string
	converterCacheSize int
	timeLayouts        []string
	shards             int
	warmup             bool
}

func defaultOptions() *options {
	return &options{
		logger:             zap.NewNop(),
		namespace:          "main",
		converterCacheSize: convert.DefaultCacheSize,
		shards:             cache.DefaultShards,
	}
}

type Option func(*options)

// WithLogger sets the logger for warmup failures, degraded invocations and
// cache clears.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDefaultNamespace sets the module searched first by Resolve. An empty
// name keeps the default.
func WithDefaultNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// WithConverterCacheSize sets the capacity of the conversion plan cache.
func WithConverterCacheSize(size int) Option {
	return func(o *options) { o.converterCacheSize = size }
}

// WithTimeLayouts sets the layouts tried when parsing time.Time from strings.
func WithTimeLayouts(layouts ...string) Option {
	return func(o *options) { o.timeLayouts = layouts }
}

// WithShards sets the shard count of the accessor and invoker caches.
func WithShards(n int) Option {
	return func(o *options) { o.shards = n }
}

// WithWarmup runs Warmup at the end of New.
func WithWarmup(enabled bool) Option {
	return func(o *options) { o.warmup = enabled }
}

// WithConfig applies a loaded configuration. The logger is not part of it:
// build one with cfg.NewLogger and pass it through WithLogger.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg == nil {
			return
		}
		if cfg.DefaultNamespace != "" {
			o.namespace = cfg.DefaultNamespace
		}
		o.converterCacheSize = cfg.Converter.CacheSize
		o.timeLayouts = cfg.Converter.TimeLayouts
		o.shards = cfg.Shards
		o.warmup = cfg.Warmup
	}
}
