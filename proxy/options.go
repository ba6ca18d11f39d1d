package proxy

import (
	"io"

	"github.com/mohae/deepcopy"
	"github.com/sirupsen/logrus"
)

type Option interface {
	Apply(o *Options)
}

type OptionFunc func(*Options)

func (f OptionFunc) Apply(o *Options) { f(o) }

type Options struct {
	DebugMode bool
	LogLevel  string
	// Logger overrides the logger built from LogLevel and DebugMode.
	Logger *logrus.Logger
	// Errors is handed to applications as Environ.Errors. Defaults to stderr.
	Errors        io.Writer
	StaticLinkMap map[string]string
	PrefixLinkMap map[string]string
}

var defaultOptions = &Options{
	DebugMode:     false,
	LogLevel:      "info",
	StaticLinkMap: map[string]string{},
	PrefixLinkMap: map[string]string{},
}

func NewOptions(opts ...Option) *Options {
	options := deepcopy.Copy(defaultOptions).(*Options)
	options.init(opts...)
	return options
}

func (o *Options) init(opts ...Option) {
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(o)
		}
	}
}

func (o *Options) newLogger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(o.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if o.DebugMode {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)
	return l
}

// -------------- Proxy Options ----------------

func WithDebugMode(debug bool) Option {
	return OptionFunc(func(o *Options) {
		o.DebugMode = debug
	})
}

func WithLogLevel(level string) Option {
	return OptionFunc(func(o *Options) {
		o.LogLevel = level
	})
}

func WithLogger(l *logrus.Logger) Option {
	return OptionFunc(func(o *Options) {
		o.Logger = l
	})
}

func WithErrorWriter(w io.Writer) Option {
	return OptionFunc(func(o *Options) {
		o.Errors = w
	})
}

// WithStaticLink rewrites an event path equal to srcPath into dstPath
// before translation.
func WithStaticLink(srcPath, dstPath string) Option {
	return OptionFunc(func(o *Options) {
		o.StaticLinkMap[srcPath] = dstPath
	})
}

// WithPrefixLink replaces the leading srcPrefix of an event path with
// dstPrefix before translation.
func WithPrefixLink(srcPrefix, dstPrefix string) Option {
	return OptionFunc(func(o *Options) {
		o.PrefixLinkMap[srcPrefix] = dstPrefix
	})
}
