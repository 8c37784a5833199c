// Copyright 2019 Jorn Friedrich Dreyer
// Modified 2021 Serhii Mikhno
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger defines an implementation of the github.com/go-logr/logr
// interfaces built on top of zerolog (github.com/rs/zerolog).
package logger

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/rs/zerolog"
)

const (
	timeFormat = "2006-01-02 15:04:05.000"
)

var globalVerbosity int32

// GlobalConfig holds the process wide logging settings.
type GlobalConfig struct {
	// V is the highest verbosity that gets printed, 0 prints info only.
	V int `mapstructure:"v"`
}

// SetGlobalOptions applies c to every logger, including ones already created.
func SetGlobalOptions(c GlobalConfig) {
	atomic.StoreInt32(&globalVerbosity, int32(c.V))
}

// Verbosity returns the current global verbosity.
func Verbosity() int {
	return int(atomic.LoadInt32(&globalVerbosity))
}

// Options that can be passed to NewWithOptions
type Options struct {
	// Name is an optional name of the logger
	Name string
	// TimeFormat overrides the console timestamp layout
	TimeFormat string
	// Output defaults to os.Stdout
	Output io.Writer
	// NoColor disables console colors
	NoColor bool
}

// New returns a logr.Logger which is implemented by zerolog.
func New() logr.Logger {
	return NewWithOptions(Options{})
}

// NewWithOptions returns a logr.Logger which is implemented by zerolog.
func NewWithOptions(opts Options) logr.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = timeFormat
	}
	zerolog.TimeFieldFormat = opts.TimeFormat
	l := zerolog.New(getOutputFormat(opts.Output, opts.TimeFormat, opts.NoColor)).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()
	return logger{
		l:      &l,
		prefix: opts.Name,
	}
}

// logger is a logr.Logger that uses zerolog to log.
type logger struct {
	l         *zerolog.Logger
	verbosity int
	prefix    string
	values    []interface{}
}

func (l logger) Enabled() bool {
	return l.verbosity <= Verbosity()
}

func (l logger) Info(msg string, keysAndVals ...interface{}) {
	if !l.Enabled() {
		return
	}
	var e *zerolog.Event
	if l.verbosity == 0 {
		e = l.l.Info()
	} else {
		e = l.l.Debug().Int("v", l.verbosity)
	}
	l.write(e, msg, keysAndVals)
}

func (l logger) Error(err error, msg string, keysAndVals ...interface{}) {
	l.write(l.l.Error().Err(err), msg, keysAndVals)
}

func (l logger) write(e *zerolog.Event, msg string, keysAndVals []interface{}) {
	if l.prefix != "" {
		e.Str("name", l.prefix)
	}
	add(e, l.values)
	add(e, keysAndVals)
	e.Msg(msg)
}

func (l logger) V(verbosity int) logr.Logger {
	n := l.clone()
	n.verbosity += verbosity
	return n
}

// WithName returns a new logr.Logger with the specified name appended. zerologr
// uses '/' characters to separate name elements.  Callers should not pass '/'
// in the provided name string, but this library does not actually enforce that.
func (l logger) WithName(name string) logr.Logger {
	n := l.clone()
	if len(l.prefix) > 0 {
		n.prefix = l.prefix + "/"
	}
	n.prefix += name
	return n
}

func (l logger) WithValues(kvList ...interface{}) logr.Logger {
	n := l.clone()
	n.values = append(n.values, kvList...)
	return n
}
