/*
Copyright 2021 ICS-FORTH.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging gives every component the same narrow logging
// surface, the way a controller's Reconciler exposes Info/Error/V over
// a logr.Logger. Two backings are provided: a logrus one for the admin
// path (Producer Manager, cron trigger, Lifecycle Service) and a zap one for the Scheduler Engine's
// offer-processing hot path, which sees far more log calls per second.
package logging

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// Logger is the narrow logging surface every component depends on.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(err error, msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	WithValues(keysAndValues ...interface{}) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus returns a Logger backed by logrus, used on the admin path.
func NewLogrus(name string) Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &logrusLogger{entry: l.WithField("component", name)}
}

func fieldsOf(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)

	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}

		fields[key] = kv[i+1]
	}

	return fields
}

func (l *logrusLogger) Info(msg string, kv ...interface{}) {
	l.entry.WithFields(fieldsOf(kv)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, kv ...interface{}) {
	l.entry.WithFields(fieldsOf(kv)).Warn(msg)
}

func (l *logrusLogger) Error(err error, msg string, kv ...interface{}) {
	l.entry.WithFields(fieldsOf(kv)).WithError(err).Error(msg)
}

func (l *logrusLogger) WithValues(kv ...interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithFields(fieldsOf(kv))}
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZap returns a Logger backed by zap, used on the Scheduler Engine's
// resourceOffers/statusUpdate hot path.
func NewZap(name string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"

	base, err := cfg.Build()
	if err != nil {
		// zap's production config never fails to build; fall back to a
		// no-op core rather than panicking the engine over logging.
		base = zap.NewNop()
	}

	return &zapLogger{sugar: base.Sugar().Named(name)}
}

func (l *zapLogger) Info(msg string, kv ...interface{}) {
	l.sugar.Infow(msg, kv...)
}

func (l *zapLogger) Warn(msg string, kv ...interface{}) {
	l.sugar.Warnw(msg, kv...)
}

func (l *zapLogger) Error(err error, msg string, kv ...interface{}) {
	l.sugar.Errorw(msg, append(kv, "error", err)...)
}

func (l *zapLogger) WithValues(kv ...interface{}) Logger {
	return &zapLogger{sugar: l.sugar.With(kv...)}
}
