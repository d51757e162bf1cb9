// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configure NewLogger.
type LogOptions struct {
	// Level is a logrus level name such as "info" or "debug".
	Level string
	// JSON switches from text to JSON lines.
	JSON bool
	// File, if set, receives a rotated copy of every line.
	File string
	// MaxSizeMB and MaxBackups bound the rotated files.
	MaxSizeMB  int
	MaxBackups int
}

// NewLogger creates the logger shared by the hub, registry and chunk caches.
func NewLogger(options LogOptions) (*logrus.Logger, error) {
	logger := logrus.New()

	level := logrus.InfoLevel
	if options.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(options.Level); err != nil {
			return nil, err
		}
	}
	logger.SetLevel(level)

	if options.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if options.File != "" {
		logger.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   options.File,
			MaxSize:    options.MaxSizeMB,
			MaxBackups: options.MaxBackups,
			Compress:   true,
		}))
	}

	return logger, nil
}
