// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"time"

	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	cloudfs "github.com/SoftbearStudios/hexvoxel/server/cloud/fs"
	"github.com/SoftbearStudios/hexvoxel/server_main/cloud"
	"github.com/sirupsen/logrus"
)

// store is the opened Database and, for the file store, what keeps its snapshot current.
type store struct {
	db.Database
	memory *db.MemoryDatabase
	file   string
	upload cloudfs.Filesystem
	logger logrus.FieldLogger
}

func openStore(c *config, logger logrus.FieldLogger) (*store, error) {
	s := &store{file: c.File, logger: logger.WithField("component", "store")}

	switch c.Store {
	case storeMemory:
		s.memory = db.NewMemoryDatabase()
		s.file = ""
	case storeFile:
		memory, err := db.LoadMemoryDatabaseFile(c.File)
		if err != nil {
			return nil, err
		}
		s.memory = memory

		// Snapshots are also uploaded when a stage is configured
		if c.AWSStage != "" {
			aws, err := cloud.NewAWS(c.AWSRegion, c.AWSStage)
			if err != nil {
				return nil, err
			}
			s.upload = aws.Filesystem
		}
	case storeDynamoDB:
		aws, err := cloud.NewAWS(c.AWSRegion, c.AWSStage)
		if err != nil {
			return nil, err
		}
		s.logger.WithFields(logrus.Fields{"region": aws.Region, "stage": aws.Stage}).Info("using dynamodb")
		s.Database = aws.Database
	case storeMySQL:
		sql, err := db.NewSQLDatabase(c.MySQLDSN)
		if err != nil {
			return nil, err
		}
		s.Database = sql
	}

	if s.memory != nil {
		s.Database = s.memory
	} else if c.CacheMB > 0 {
		cached, err := db.NewCached(s.Database, c.CacheMB<<20)
		if err != nil {
			return nil, err
		}
		s.Database = cached
	}

	return s, nil
}

// snapshot writes the file store to disk and uploads it if configured.
func (s *store) snapshot(ctx context.Context) error {
	if s.memory == nil || s.file == "" {
		return nil
	}

	if err := s.memory.SaveFile(s.file); err != nil {
		return err
	}

	if s.upload != nil {
		var buf bytes.Buffer
		if err := s.memory.Save(&buf); err != nil {
			return err
		}
		name := time.Now().UTC().Format("20060102-150405-") + filepath.Base(s.file)
		if err := s.upload.UploadSnapshot(ctx, name, buf.Bytes()); err != nil {
			s.logger.WithError(err).Warn("could not upload snapshot")
		}
	}
	return nil
}

// runSnapshots snapshots periodically until ctx is done.
func (s *store) runSnapshots(ctx context.Context, period time.Duration) {
	if s.memory == nil || s.file == "" || period <= 0 {
		return
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.snapshot(ctx); err != nil {
				s.logger.WithError(err).Error("could not write snapshot")
			}
		case <-ctx.Done():
			return
		}
	}
}
