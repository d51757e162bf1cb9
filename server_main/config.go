// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "HEXVOXEL"

// config is read from flags, then HEXVOXEL_* environment variables (optionally from
// a .env file), then defaults.
type config struct {
	Port           int           `mapstructure:"port"`
	MaxConnections int           `mapstructure:"max-connections"`
	Store          string        `mapstructure:"store"`
	File           string        `mapstructure:"file"`
	SnapshotPeriod time.Duration `mapstructure:"snapshot-period"`
	AWSRegion      string        `mapstructure:"aws-region"`
	AWSStage       string        `mapstructure:"aws-stage"`
	MySQLDSN       string        `mapstructure:"mysql-dsn"`
	CacheMB        int64         `mapstructure:"cache-mb"`

	RenderDistance int           `mapstructure:"render-distance"`
	LODDistance    int           `mapstructure:"lod-distance"`
	MaxInflight    int           `mapstructure:"max-inflight"`
	FlushPeriod    time.Duration `mapstructure:"flush-period"`
	RetryMax       time.Duration `mapstructure:"retry-max"`

	LogLevel      string `mapstructure:"log-level"`
	LogJSON       bool   `mapstructure:"log-json"`
	LogFile       string `mapstructure:"log-file"`
	LogMaxSizeMB  int    `mapstructure:"log-max-size"`
	LogMaxBackups int    `mapstructure:"log-max-backups"`
}

const (
	storeMemory   = "memory"
	storeFile     = "file"
	storeDynamoDB = "dynamodb"
	storeMySQL    = "mysql"
)

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("hexvoxel", pflag.ContinueOnError)

	flags.Int("port", 8192, "http service port")
	flags.Int("max-connections", 256, "maximum number of inbound TCP connections")
	flags.String("store", storeFile, "where worlds are saved: memory, file, dynamodb or mysql")
	flags.String("file", "hexvoxel.json", "snapshot file of the file store")
	flags.Duration("snapshot-period", time.Minute, "how often the file store writes its snapshot")
	flags.String("aws-region", "", "AWS region of the dynamodb store (default from EC2 user data)")
	flags.String("aws-stage", "", "table and bucket stage of the dynamodb store (default from EC2 user data)")
	flags.String("mysql-dsn", "", "data source name of the mysql store")
	flags.Int64("cache-mb", 64, "size of the chunk record cache in front of remote stores, 0 to disable")

	flags.Int("render-distance", 8, "chunks loaded around the viewer")
	flags.Int("lod-distance", 4, "chunks beyond this distance use low detail meshes")
	flags.Int("max-inflight", 4, "concurrent chunk loads per world")
	flags.Duration("flush-period", 5*time.Second, "how often modified chunks are saved, negative to disable")
	flags.Duration("retry-max", 30*time.Second, "longest wait before retrying a failed save, 0 to retry every flush")

	flags.String("log-level", "info", "logrus level")
	flags.Bool("log-json", false, "log JSON lines")
	flags.String("log-file", "", "also log to this rotated file")
	flags.Int("log-max-size", 100, "megabytes before the log file is rotated")
	flags.Int("log-max-backups", 5, "rotated log files to keep")

	return flags
}

func loadConfig(args []string) (*config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not load .env: %w", err)
	}

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}

	var c config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	switch c.Store {
	case storeMemory, storeFile, storeDynamoDB, storeMySQL:
	default:
		return nil, fmt.Errorf("invalid store %q", c.Store)
	}
	if c.Store == storeMySQL && c.MySQLDSN == "" {
		return nil, errors.New("mysql store requires mysql-dsn")
	}
	if c.RenderDistance < 1 || c.LODDistance < 1 || c.MaxInflight < 1 {
		return nil, errors.New("distances and max-inflight must be at least 1")
	}

	return &c, nil
}
