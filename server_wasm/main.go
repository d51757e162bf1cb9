// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build js && wasm

package main

import (
	"github.com/SoftbearStudios/hexvoxel/server"
	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func main() {
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})

	hub = server.NewHub(server.HubOptions{
		Database: db.NewMemoryDatabase(),
		Logger:   logger,
	})

	logger.Info("hexvoxel WASM server started")

	hub.Register(&localClient)

	hub.Run()
}
