// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"runtime"

	"github.com/sirupsen/logrus"
)

// Debug logs the state of the hub and every open world.
func (h *Hub) Debug() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	fields := logrus.Fields{
		"heapMB":     stats.HeapInuse / 1e6,
		"nextGCMB":   stats.NextGC / 1e6,
		"goroutines": runtime.NumGoroutine(),
		"clients":    h.clients.Len,
		"worlds":     len(h.sessions),
		"saving":     len(h.closing),
	}
	if mesher, ok := h.options.Mesher.(*HeadlessMesher); ok {
		fields["meshes"] = mesher.Live()
	}
	h.logger.WithFields(fields).Debug("hub")

	for worldID, session := range h.sessions {
		stats := session.Cache.Stats()
		logger := h.logger.WithFields(logrus.Fields{
			"world":         worldID,
			"viewer":        session.Cache.Viewer(),
			"loaded":        stats.Loaded,
			"unloading":     stats.Unloading,
			"queued":        stats.Queued,
			"fetching":      stats.Fetching,
			"dirty":         stats.Dirty,
			"pendingWrites": stats.PendingWrites,
			"writing":       stats.Writing,
			"writeFailures": stats.WriteFailures,
		})
		if stats.WriteFailures > 0 {
			logger.Warn("world")
		} else {
			logger.Debug("world")
		}
	}
}
