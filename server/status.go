// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

// status is served as JSON by ServeIndex.
type status struct {
	Clients       int `json:"clients"`
	Worlds        int `json:"worlds"`
	Saving        int `json:"saving"`
	Loaded        int `json:"loaded"`
	PendingWrites int `json:"pendingWrites"`
	WriteFailures int `json:"writeFailures"`
}

// Status sends a Status to every client with an open world and updates the status JSON.
func (h *Hub) Status() {
	s := status{
		Clients: h.clients.Len,
		Worlds:  len(h.sessions),
		Saving:  len(h.closing),
	}

	for client := h.clients.First; client != nil; client = client.Data().Next {
		session := client.Data().Session
		if session == nil {
			continue
		}

		stats := session.Cache.Stats()
		s.Loaded += stats.Loaded
		s.PendingWrites += stats.PendingWrites
		s.WriteFailures += stats.WriteFailures

		client.Send(Status{Viewer: session.Cache.Viewer(), Stats: stats})
	}

	statusJSON, err := JSON.Marshal(s)
	if err != nil {
		h.logger.WithError(err).Error("could not marshal status")
		return
	}
	h.statusJSON.Store(statusJSON)
}
