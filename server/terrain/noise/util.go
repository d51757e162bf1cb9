// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package noise

import "github.com/SoftbearStudios/hexvoxel/server/terrain"

// clampToHeight keeps at least bedrock and one block of air.
func clampToHeight(f float64) int {
	if f < 1 {
		return 1
	}
	if f > terrain.Height-1 {
		return terrain.Height - 1
	}
	return int(f)
}

func clamp(val, minimum, maximum float64) float64 {
	return min(max(val, minimum), maximum)
}
