// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"time"
)

// TickPeriod is how often the host advances the chunk scheduler.
const TickPeriod = time.Second / 30
