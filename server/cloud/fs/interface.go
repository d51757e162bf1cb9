// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fs

import (
	"context"
)

// Filesystem stores copies of save snapshots off the host.
type Filesystem interface {
	UploadSnapshot(ctx context.Context, filename string, data []byte) error
}
