// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"testing"
)

func TestParseUserData(t *testing.T) {
	data, err := parseUserData("#!/bin/bash\nREGION=\"us-east-1\"\n STAGE = prod \nOTHER=1\n")
	if err != nil {
		t.Fatal(err)
	}
	if data.Region != "us-east-1" || data.Stage != "prod" {
		t.Errorf("unexpected user data %+v", data)
	}

	if _, err := parseUserData("REGION=us-east-1\n"); err == nil {
		t.Error("expected missing stage error")
	}
}
