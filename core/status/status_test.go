// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package status_test

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/paascharm/core/status"
)

type StatusSuite struct{}

var _ = gc.Suite(&StatusSuite{})

func (s *StatusSuite) TestKnownStatus(c *gc.C) {
	for _, known := range []status.Status{
		status.Active, status.Waiting, status.Maintenance, status.Blocked,
	} {
		c.Assert(known.KnownStatus(), jc.IsTrue)
	}
	c.Assert(status.Status("error").KnownStatus(), jc.IsFalse)
	c.Assert(status.Status("").KnownStatus(), jc.IsFalse)
}

func (s *StatusSuite) TestString(c *gc.C) {
	c.Assert(status.Blocked.String(), gc.Equals, "blocked")
}
