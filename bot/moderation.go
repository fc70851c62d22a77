// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeout parses a timeout duration in the command syntax:
// "30s", "5m", "2h", "1d", or a bare number of seconds.
func ParseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	unit := time.Second
	digits := s
	switch {
	case strings.HasSuffix(s, "s"):
		digits = s[:len(s)-1]
	case strings.HasSuffix(s, "m"):
		digits, unit = s[:len(s)-1], time.Minute
	case strings.HasSuffix(s, "h"):
		digits, unit = s[:len(s)-1], time.Hour
	case strings.HasSuffix(s, "d"):
		digits, unit = s[:len(s)-1], 24*time.Hour
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid duration %q, use format like 30s, 5m, 2h, 1d", s)
	}
	return time.Duration(n) * unit, nil
}
