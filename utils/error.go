package utils

import "errors"

// ErrorIsAnyOf reports whether err matches any of targets with errors.Is. The collector
// uses it to tell a scan stopped by cancellation apart from a failing adapter.
func ErrorIsAnyOf(err error, targets ...error) bool {
	if err == nil {
		return false
	}

	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
