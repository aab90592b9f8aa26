package browser

import (
	"errors"
	"strings"
)

// The playwright driver reports failures as free text, so this is the
// one place in the codebase that matches error strings. Everything
// above this boundary works with FaultCategory values.

var corruptionIndicators = []string{
	"target page, context or browser has been closed",
	"browser has been closed",
	"context has been closed",
	"page has been closed",
	"connection closed",
	"target closed",
	"object has been collected",
	"websocket: close",
}

var timeoutIndicators = []string{
	"timeout",
	"deadline exceeded",
}

var navigationIndicators = []string{
	"net::err",
	"navigation failed",
	"could not navigate",
	"ns_error",
}

func Classify(err error) FaultCategory {
	if err == nil {
		return FaultNone
	}
	if errors.Is(err, ErrSessionCorrupted) {
		return FaultCorrupted
	}

	msg := strings.ToLower(err.Error())
	for _, indicator := range corruptionIndicators {
		if strings.Contains(msg, indicator) {
			return FaultCorrupted
		}
	}
	for _, indicator := range timeoutIndicators {
		if strings.Contains(msg, indicator) {
			return FaultTimeout
		}
	}
	for _, indicator := range navigationIndicators {
		if strings.Contains(msg, indicator) {
			return FaultNavigation
		}
	}
	return FaultNavigation
}
