// Package server defines the wire codec and utility helpers that are reused
// across client, broadcaster and handler logic.
package server

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// json is the codec for every inbound action and outbound event.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
