//go:build tools
// +build tools

// Package tools pins the code generators used by go:generate (mockgen) so that
// go.mod and go.sum keep tracking them.
package chat_match

import (
	_ "go.uber.org/mock/mockgen"
)
