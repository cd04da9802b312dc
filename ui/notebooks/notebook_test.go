// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package notebooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotebook(t *testing.T) {
	t.Setenv(bashKernelEnv, "")
	assert.True(t, IsBashKernel())
	assert.True(t, IsNotebook())
	// Tests are never run under GoNB's pipes.
	assert.False(t, IsGoNB())
}
