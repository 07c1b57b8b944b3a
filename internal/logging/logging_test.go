// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("nonsense"))
}

func TestInit_JSONFormat(t *testing.T) {
	defer Init("warn", "text")

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	require.NoError(t, Init("info", "json"))
	Logger().WithField("conversation_id", "c1").Info("refetched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "refetched", entry["msg"])
	assert.Equal(t, "c1", entry["conversation_id"])
}

func TestInit_UnknownFormat(t *testing.T) {
	defer Init("warn", "text")
	assert.Error(t, Init("info", "xml"))
}

func TestSetLevel_FiltersDebug(t *testing.T) {
	defer Init("warn", "text")

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel("info")
	Logger().Debug("hidden")
	assert.Empty(t, buf.String())

	SetLevel("debug")
	Logger().Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestSetFile(t *testing.T) {
	defer Close()

	path := filepath.Join(t.TempDir(), "logs", "aila.log")
	require.NoError(t, SetFile(path))
	Logger().Warn("to file")
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestOr(t *testing.T) {
	custom := Discard()
	assert.Same(t, custom, Or(custom))
	assert.Same(t, Logger(), Or(nil))
}
