// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package logging_test

import (
	"bytes"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/einyx/opg-bootstrap/pkg/logging"
)

func TestZapLoggerWithoutTimestamp(t *testing.T) {
	var buf bytes.Buffer

	logger := logging.ZapLogger(
		logging.NewLogDestination(&buf, zapcore.InfoLevel, logging.WithoutTimestamp()),
	)

	logger.Info("boot sequence starting", logging.Component("bootstrap"))
	require.NoError(t, logger.Sync())

	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "INFO"), "unexpected line prefix: %q", out)
	assert.Contains(t, out, "boot sequence starting")
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "bootstrap")
}

func TestZapLoggerDefaultTimestamp(t *testing.T) {
	var buf bytes.Buffer

	logger := logging.ZapLogger(
		logging.NewLogDestination(&buf, zapcore.InfoLevel),
	)

	logger.Info("starting")
	require.NoError(t, logger.Sync())

	out := buf.String()
	require.NotEmpty(t, out)

	assert.True(t, unicode.IsDigit(rune(out[0])), "expected a timestamp prefix: %q", out)
}

func TestZapLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := logging.ZapLogger(
		logging.NewLogDestination(&buf, zapcore.InfoLevel, logging.WithoutTimestamp()),
	)

	logger.Debug("noise")
	require.NoError(t, logger.Sync())

	assert.Empty(t, buf.String())
}
