package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucirr/dip-console/pkg/authz"
	"github.com/lucirr/dip-console/pkg/contextkeys"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("path", "/clusters").Info("guard redirect")

	entry := logLine(t, &buf)
	assert.Equal(t, "guard redirect", entry["msg"])
	assert.Equal(t, "/clusters", entry["path"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(assert.AnError).Error("lookup failed")

	entry := logLine(t, &buf)
	assert.Equal(t, assert.AnError.Error(), entry["error"])
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := contextkeys.WithRequestID(context.Background(), "req-123")
	ctx = contextkeys.WithSession(ctx, &authz.Session{Username: "alice"})

	logger.WithContext(ctx).Info("projected")

	entry := logLine(t, &buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "alice", entry["username"])
}

func TestFromContext_Fallback(t *testing.T) {
	// No logger in context still yields a usable logger.
	logger := FromContext(context.Background())
	assert.NotNil(t, logger)
}
