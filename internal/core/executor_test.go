package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPostCommandSubstitutesVars(t *testing.T) {
	dir := t.TempDir()
	e := NewExecutor(nil)
	vars := e.BuildVars("example.com", dir, "c.crt", "k.pem", "f.crt")

	err := e.RunPostCommand(context.Background(), `echo "${DOMAIN} ${CERT_FILE} ${KEY_FILE} ${FULLCHAIN_FILE}" > ${CERT_DIR}/out`, vars)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, "example.com c.crt k.pem f.crt\n", string(data))
}

func TestRunPostCommandEmpty(t *testing.T) {
	assert.NoError(t, NewExecutor(nil).RunPostCommand(context.Background(), "", nil))
}

func TestRunPostCommandFailure(t *testing.T) {
	err := NewExecutor(nil).RunPostCommand(context.Background(), "echo broken >&2; exit 3", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
