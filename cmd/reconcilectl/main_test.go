package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-reconciler/internal/domains/payment/signature"
	"payment-reconciler/pkg/jwt"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestSignCmd(t *testing.T) {
	t.Parallel()

	body := `{"event":"checkout.order.completed"}`

	t.Run("stdin", func(t *testing.T) {
		t.Parallel()
		out, err := run(t, body, "sign", "--secret", "whsec")
		require.NoError(t, err)
		assert.Equal(t, signature.Compute("whsec", []byte(body)), out)
		assert.True(t, signature.Verify([]byte(body), out, "whsec"))
	})

	t.Run("file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "body.json")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		out, err := run(t, "", "sign", "--secret", "whsec", "-f", path)
		require.NoError(t, err)
		assert.Equal(t, signature.Compute("whsec", []byte(body)), out)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := run(t, "", "sign", "--secret", "whsec", "-f", filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
	})
}

func TestTokenCmd(t *testing.T) {
	t.Parallel()

	out, err := run(t, "", "token", "--secret", "s3cret", "--subject", "alice", "--ttl", "5m")
	require.NoError(t, err)

	claims, err := jwt.NewManager("s3cret", time.Minute).ValidateAccessToken(out)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, jwt.RoleAdmin, claims.Role)

	_, err = run(t, "", "token", "--secret", "s3cret", "--role", "root")
	require.Error(t, err)
}

func TestReconcileCmd_RequiresOrderID(t *testing.T) {
	t.Parallel()

	_, err := run(t, "", "reconcile")
	require.Error(t, err)
}
