package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitdash/internal/identity"
	"kitdash/pkg/rbac"
	"kitdash/pkg/util"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := RootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCatalogShow(t *testing.T) {
	out, err := run(t, "catalog", "show", "--tier", "launch")
	require.NoError(t, err)
	assert.Contains(t, out, "LAUNCH")
	assert.Contains(t, out, "PHASE_1")
	assert.Contains(t, out, "Onboarding steps completed")
	assert.Contains(t, out, "links: View copy doc")
	assert.NotContains(t, out, "GROWTH")

	out, err = run(t, "catalog", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "LAUNCH")
	assert.Contains(t, out, "GROWTH")

	_, err = run(t, "catalog", "show", "--tier", "platinum")
	assert.Error(t, err)
}

func TestTokenIssue(t *testing.T) {
	out, err := run(t, "token", "issue", "--email", " Ana@Example.com ", "--secret", "s3cret")
	require.NoError(t, err)

	claims, err := util.ParseJWT(strings.TrimSpace(out), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, identity.UserIDFromEmail("ana@example.com"), claims.UserID)
	assert.Equal(t, rbac.RoleClient, claims.Role)

	_, err = run(t, "token", "issue", "--secret", "s3cret")
	assert.Error(t, err)
}

func TestMigratePrint(t *testing.T) {
	out, err := run(t, "migrate", "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS")
}
