package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/xtrntr/farmduel/internal/models"
	"github.com/xtrntr/farmduel/internal/rules"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--days", "5", "--seed", "11")
	require.NoError(t, err)

	var snaps []models.Snapshot
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		var snap models.Snapshot
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &snap))
		snaps = append(snaps, snap)
	}
	require.Len(t, snaps, 6)
	for i, snap := range snaps[:5] {
		assert.Equal(t, i+1, snap.Day)
		assert.False(t, snap.Final)
	}
	assert.True(t, snaps[5].Final)
	assert.Len(t, snaps[5].Farms, 2)
}

func TestRulesCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("total_days: 12\ntrade_delivery: replant\n"), 0o600))

	out, err := execute(t, "rules", "--rules", path)
	require.NoError(t, err)

	var got rules.Rules
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, 12, got.TotalDays)
	assert.Equal(t, rules.DeliverReplant, got.TradeDelivery)
	assert.Equal(t, rules.Default().Crops, got.Crops)
}

func TestRulesCommand_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("total_days: -1\n"), 0o600))

	_, err := execute(t, "rules", "--rules", path)
	assert.Error(t, err)
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := execute(t, "hash-password", "s3cret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))

	_, err = execute(t, "hash-password")
	assert.Error(t, err)
}

func TestMigrateCommand_NeedsDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("FARM_DATABASE_URL", "")
	_, err := execute(t, "migrate")
	assert.Error(t, err)
}
