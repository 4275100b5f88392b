//go:build integration
// +build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/obsbackup/internal/client"
	"github.com/TheMichaelB/obsbackup/internal/config"
	"github.com/TheMichaelB/obsbackup/internal/crypto"
	"github.com/TheMichaelB/obsbackup/internal/models"
	"github.com/TheMichaelB/obsbackup/internal/services/backup"
	"github.com/TheMichaelB/obsbackup/internal/services/restore"
	"github.com/TheMichaelB/obsbackup/test/testutil"
)

func newClient(t *testing.T, cfg *config.Config) *client.Client {
	t.Helper()
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.EnsureDirectories())

	c, err := client.New(cfg, testutil.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	testutil.SkipIfShort(t, "derives keys at the production work factor")

	helpers := testutil.NewTestHelpers(t)
	cfg := testutil.TestConfigWithDir(helpers.TempDir())
	cfg.State.Driver = "sqlite"
	c := newClient(t, cfg)

	fixture := testutil.SampleVault()
	vault := fixture.Create(t, helpers.TempDir())

	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := c.Backup.Create(ctx, vault, backup.Options{
		Encrypt:  true,
		Password: "integration-password",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(created.Path, ".tar.gz.enc"))
	helpers.AssertNoTempFiles(cfg.Backup.OutputDir)

	restoreDir := filepath.Join(helpers.TempDir(), "restored")
	restored, err := c.Restore.Restore(ctx, created.Path, restore.Options{
		Password:   "integration-password",
		OutputDir:  restoreDir,
		Extract:    true,
		ExtractDir: filepath.Join(restoreDir, "unpacked"),
	})
	require.NoError(t, err)
	fixture.AssertMatches(t, restored.Extracted)

	records, err := c.History.List(models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.KindRestore, records[0].Kind)
	assert.Equal(t, models.KindBackup, records[1].Kind)
	assert.Equal(t, testutil.FileHash(t, created.Path), records[1].SHA256)
}

func TestWrongPasswordLeavesNoOutput(t *testing.T) {
	testutil.SkipIfShort(t, "derives keys at the production work factor")

	helpers := testutil.NewTestHelpers(t)
	cfg := testutil.TestConfigWithDir(helpers.TempDir())
	c := newClient(t, cfg)

	vault := testutil.SampleVault().Create(t, helpers.TempDir())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := c.Backup.Create(ctx, vault, backup.Options{Encrypt: true, Password: "right"})
	require.NoError(t, err)

	_, err = c.Restore.Restore(ctx, created.Path, restore.Options{Password: "wrong"})
	assert.ErrorIs(t, err, crypto.ErrInvalidPasswordOrCorruptData)
	helpers.AssertFileNotExists(strings.TrimSuffix(created.Path, models.EncryptedSuffix))
}

func TestConcurrentSealsToOneOutput(t *testing.T) {
	testutil.SkipIfShort(t, "derives keys at the production work factor")

	helpers := testutil.NewTestHelpers(t)
	cfg := testutil.TestConfigWithDir(helpers.TempDir())
	cfg.State.Driver = "none"
	c := newClient(t, cfg)

	input := helpers.CreateTempBinaryFile("payload.bin", testutil.GenerateBytes(64*1024))
	output := filepath.Join(helpers.TempDir(), "payload.bin.enc")

	const workers = 4
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		exists int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.Codec.Seal(input, output, "pw")
			mu.Lock()
			defer mu.Unlock()
			switch crypto.Code(err) {
			case "":
				wins++
			case crypto.ErrCodeOutputExists:
				exists++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, exists)

	decrypted := filepath.Join(helpers.TempDir(), "payload.out")
	require.NoError(t, c.Codec.Unseal(output, decrypted, "pw"))
	testutil.CompareFiles(t, input, decrypted)
}

func TestJSONCatalogSurvivesRestart(t *testing.T) {
	helpers := testutil.NewTestHelpers(t)
	cfg := testutil.TestConfigWithDir(helpers.TempDir())
	vault := testutil.SampleVault().Create(t, helpers.TempDir())

	first := newClient(t, cfg)
	created, err := first.Backup.Create(testContext(t), vault, backup.Options{})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newClient(t, cfg)
	rec, err := second.History.Get(created.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Path, rec.ArchivePath)
	assert.WithinDuration(t, created.Record.CreatedAt, rec.CreatedAt, time.Second)

	_, err = os.Stat(filepath.Join(cfg.State.Dir, "catalog.json"))
	assert.NoError(t, err)
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	return ctx
}
