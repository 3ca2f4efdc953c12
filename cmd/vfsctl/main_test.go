package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskvfs"
)

// run executes vfsctl against image and returns its stdout.
func run(t *testing.T, image, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp(&out, strings.NewReader(stdin))
	err := app.Run(append([]string{"vfsctl", "--image", image}, args...))
	return out.String(), err
}

func mustRun(t *testing.T, image string, args ...string) string {
	t.Helper()

	out, err := run(t, image, "", args...)
	require.NoError(t, err, args)
	return out
}

func TestCLI_FileCommands(t *testing.T) {
	image := filepath.Join(t.TempDir(), "disk.img")

	out := mustRun(t, image, "--blocks", "128", "mkfs")
	assert.Contains(t, out, "128 blocks of 1.0 KiB")

	_, err := run(t, image, "", "mkfs")
	assert.ErrorContains(t, err, "already exists")

	mustRun(t, image, "mkdir", "-p", "/etc/app")
	_, err = run(t, image, "", "mkdir", "/etc")
	assert.ErrorIs(t, err, diskvfs.ErrAlreadyExists)

	_, err = run(t, image, "hello world", "put", "-", "/etc/app/motd")
	require.NoError(t, err)
	// Replacing a file with shorter content leaves no stale tail.
	_, err = run(t, image, "hi", "put", "-", "/etc/app/motd")
	require.NoError(t, err)

	assert.Equal(t, "hi", mustRun(t, image, "cat", "/etc/app/motd"))
	assert.Equal(t, "app/\n", mustRun(t, image, "ls", "/etc"))

	long := mustRun(t, image, "ls", "-l", "/etc/app")
	assert.Contains(t, long, "file")
	assert.Contains(t, long, "motd")

	assert.Contains(t, mustRun(t, image, "stat", "/etc/app/motd"), "size      2 (2 B)")

	mustRun(t, image, "touch", "/etc/app/motd", "/etc/empty")
	_, err = run(t, image, "", "touch", "/etc")
	assert.ErrorIs(t, err, diskvfs.ErrAlreadyExists)

	_, err = run(t, image, "", "rm", "/etc")
	assert.ErrorIs(t, err, diskvfs.ErrDirectoryNotEmpty)

	assert.Equal(t, "3 directories, 2 files\nclean\n", mustRun(t, image, "fsck"))

	mustRun(t, image, "rm", "-r", "/etc")
	assert.Empty(t, mustRun(t, image, "ls"))

	assert.Equal(t, "1 directories, 0 files\nclean\n", mustRun(t, image, "fsck"))
}

func TestCLI_Stats(t *testing.T) {
	image := filepath.Join(t.TempDir(), "disk.img")
	mustRun(t, image, "--blocks", "64", "mkfs")

	out := mustRun(t, image, "stats")
	assert.Contains(t, out, "block reads")
	assert.Contains(t, out, "free inodes")

	prom := mustRun(t, image, "stats", "--prometheus")
	assert.Contains(t, prom, "diskvfs_block_reads_total{image=")
	assert.Contains(t, prom, "diskvfs_data_blocks{image=")
}

func TestCLI_Snapshot(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "disk.img")
	backups := filepath.Join(dir, "backups")

	mustRun(t, image, "--blocks", "64", "mkfs")
	_, err := run(t, image, "persisted", "put", "-", "/data")
	require.NoError(t, err)

	out := mustRun(t, image, "snapshot", "push", "--compression", "lz4", "--rate-limit", "64MiB", backups)
	id := strings.Fields(out)[0]

	ls := mustRun(t, image, "snapshot", "ls", "--codec", "json", backups)
	assert.Contains(t, ls, "* ")
	assert.Contains(t, ls, id)
	assert.Contains(t, ls, "lz4")

	restored := filepath.Join(dir, "restored.img")
	assert.Contains(t, mustRun(t, restored, "snapshot", "pull", backups), id)
	assert.Equal(t, "persisted", mustRun(t, restored, "cat", "/data"))

	_, err = run(t, restored, "", "snapshot", "pull", backups)
	assert.Error(t, err)

	_, err = run(t, image, "", "snapshot", "push", "--compression", "gzip", backups)
	assert.Error(t, err)

	_, err = run(t, image, "", "snapshot", "push", "gs://bucket")
	assert.ErrorContains(t, err, "unsupported snapshot scheme")
}

func TestCLI_GlobalFlagErrors(t *testing.T) {
	image := filepath.Join(t.TempDir(), "disk.img")

	_, err := run(t, image, "", "--log-level", "loud", "--blocks", "64", "mkfs")
	assert.Error(t, err)

	_, err = run(t, image, "", "--log-format", "xml", "--blocks", "64", "mkfs")
	assert.Error(t, err)

	_, err = run(t, image, "", "--device", "tape", "--blocks", "64", "mkfs")
	assert.Error(t, err)
}
