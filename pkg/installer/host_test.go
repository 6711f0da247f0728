package installer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/grovetools/extcore/errors"
	"github.com/grovetools/extcore/pkg/scanner"
	"github.com/grovetools/extcore/state"
	"github.com/grovetools/extcore/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(root, rel string, dir bool) scanner.Candidate {
	return scanner.Candidate{
		Path: filepath.Join(root, filepath.FromSlash(rel)),
		Root: root,
		Rel:  rel,
		Dir:  dir,
	}
}

func TestDirectoryHostInstallsFiles(t *testing.T) {
	src, deploy := t.TempDir(), t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"libs/a.jar": "version one"})

	host, err := NewDirectoryHost(deploy, quietLogger())
	require.NoError(t, err)

	unit, err := host.Install(context.Background(), candidate(src, "libs/a.jar", false))
	require.NoError(t, err)
	assert.Equal(t, "libs/a.jar", unit.ID())
	assert.Equal(t, filepath.Join(deploy, "libs", "a.jar"), unit.Path())

	data, err := os.ReadFile(unit.Path())
	require.NoError(t, err)
	assert.Equal(t, "version one", string(data))

	rec, ok, err := host.Ledger().Get("libs/a.jar")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(len("version one")), rec.Size)
	assert.Len(t, rec.SHA256, 64)
	assert.FileExists(t, filepath.Join(deploy, state.LedgerFile))
}

func TestDirectoryHostIsIdempotent(t *testing.T) {
	src, deploy := t.TempDir(), t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"a.zip": "v1"})
	c := candidate(src, "a.zip", false)

	host, err := NewDirectoryHost(deploy, quietLogger())
	require.NoError(t, err)

	first, err := host.Install(context.Background(), c)
	require.NoError(t, err)
	assert.False(t, first.(*InstalledUnit).Reused)
	rec, _, _ := host.Ledger().Get("a.zip")

	second, err := host.Install(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, second.(*InstalledUnit).Reused)
	again, _, _ := host.Ledger().Get("a.zip")
	assert.True(t, rec.InstalledAt.Equal(again.InstalledAt), "unchanged module must not be re-recorded")

	// A changed module is copied again.
	testutil.WriteTree(t, src, map[string]string{"a.zip": "v2"})
	third, err := host.Install(context.Background(), c)
	require.NoError(t, err)
	assert.False(t, third.(*InstalledUnit).Reused)
	data, _ := os.ReadFile(third.Path())
	assert.Equal(t, "v2", string(data))

	// A deleted target is restored even when the ledger matches.
	require.NoError(t, os.Remove(third.Path()))
	fourth, err := host.Install(context.Background(), c)
	require.NoError(t, err)
	assert.False(t, fourth.(*InstalledUnit).Reused)
	assert.FileExists(t, fourth.Path())
}

func TestDirectoryHostCopiesExplodedModules(t *testing.T) {
	src, deploy := t.TempDir(), t.TempDir()
	testutil.WriteTree(t, src, map[string]string{
		"shop.war/WEB-INF/web.xml":   "<web/>",
		"shop.war/static/index.html": "<html/>",
	})

	host, err := NewDirectoryHost(deploy, quietLogger())
	require.NoError(t, err)

	unit, err := host.Install(context.Background(), candidate(src, "shop.war", true))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(unit.Path(), "WEB-INF", "web.xml"))
	assert.FileExists(t, filepath.Join(unit.Path(), "static", "index.html"))

	rec, ok, err := host.Ledger().Get("shop.war")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Dir)
	assert.Equal(t, int64(len("<web/>")+len("<html/>")), rec.Size)
}

func TestDirectoryHostRejectsMissingSource(t *testing.T) {
	host, err := NewDirectoryHost(t.TempDir(), quietLogger())
	require.NoError(t, err)

	_, err = host.Install(context.Background(), candidate(t.TempDir(), "gone.zip", false))
	assert.Error(t, err)
}

func TestDirectoryHostRejectsCollidingRoots(t *testing.T) {
	rootA, rootB, deploy := t.TempDir(), t.TempDir(), t.TempDir()
	testutil.WriteTree(t, rootA, map[string]string{"core.jar": "AAAA"})
	testutil.WriteTree(t, rootB, map[string]string{"core.jar": "BBBBBBBB"})

	host, err := NewDirectoryHost(deploy, quietLogger())
	require.NoError(t, err)

	_, err = host.Install(context.Background(), candidate(rootA, "core.jar", false))
	require.NoError(t, err)

	_, err = host.Install(context.Background(), candidate(rootB, "core.jar", false))
	var collision *CollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "core.jar", collision.ID)
	assert.Equal(t, filepath.Join(rootA, "core.jar"), collision.Existing)

	data, err := os.ReadFile(filepath.Join(deploy, "core.jar"))
	require.NoError(t, err)
	assert.Equal(t, "AAAA", string(data))

	records, err := host.Ledger().All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, filepath.Join(rootA, "core.jar"), records[0].Source)

	// A new host reading the same ledger keeps refusing the other root.
	reopened, err := NewDirectoryHost(deploy, quietLogger())
	require.NoError(t, err)
	_, err = reopened.Install(context.Background(), candidate(rootB, "core.jar", false))
	assert.ErrorAs(t, err, &collision)
}

func TestDirectoryHostReplacesRemovedSource(t *testing.T) {
	rootA, rootB, deploy := t.TempDir(), t.TempDir(), t.TempDir()
	testutil.WriteTree(t, rootA, map[string]string{"core.jar": "AAAA"})
	testutil.WriteTree(t, rootB, map[string]string{"core.jar": "BBBBBBBB"})

	host, err := NewDirectoryHost(deploy, quietLogger())
	require.NoError(t, err)

	_, err = host.Install(context.Background(), candidate(rootA, "core.jar", false))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(rootA, "core.jar")))

	unit, err := host.Install(context.Background(), candidate(rootB, "core.jar", false))
	require.NoError(t, err)
	data, err := os.ReadFile(unit.Path())
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBB", string(data))

	rec, ok, err := host.Ledger().Get("core.jar")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(rootB, "core.jar"), rec.Source)
}

func TestVisitReportsCollisionAcrossRoots(t *testing.T) {
	rootA, rootB, deploy := t.TempDir(), t.TempDir(), t.TempDir()
	testutil.WriteTree(t, rootA, map[string]string{"core.jar": "AAAA", "a.jar": "a"})
	testutil.WriteTree(t, rootB, map[string]string{"core.jar": "BBBBBBBB", "b.jar": "b"})

	host, err := NewDirectoryHost(deploy, quietLogger())
	require.NoError(t, err)

	report, err := newInstaller(host, WithWorkers(2)).Visit(context.Background(), rootA, rootB)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInstallAggregate))
	assert.Len(t, report.Installed, 3)
	require.Len(t, report.Failures, 1)
	var collision *CollisionError
	assert.ErrorAs(t, report.Failures[0], &collision)

	rec, ok, err := host.Ledger().Get("core.jar")
	require.NoError(t, err)
	require.True(t, ok)
	want, err := os.ReadFile(rec.Source)
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(deploy, "core.jar"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestVisitWithDirectoryHost(t *testing.T) {
	src, deploy := t.TempDir(), t.TempDir()
	modules := testutil.WriteModules(t, src, 6, ".jar")

	host, err := NewDirectoryHost(deploy, quietLogger())
	require.NoError(t, err)

	report, err := newInstaller(host, WithWorkers(3)).Visit(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, report.Installed, 6)

	records, err := host.Ledger().All()
	require.NoError(t, err)
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	assert.ElementsMatch(t, modules, ids)
}

func TestCommandHost(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}

	t.Run("runs the command with the module path", func(t *testing.T) {
		src, out := t.TempDir(), t.TempDir()
		testutil.WriteTree(t, src, map[string]string{"m.zip": "payload"})
		dest := filepath.Join(out, "copied.zip")

		host, err := NewCommandHost([]string{"sh", "-c", `cp "$0" "` + dest + `"`}, time.Minute, nil, quietLogger())
		require.NoError(t, err)

		unit, err := host.Install(context.Background(), candidate(src, "m.zip", false))
		require.NoError(t, err)
		assert.Equal(t, "m.zip", unit.ID())

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	t.Run("failing command", func(t *testing.T) {
		host, err := NewCommandHost([]string{"sh", "-c", "echo refused >&2; exit 3"}, 0, nil, quietLogger())
		require.NoError(t, err)

		_, err = host.Install(context.Background(), candidate(t.TempDir(), "m.zip", false))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "refused")
	})

	t.Run("failures are aggregated by the installer", func(t *testing.T) {
		src := t.TempDir()
		testutil.WriteModules(t, src, 3, ".zip")

		host, err := NewCommandHost([]string{"sh", "-c", "exit 1"}, 0, nil, quietLogger())
		require.NoError(t, err)

		_, err = newInstaller(host).Visit(context.Background(), src)
		var compound *errors.CompoundError
		require.ErrorAs(t, err, &compound)
		assert.Len(t, compound.Causes, 3)
	})

	t.Run("requires a command", func(t *testing.T) {
		_, err := NewCommandHost(nil, 0, nil, quietLogger())
		assert.Error(t, err)
	})
}
