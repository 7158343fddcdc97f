package app

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benglish/academic-core/migrations"
)

func TestEveryMigrationHasPostHook(t *testing.T) {
	ups, err := fs.Glob(migrations.FS, migrations.Dir+"/*.up.sql")
	require.NoError(t, err)

	hooks := (&App{}).PostMigrateHooks()
	require.Len(t, hooks, len(ups))

	names := make(map[string]bool, len(hooks))
	for i, hook := range hooks {
		assert.EqualValues(t, i+1, hook.Version)
		assert.NotNil(t, hook.Run, hook.Name)
		assert.False(t, names[hook.Name], "duplicate hook %s", hook.Name)
		names[hook.Name] = true
	}
}
