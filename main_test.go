package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/wfunc/treasurerace/board"
	"github.com/wfunc/treasurerace/persistence"
)

func TestRunReportsUnknownDriver(t *testing.T) {
	t.Setenv("TESOURO_DATABASE_DRIVER", "bogus")

	err := run()
	assert.ErrorIs(t, err, persistence.ErrUnknownDriver)
}

func TestRunClosesStoreOnStartupError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	t.Setenv("TESOURO_DATABASE_DRIVER", "bolt")
	t.Setenv("TESOURO_DATABASE_BOLT_PATH", path)
	t.Setenv("TESOURO_GAME_ROWS", "2")
	t.Setenv("TESOURO_GAME_COLS", "2")
	t.Setenv("TESOURO_GAME_TREASURES", "4")

	err := run()
	require.ErrorIs(t, err, board.ErrInvalidLayout)

	// bbolt holds an exclusive file lock while open
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	require.NoError(t, err, "result store was left open")
	assert.NoError(t, db.Close())
}
