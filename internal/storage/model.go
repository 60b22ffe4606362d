package storage

import (
	"time"

	"github.com/Dan9191/bookkeeping-service/internal/models"
)

const (
	snapshotFile    = "ledger.json"
	snapshotKind    = "json_snapshot"
	snapshotVersion = 1
)

// Meta describes a snapshot file
type Meta struct {
	Storage   string    `json:"storage"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the on-disk form of a FileStore
type Snapshot struct {
	Meta     Meta                  `json:"_meta"`
	Accounts []models.Account      `json:"accounts"`
	History  []models.HistoryEntry `json:"history"`
}
