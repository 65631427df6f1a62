package db

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"zorssms/models"
)

// ReadSnapshotFile reads a JSON document with users, friends and messages
// collections. Absent collections read as empty. Conversations are re-keyed
// from their messages' endpoints so documents written with another key
// format still load.
func ReadSnapshotFile(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	snap.Normalize()

	rekeyed := make(map[string][]models.Message, len(snap.Messages))
	for _, msgs := range snap.Messages {
		for _, m := range msgs {
			key := models.ConversationKey(m.FromID, m.ToID)
			rekeyed[key] = append(rekeyed[key], m)
		}
	}
	snap.Messages = rekeyed

	return &snap, nil
}

// WriteSnapshotFile writes snap as an indented JSON document, replacing path
// atomically.
func WriteSnapshotFile(path string, snap *models.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close snapshot")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "replace snapshot")
}

// Import writes every record of snap in one transaction. Friend edges are
// stored exactly as listed, in list order.
func (db *DB) Import(snap *models.Snapshot) error {
	snap.Normalize()
	return db.tx(func(tx *sql.Tx) error {
		for id, u := range snap.Users {
			if _, err := tx.Exec(
				"INSERT OR REPLACE INTO users (id, name, bio, avatar, created_at) VALUES (?, ?, ?, ?, ?)",
				id, u.Name, u.Bio, u.Avatar, formatTime(u.CreatedAt),
			); err != nil {
				return errors.Wrapf(err, "import user %s", id)
			}
		}
		for owner, ids := range snap.Friends {
			for _, friend := range ids {
				if _, err := tx.Exec("INSERT OR IGNORE INTO friends (owner, friend) VALUES (?, ?)", owner, friend); err != nil {
					return errors.Wrapf(err, "import friend %s-%s", owner, friend)
				}
			}
		}
		for key, msgs := range snap.Messages {
			for _, m := range msgs {
				if _, err := tx.Exec(
					"INSERT INTO messages (conv_key, id, from_id, to_id, text, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
					key, m.ID, m.FromID, m.ToID, m.Text, formatTime(m.Timestamp),
				); err != nil {
					return errors.Wrapf(err, "import message %s", m.ID)
				}
			}
		}
		return nil
	})
}
