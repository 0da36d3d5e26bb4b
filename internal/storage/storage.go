// Package storage provides persistent history for the PBPD predictor. It
// uses BoltDB as the underlying storage engine to keep every prediction made
// and every batch report generated, so past results can be reviewed and
// re-downloaded after the fact.
//
// The package provides thread-safe operations with efficient time-range
// queries and automatic bucket management.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"pbpd/internal/engine"
	"pbpd/internal/material"
)

const (
	predictionsBucket = "predictions" // Bucket for single prediction records
	batchesBucket     = "batches"     // Bucket for batch report records
)

// Store provides persistent storage for prediction history using BoltDB.
type Store struct {
	db *bbolt.DB
}

// PredictionRecord is one stored prediction with its request context.
type PredictionRecord struct {
	Material  material.Group `json:"material"`
	PBPD      float64        `json:"pbpd_percent"`
	Warnings  int            `json:"warnings"`
	Timestamp time.Time      `json:"timestamp"`
}

// BatchRecord is one stored batch report in its JSON-rendered form.
type BatchRecord struct {
	ID        string    `json:"id"`
	Rows      int       `json:"rows"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	ReportCSV []byte    `json:"report_csv"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a new storage instance under the given data path. It opens
// the BoltDB database and creates the buckets. Returns an error if the
// database cannot be opened or buckets cannot be created.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "pbpd-history.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(batchesBucket)); err != nil {
			return fmt.Errorf("create batches bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SavePrediction records one prediction result. Keys are
// "material_timestamp" so per-material range scans stay cheap.
func (s *Store) SavePrediction(res *engine.Result) error {
	rec := PredictionRecord{
		Material:  res.Material,
		PBPD:      res.PBPD,
		Warnings:  len(res.Warnings),
		Timestamp: res.PredictedAt,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}

	key := predictionKey(res.Material, res.PredictedAt)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(predictionsBucket)).Put(key, data)
	})
}

// GetPredictions returns the stored predictions for a material within
// [start, end], oldest first.
func (s *Store) GetPredictions(g material.Group, start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		prefix := []byte(g.Key() + "_")
		min := predictionKey(g, start)
		max := predictionKey(g, end)

		for k, v := c.Seek(min); k != nil && bytes.Compare(k, max) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				break
			}
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal prediction %s: %w", k, err)
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// SaveBatch stores a batch record under its ID.
func (s *Store) SaveBatch(rec BatchRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(batchesBucket)).Put([]byte(rec.ID), data)
	})
}

// GetBatch returns a stored batch record, or (nil, nil) when the ID is
// unknown.
func (s *Store) GetBatch(id string) (*BatchRecord, error) {
	var rec *BatchRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(batchesBucket)).Get([]byte(id))
		if v == nil {
			return nil
		}
		rec = &BatchRecord{}
		return json.Unmarshal(v, rec)
	})
	return rec, err
}

// ListBatches returns the IDs of all stored batches, oldest first.
func (s *Store) ListBatches() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(batchesBucket)).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

func predictionKey(g material.Group, ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s_%019d", g.Key(), ts.UnixNano()))
}
