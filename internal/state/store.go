package state

import (
	"crypto/md5"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
)

const fileSuffix = ".state"

type store struct {
	sync.Mutex
	databaseFolder string
}

func NewStore(databaseRoot string) (Store, error) {
	err := os.MkdirAll(databaseRoot, 0744)
	if err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", databaseRoot, err)
	}
	return &store{databaseFolder: databaseRoot}, nil
}

func (s *store) Get(id string) (*Record, error) {
	s.Lock()
	defer s.Unlock()

	file, err := os.Open(s.filename(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open state file %s: %w", id, err)
	}

	var record Record
	err = gob.NewDecoder(file).Decode(&record)
	_ = file.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to decode state record %s: %w", id, err)
	}
	return &record, nil
}

func (s *store) Put(record *Record) error {
	s.Lock()
	defer s.Unlock()

	file, err := os.OpenFile(s.filename(record.ID), os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open state file for writing: %w", err)
	}
	err = gob.NewEncoder(file).Encode(record)
	_ = file.Close()
	if err != nil {
		return fmt.Errorf("failed to write state record %s: %w", record.ID, err)
	}
	return nil
}

func (s *store) filename(id string) string {
	hash := md5.New()
	hash.Write([]byte(id))
	return path.Join(s.databaseFolder, hex.EncodeToString(hash.Sum(nil))+fileSuffix)
}
