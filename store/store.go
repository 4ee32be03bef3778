// Package store manages the directory of tables behind the bundled row
// backend.
package store

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulldump/optimist/table"
)

const (
	StatusOpening   = "opening"
	StatusOperating = "operating"
	StatusClosing   = "closing"
)

type Config struct {
	Dir     string
	IDField string // unique identifier field for every table, usually "id"
}

type Store struct {
	config *Config
	status string
	Tables map[string]*table.Table
	exit   chan struct{}
}

func NewStore(config *Config) *Store {
	if config.IDField == "" {
		config.IDField = "id"
	}

	return &Store{
		config: config,
		status: StatusOpening,
		Tables: map[string]*table.Table{},
		exit:   make(chan struct{}),
	}
}

func (s *Store) GetStatus() string {
	return s.status
}

func (s *Store) IDField() string {
	return s.config.IDField
}

func (s *Store) CreateTable(name string) (*table.Table, error) {

	_, exists := s.Tables[name]
	if exists {
		return nil, fmt.Errorf("table '%s' already exists", name)
	}

	filename := path.Join(s.config.Dir, name)
	t, err := table.Open(filename, s.config.IDField)
	if err != nil {
		return nil, err
	}

	s.Tables[name] = t

	return t, nil
}

func (s *Store) DropTable(name string) error {

	t, exists := s.Tables[name]
	if !exists {
		return fmt.Errorf("table '%s' not found", name)
	}

	delete(s.Tables, name) // TODO: protect section! not threadsafe

	return t.Drop()
}

func (s *Store) Load() error {

	fmt.Printf("Loading store %s...\n", s.config.Dir) // todo: move to logger
	dir := s.config.Dir
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	err = filepath.WalkDir(dir, func(filename string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := filename
		name = strings.TrimPrefix(name, dir)
		name = strings.TrimPrefix(name, "/")

		t0 := time.Now()
		t, err := table.Open(filename, s.config.IDField)
		if err != nil {
			fmt.Printf("ERROR: open table '%s': %s\n", filename, err.Error()) // todo: move to logger
			return err
		}
		fmt.Println(name, t.Len(), time.Since(t0)) // todo: move to logger

		s.Tables[name] = t

		return nil
	})

	if err != nil {
		s.status = StatusClosing
		return err
	}

	s.status = StatusOperating

	return nil
}

func (s *Store) Start() error {

	go s.Load()

	<-s.exit

	return nil
}

func (s *Store) Stop() error {

	defer close(s.exit)

	s.status = StatusClosing

	var lastErr error
	for name, t := range s.Tables {
		fmt.Printf("Closing '%s'...\n", name)
		err := t.Close()
		if err != nil {
			fmt.Printf("ERROR: close(%s): %s", name, err.Error())
			lastErr = err
		}
	}

	return lastErr
}
