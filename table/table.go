// Package table stores JSON rows keyed by a unique identifier field,
// persisted as an append-only command log that is replayed on open.
package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/google/btree"
	"github.com/google/uuid"
)

type JSON = map[string]interface{}

var (
	ErrorRowNotFound      = errors.New("row not found")
	ErrorRowAlreadyExists = errors.New("row already exists")
	ErrorInvalidID        = errors.New("row identifier must be a scalar (string or number)")
)

type Table struct {
	filename string // Just informative...
	file     *os.File
	idField  string

	mutex *sync.Mutex
	rows  map[string]JSON
	index *btree.BTreeG[*entry] // rows ordered by identifier key
}

type entry struct {
	key string
	row JSON
}

// Open replays the command log at filename into memory and leaves the
// file open for appending new commands.
func Open(filename string, idField string) (*Table, error) {

	f, err := os.OpenFile(filename, os.O_RDONLY|os.O_CREATE, 0666)
	if err != nil {
		return nil, fmt.Errorf("open file for read: %w", err)
	}

	t := &Table{
		filename: filename,
		idField:  idField,
		mutex:    &sync.Mutex{},
		rows:     map[string]JSON{},
		index: btree.NewG(32, func(a, b *entry) bool {
			return a.key < b.key
		}),
	}

	j := json.NewDecoder(f)
	for {
		command := &Command{}
		err := j.Decode(&command)
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("decode json: %w", err)
		}

		switch command.Name {
		case "insert":
			row := JSON{}
			json.Unmarshal(command.Payload, &row) // todo: handle error properly
			err := t.setRow(row)
			if err != nil {
				fmt.Printf("WARNING: replay insert: %s\n", err.Error())
			}
		case "update":
			params := struct {
				Id   interface{}     `json:"id"`
				Diff json.RawMessage `json:"diff"`
			}{}
			json.Unmarshal(command.Payload, &params)
			err := t.replayUpdate(params.Id, params.Diff)
			if err != nil {
				fmt.Printf("WARNING: replay update: %s\n", err.Error())
			}
		case "delete":
			params := struct {
				Id interface{} `json:"id"`
			}{}
			json.Unmarshal(command.Payload, &params)
			_, err := t.removeRow(params.Id)
			if err != nil {
				fmt.Printf("WARNING: replay delete: %s\n", err.Error())
			}
		}
	}

	f.Close()

	// Open file for append only
	t.file, err = os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("open file for write: %w", err)
	}

	return t, nil
}

// idKey folds a scalar identifier value into the map/index key space.
// Strings and numbers are accepted, like the optimistic delete contract
// on the client side.
func idKey(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return "s:" + v, nil
	case float64:
		return "n:" + strconv.FormatFloat(v, 'g', -1, 64), nil
	case float32:
		return "n:" + strconv.FormatFloat(float64(v), 'g', -1, 64), nil
	case int:
		return "n:" + strconv.FormatFloat(float64(v), 'g', -1, 64), nil
	case int64:
		return "n:" + strconv.FormatFloat(float64(v), 'g', -1, 64), nil
	}
	return "", fmt.Errorf("%w: got %T", ErrorInvalidID, value)
}

func (t *Table) setRow(row JSON) error {

	key, err := idKey(row[t.idField])
	if err != nil {
		return fmt.Errorf("field '%s': %w", t.idField, err)
	}

	t.mutex.Lock()
	t.rows[key] = row
	t.index.ReplaceOrInsert(&entry{key: key, row: row})
	t.mutex.Unlock()

	return nil
}

func (t *Table) removeRow(id interface{}) (JSON, error) {

	key, err := idKey(id)
	if err != nil {
		return nil, fmt.Errorf("field '%s': %w", t.idField, err)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	row, exists := t.rows[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s=%v", ErrorRowNotFound, t.idField, id)
	}
	delete(t.rows, key)
	t.index.Delete(&entry{key: key})

	return row, nil
}

func (t *Table) replayUpdate(id interface{}, diff json.RawMessage) error {

	key, err := idKey(id)
	if err != nil {
		return err
	}

	t.mutex.Lock()
	current, exists := t.rows[key]
	t.mutex.Unlock()
	if !exists {
		return fmt.Errorf("%w: %s=%v", ErrorRowNotFound, t.idField, id)
	}

	currentBytes, _ := json.Marshal(current)
	nextBytes, err := jsonpatch.MergePatch(currentBytes, diff)
	if err != nil {
		return fmt.Errorf("cannot apply patch: %w", err)
	}

	next := JSON{}
	json.Unmarshal(nextBytes, &next)
	next[t.idField] = current[t.idField] // the identifier never changes

	return t.setRow(next)
}

// Insert adds a new row. The identifier field is mandatory, scalar and
// unique within the table.
func (t *Table) Insert(row JSON) error {
	if t.file == nil {
		return fmt.Errorf("table is closed")
	}

	key, err := idKey(row[t.idField])
	if err != nil {
		return fmt.Errorf("field '%s': %w", t.idField, err)
	}

	t.mutex.Lock()
	if _, exists := t.rows[key]; exists {
		t.mutex.Unlock()
		return fmt.Errorf("%w: %s=%v", ErrorRowAlreadyExists, t.idField, row[t.idField])
	}
	t.rows[key] = row
	t.index.ReplaceOrInsert(&entry{key: key, row: row})
	t.mutex.Unlock()

	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("json encode payload: %w", err)
	}

	return t.persist("insert", payload)
}

// Update merge-patches the row identified by patch's identifier field
// and returns the resulting row.
func (t *Table) Update(patch JSON) (JSON, error) {
	if t.file == nil {
		return nil, fmt.Errorf("table is closed")
	}

	id := patch[t.idField]
	key, err := idKey(id)
	if err != nil {
		return nil, fmt.Errorf("field '%s': %w", t.idField, err)
	}

	t.mutex.Lock()
	current, exists := t.rows[key]
	t.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s=%v", ErrorRowNotFound, t.idField, id)
	}

	currentBytes, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("json encode row: %w", err)
	}
	patchBytes, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("json encode patch: %w", err)
	}

	nextBytes, err := jsonpatch.MergePatch(currentBytes, patchBytes)
	if err != nil {
		return nil, fmt.Errorf("cannot apply patch: %w", err)
	}

	diff, err := jsonpatch.CreateMergePatch(currentBytes, nextBytes)
	if err != nil {
		return nil, fmt.Errorf("cannot diff: %w", err)
	}

	next := JSON{}
	json.Unmarshal(nextBytes, &next)
	next[t.idField] = current[t.idField]

	err = t.setRow(next)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(JSON{
		"id":   id,
		"diff": json.RawMessage(diff),
	})
	if err != nil {
		return nil, err // todo: wrap error
	}

	return next, t.persist("update", payload)
}

// Upsert inserts row or merge-patches the existing one.
func (t *Table) Upsert(row JSON) (JSON, error) {

	key, err := idKey(row[t.idField])
	if err != nil {
		return nil, fmt.Errorf("field '%s': %w", t.idField, err)
	}

	t.mutex.Lock()
	_, exists := t.rows[key]
	t.mutex.Unlock()

	if exists {
		return t.Update(row)
	}
	return row, t.Insert(row)
}

// Delete removes the row with identifier id and returns it.
func (t *Table) Delete(id interface{}) (JSON, error) {
	if t.file == nil {
		return nil, fmt.Errorf("table is closed")
	}

	row, err := t.removeRow(id)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(JSON{
		"id": id,
	})
	if err != nil {
		return nil, err // todo: wrap error
	}

	return row, t.persist("delete", payload)
}

// Get returns the row with identifier id.
func (t *Table) Get(id interface{}) (JSON, bool) {

	key, err := idKey(id)
	if err != nil {
		return nil, false
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	row, exists := t.rows[key]
	return row, exists
}

// Len is the number of rows.
func (t *Table) Len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.rows)
}

// Traverse visits every row in identifier order until f returns false.
// The row set is captured under lock first so f can mutate the table.
func (t *Table) Traverse(f func(row JSON) bool) {

	t.mutex.Lock()
	rows := make([]JSON, 0, t.index.Len())
	t.index.Ascend(func(e *entry) bool {
		rows = append(rows, e.row)
		return true
	})
	t.mutex.Unlock()

	for _, row := range rows {
		if !f(row) {
			return
		}
	}
}

func (t *Table) persist(name string, payload json.RawMessage) error {

	command := &Command{
		Name:      name,
		Uuid:      uuid.New().String(),
		Timestamp: time.Now().UnixNano(),
		Payload:   payload,
	}

	err := json.NewEncoder(t.file).Encode(command)
	if err != nil {
		return fmt.Errorf("json encode command: %w", err)
	}

	return nil
}

func (t *Table) Close() error {
	err := t.file.Close()
	t.file = nil
	return err
}

func (t *Table) Drop() error {
	err := t.Close()
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	err = os.Remove(t.filename)
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	return nil
}
