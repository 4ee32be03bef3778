// Package service implements the row backend's operations over tables:
// row mutations, filtered selects, flexible operations and named
// procedures.
package service

import (
	"errors"
	"fmt"

	"github.com/fulldump/optimist/flexible"
	"github.com/fulldump/optimist/orderby"
	"github.com/fulldump/optimist/store"
	"github.com/fulldump/optimist/table"
	"github.com/fulldump/optimist/utils"
)

type JSON = map[string]interface{}

var (
	ErrorTableNotFound     = errors.New("table not found")
	ErrorProcedureNotFound = errors.New("procedure not found")
	ErrorInvalidPayload    = errors.New("invalid payload")
)

// Result is the uniform response shape for every operation.
type Result struct {
	Data  []JSON `json:"data"`
	Count *int64 `json:"count"`
}

// Query selects rows from one table.
type Query struct {
	Filter    JSON             `json:"filter,omitempty"`
	OrderBy   []orderby.Field  `json:"orderBy,omitempty"`
	CountMode string           `json:"countMode,omitempty"` // exact | estimated | none
	Skip      int64            `json:"skip,omitempty"`
	Limit     int64            `json:"limit,omitempty"` // 0 means no limit
	Columns   []string         `json:"columns,omitempty"`
}

// Procedure is a named server-side routine callable through rpc.
type Procedure func(payload JSON) (interface{}, error)

type Servicer interface { // todo: review naming
	GetTable(name string) (*table.Table, error)
	CreateTable(name string) (*table.Table, error)
	ListTables() []*TableInfo
	DropTable(name string) error

	InsertRow(tableName string, row JSON, returnRow bool) (*Result, error)
	UpdateRow(tableName string, row JSON, returnRow bool) (*Result, error)
	DeleteRow(tableName string, row JSON, returnRow bool) (*Result, error)
	SelectRows(tableName string, query Query) (*Result, error)
	RunFlexible(tableName string, settings flexible.Settings) (*Result, error)
	CallProcedure(name string, payload JSON) (*Result, error)

	GetStatus() string
	IDField() string
}

type TableInfo struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}

// Notifier is called after every applied mutation, to feed the
// changefeed.
type Notifier func(tableName, action string, id interface{})

type Service struct {
	store      *store.Store
	procedures map[string]Procedure
	notifier   Notifier
}

func NewService(s *store.Store) *Service {
	return &Service{
		store:      s,
		procedures: map[string]Procedure{},
	}
}

// WithProcedure registers a named procedure.
func (s *Service) WithProcedure(name string, procedure Procedure) *Service {
	s.procedures[name] = procedure
	return s
}

// WithNotifier sets the change notifier.
func (s *Service) WithNotifier(notifier Notifier) *Service {
	s.notifier = notifier
	return s
}

func (s *Service) notify(tableName, action string, id interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier(tableName, action, id)
}

func (s *Service) GetStatus() string {
	return s.store.GetStatus()
}

func (s *Service) IDField() string {
	return s.store.IDField()
}

func (s *Service) GetTable(name string) (*table.Table, error) {
	t, exists := s.store.Tables[name]
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", ErrorTableNotFound, name)
	}
	return t, nil
}

func (s *Service) CreateTable(name string) (*table.Table, error) {
	return s.store.CreateTable(name)
}

func (s *Service) DropTable(name string) error {
	return s.store.DropTable(name)
}

func (s *Service) ListTables() []*TableInfo {

	result := []*TableInfo{}
	for _, name := range utils.GetKeys(s.store.Tables) {
		result = append(result, &TableInfo{
			Name:  name,
			Total: s.store.Tables[name].Len(),
		})
	}

	return result
}

// tableOrCreate returns the table, creating it on first use like the
// backends this server mimics.
func (s *Service) tableOrCreate(name string) (*table.Table, error) {
	t, err := s.GetTable(name)
	if errors.Is(err, ErrorTableNotFound) {
		return s.CreateTable(name)
	}
	return t, err
}
