package service

import (
	"fmt"

	"github.com/fulldump/optimist/flexible"
	"github.com/fulldump/optimist/utils"
)

// RunFlexible validates and executes a filter oriented operation.
func (s *Service) RunFlexible(tableName string, settings flexible.Settings) (*Result, error) {

	err := flexible.Validate(tableName, settings)
	if err != nil {
		return nil, err
	}

	switch settings.Operation {
	case flexible.OperationInsert:
		return s.flexibleInsert(tableName, settings)
	case flexible.OperationUpdate:
		return s.flexibleUpdate(tableName, settings)
	case flexible.OperationUpsert:
		return s.flexibleUpsert(tableName, settings)
	case flexible.OperationDelete:
		return s.flexibleDelete(tableName, settings)
	}

	// unreachable, Validate rejects unknown operations
	return nil, fmt.Errorf("%w: '%s'", flexible.ErrorInvalidSettings, settings.Operation)
}

func (s *Service) flexibleInsert(tableName string, settings flexible.Settings) (*Result, error) {

	rows, err := payloadRows(settings.Payload)
	if err != nil {
		return nil, err
	}

	t, err := s.tableOrCreate(tableName)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		err := t.Insert(row)
		if err != nil {
			return nil, err
		}
		s.notify(tableName, "insert", row[s.IDField()])
	}

	return affected(settings.FetchAfter, rows...), nil
}

func (s *Service) flexibleUpdate(tableName string, settings flexible.Settings) (*Result, error) {

	patch, ok := settings.Payload.(JSON)
	if !ok {
		patch = JSON{}
		err := utils.Remarshal(settings.Payload, &patch)
		if err != nil {
			return nil, fmt.Errorf("%w: 'update' payload must be an object", ErrorInvalidPayload)
		}
	}

	t, err := s.GetTable(tableName)
	if err != nil {
		return nil, err
	}

	matches, err := filterRows(t, settings.Filter)
	if err != nil {
		return nil, err
	}

	updated := []JSON{}
	for _, row := range matches {
		p := JSON{}
		for k, v := range patch {
			p[k] = v
		}
		p[s.IDField()] = row[s.IDField()]

		next, err := t.Update(p)
		if err != nil {
			return nil, err
		}
		updated = append(updated, next)
		s.notify(tableName, "update", next[s.IDField()])
	}

	return affected(settings.FetchAfter, updated...), nil
}

func (s *Service) flexibleUpsert(tableName string, settings flexible.Settings) (*Result, error) {

	rows, err := payloadRows(settings.Payload)
	if err != nil {
		return nil, err
	}

	t, err := s.tableOrCreate(tableName)
	if err != nil {
		return nil, err
	}

	upserted := []JSON{}
	for _, row := range rows {
		next, err := t.Upsert(row)
		if err != nil {
			return nil, err
		}
		upserted = append(upserted, next)
		s.notify(tableName, "update", next[s.IDField()])
	}

	return affected(settings.FetchAfter, upserted...), nil
}

func (s *Service) flexibleDelete(tableName string, settings flexible.Settings) (*Result, error) {

	t, err := s.GetTable(tableName)
	if err != nil {
		return nil, err
	}

	matches, err := filterRows(t, settings.Filter)
	if err != nil {
		return nil, err
	}

	deleted := []JSON{}
	for _, row := range matches {
		removed, err := t.Delete(row[s.IDField()])
		if err != nil {
			return nil, err
		}
		deleted = append(deleted, removed)
		s.notify(tableName, "delete", removed[s.IDField()])
	}

	return affected(settings.FetchAfter, deleted...), nil
}

// payloadRows accepts one object or an array of objects.
func payloadRows(payload interface{}) ([]JSON, error) {

	switch p := payload.(type) {
	case JSON:
		return []JSON{p}, nil
	case []JSON:
		return p, nil
	case []interface{}:
		rows := make([]JSON, 0, len(p))
		for _, item := range p {
			row, ok := item.(JSON)
			if !ok {
				return nil, fmt.Errorf("%w: rows must be objects, got %T", ErrorInvalidPayload, item)
			}
			rows = append(rows, row)
		}
		return rows, nil
	}

	return nil, fmt.Errorf("%w: got %T", ErrorInvalidPayload, payload)
}
