package service

import (
	"fmt"

	"github.com/SierraSoftworks/connor"

	"github.com/fulldump/optimist/orderby"
	"github.com/fulldump/optimist/table"
)

func (s *Service) InsertRow(tableName string, row JSON, returnRow bool) (*Result, error) {

	t, err := s.tableOrCreate(tableName)
	if err != nil {
		return nil, err
	}

	err = t.Insert(row)
	if err != nil {
		return nil, err
	}

	s.notify(tableName, "insert", row[s.IDField()])

	return affected(returnRow, row), nil
}

func (s *Service) UpdateRow(tableName string, row JSON, returnRow bool) (*Result, error) {

	t, err := s.GetTable(tableName)
	if err != nil {
		return nil, err
	}

	updated, err := t.Update(row)
	if err != nil {
		return nil, err
	}

	s.notify(tableName, "update", updated[s.IDField()])

	return affected(returnRow, updated), nil
}

func (s *Service) DeleteRow(tableName string, row JSON, returnRow bool) (*Result, error) {

	t, err := s.GetTable(tableName)
	if err != nil {
		return nil, err
	}

	deleted, err := t.Delete(row[s.IDField()])
	if err != nil {
		return nil, err
	}

	s.notify(tableName, "delete", deleted[s.IDField()])

	return affected(returnRow, deleted), nil
}

func (s *Service) SelectRows(tableName string, query Query) (*Result, error) {

	t, err := s.GetTable(tableName)
	if err != nil {
		return nil, err
	}

	matches, err := filterRows(t, query.Filter)
	if err != nil {
		return nil, err
	}

	total := int64(len(matches))
	matches = orderby.Sort(query.OrderBy, matches)

	// pagination after sorting
	if query.Skip > 0 {
		if query.Skip >= total {
			matches = nil
		} else {
			matches = matches[query.Skip:]
		}
	}
	if query.Limit > 0 && int64(len(matches)) > query.Limit {
		matches = matches[:query.Limit]
	}

	result := &Result{
		Data: projectRows(matches, query.Columns),
	}

	switch query.CountMode {
	case "exact":
		result.Count = &total
	case "estimated":
		estimate := int64(t.Len())
		result.Count = &estimate
	}

	return result, nil
}

func filterRows(t *table.Table, filter JSON) ([]JSON, error) {

	hasFilter := len(filter) > 0

	matches := []JSON{}
	var matchErr error
	t.Traverse(func(row JSON) bool {
		if hasFilter {
			match, err := connor.Match(filter, row)
			if err != nil {
				matchErr = fmt.Errorf("match: %w", err)
				return false
			}
			if !match {
				return true
			}
		}
		matches = append(matches, row)
		return true
	})
	if matchErr != nil {
		return nil, matchErr
	}

	return matches, nil
}

// projectRows keeps only the requested columns. An empty projection
// returns the rows as stored.
func projectRows(rows []JSON, columns []string) []JSON {

	if len(columns) == 0 {
		return rows
	}

	projected := make([]JSON, 0, len(rows))
	for _, row := range rows {
		p := JSON{}
		for _, column := range columns {
			if value, exists := row[column]; exists {
				p[column] = value
			}
		}
		projected = append(projected, p)
	}

	return projected
}

func affected(returnRows bool, rows ...JSON) *Result {

	count := int64(len(rows))
	result := &Result{
		Count: &count,
	}
	if returnRows {
		result.Data = rows
	}

	return result
}
