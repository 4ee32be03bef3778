package table

import (
	"errors"
	"path"
	"testing"

	"github.com/fulldump/biff"
)

func openTestTable(t *testing.T) *Table {
	t.Helper()

	tab, err := Open(path.Join(t.TempDir(), "players"), "id")
	biff.AssertNil(err)
	t.Cleanup(func() {
		tab.Close()
	})

	return tab
}

func TestInsertAndGet(t *testing.T) {

	tab := openTestTable(t)

	err := tab.Insert(JSON{"id": "a", "name": "Fulanez"})
	biff.AssertNil(err)

	row, exists := tab.Get("a")
	biff.AssertEqual(exists, true)
	biff.AssertEqual(row["name"], "Fulanez")
	biff.AssertEqual(tab.Len(), 1)
}

func TestInsertDuplicate(t *testing.T) {

	tab := openTestTable(t)

	biff.AssertNil(tab.Insert(JSON{"id": "a"}))

	err := tab.Insert(JSON{"id": "a"})
	biff.AssertEqual(errors.Is(err, ErrorRowAlreadyExists), true)
}

func TestInsertNumericIDAcrossTypes(t *testing.T) {

	tab := openTestTable(t)

	// 7 built in Go code, 7.0 decoded from JSON, same identifier
	biff.AssertNil(tab.Insert(JSON{"id": 7}))

	err := tab.Insert(JSON{"id": 7.0})
	biff.AssertEqual(errors.Is(err, ErrorRowAlreadyExists), true)

	_, exists := tab.Get(7.0)
	biff.AssertEqual(exists, true)
}

func TestInsertInvalidID(t *testing.T) {

	tab := openTestTable(t)

	err := tab.Insert(JSON{"id": JSON{"nested": true}})
	biff.AssertEqual(errors.Is(err, ErrorInvalidID), true)

	err = tab.Insert(JSON{}) // identifier missing
	biff.AssertEqual(errors.Is(err, ErrorInvalidID), true)
}

func TestUpdateMergesPatch(t *testing.T) {

	tab := openTestTable(t)

	biff.AssertNil(tab.Insert(JSON{"id": "a", "name": "Fulanez", "score": 1.0}))

	next, err := tab.Update(JSON{"id": "a", "score": 2.0})
	biff.AssertNil(err)

	// untouched fields survive the merge
	biff.AssertEqual(next["name"], "Fulanez")
	biff.AssertEqual(next["score"], 2.0)
}

func TestUpdateNotFound(t *testing.T) {

	tab := openTestTable(t)

	_, err := tab.Update(JSON{"id": "missing"})
	biff.AssertEqual(errors.Is(err, ErrorRowNotFound), true)
}

func TestUpsert(t *testing.T) {

	tab := openTestTable(t)

	_, err := tab.Upsert(JSON{"id": "a", "name": "Fulanez"})
	biff.AssertNil(err)

	next, err := tab.Upsert(JSON{"id": "a", "score": 10.0})
	biff.AssertNil(err)

	biff.AssertEqual(next["name"], "Fulanez")
	biff.AssertEqual(next["score"], 10.0)
	biff.AssertEqual(tab.Len(), 1)
}

func TestDelete(t *testing.T) {

	tab := openTestTable(t)

	biff.AssertNil(tab.Insert(JSON{"id": "a", "name": "Fulanez"}))

	removed, err := tab.Delete("a")
	biff.AssertNil(err)
	biff.AssertEqual(removed["name"], "Fulanez")
	biff.AssertEqual(tab.Len(), 0)

	_, err = tab.Delete("a")
	biff.AssertEqual(errors.Is(err, ErrorRowNotFound), true)
}

func TestTraverseInIdentifierOrder(t *testing.T) {

	tab := openTestTable(t)

	biff.AssertNil(tab.Insert(JSON{"id": "c"}))
	biff.AssertNil(tab.Insert(JSON{"id": "a"}))
	biff.AssertNil(tab.Insert(JSON{"id": "b"}))

	visited := []string{}
	tab.Traverse(func(row JSON) bool {
		visited = append(visited, row["id"].(string))
		return true
	})

	biff.AssertEqual(visited, []string{"a", "b", "c"})
}

func TestTraverseCanMutate(t *testing.T) {

	tab := openTestTable(t)

	biff.AssertNil(tab.Insert(JSON{"id": "a"}))
	biff.AssertNil(tab.Insert(JSON{"id": "b"}))

	tab.Traverse(func(row JSON) bool {
		tab.Delete(row["id"])
		return true
	})

	biff.AssertEqual(tab.Len(), 0)
}

func TestReplayLog(t *testing.T) {

	filename := path.Join(t.TempDir(), "players")

	tab, err := Open(filename, "id")
	biff.AssertNil(err)

	biff.AssertNil(tab.Insert(JSON{"id": "a", "name": "Fulanez", "score": 1.0}))
	biff.AssertNil(tab.Insert(JSON{"id": "b", "name": "Menganez"}))
	_, err = tab.Update(JSON{"id": "a", "score": 2.0})
	biff.AssertNil(err)
	_, err = tab.Delete("b")
	biff.AssertNil(err)
	biff.AssertNil(tab.Close())

	reopened, err := Open(filename, "id")
	biff.AssertNil(err)
	defer reopened.Close()

	biff.AssertEqual(reopened.Len(), 1)
	row, exists := reopened.Get("a")
	biff.AssertEqual(exists, true)
	biff.AssertEqual(row["name"], "Fulanez")
	biff.AssertEqual(row["score"], 2.0)
}

func TestDrop(t *testing.T) {

	filename := path.Join(t.TempDir(), "players")

	tab, err := Open(filename, "id")
	biff.AssertNil(err)
	biff.AssertNil(tab.Insert(JSON{"id": "a"}))

	biff.AssertNil(tab.Drop())

	err = tab.Insert(JSON{"id": "b"})
	biff.AssertEqual(err != nil, true) // table is closed
}
