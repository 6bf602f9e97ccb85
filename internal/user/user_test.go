package user

import (
	"errors"
	"testing"
)

func TestTable_AddFindDelete(t *testing.T) {
	tbl := NewTable()
	u, err := tbl.Add(42, "Anonymous")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if u.Name != "Anonymous" || u.Room != 0 {
		t.Fatalf("fresh user = %+v", u)
	}
	got, err := tbl.Find(42)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != u {
		t.Fatalf("Find returned a different record")
	}
	if err := tbl.Delete(42); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := tbl.Find(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestTable_Duplicate(t *testing.T) {
	tbl := NewTable()
	if _, err := tbl.Add(1, "Anonymous"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := tbl.Add(1, "Anonymous"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("got %v, want ErrDuplicate", err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tbl.Len())
	}
}

func TestTable_DeleteMissing(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Delete(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
