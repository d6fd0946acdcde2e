package types

import (
	"reflect"
	"testing"
)

func TestRowSetBlankIsNull(t *testing.T) {
	r := Row{"A": "1"}
	r.Set("A", "  ")
	if _, ok := r.Get("A"); ok {
		t.Fatal("blank value should be stored as null")
	}
	r.Set("B", "x")
	if v, ok := r.Get("B"); !ok || v != "x" {
		t.Fatalf("Get(B) = %q, %v", v, ok)
	}
}

func TestBatchColumns(t *testing.T) {
	b := New("A", "B", "C")
	b.Rows = []Row{{"A": "1", "B": "2", "C": "3"}}
	b.AddColumn("B")
	b.AddColumn("D")
	b.DropColumn("B")

	if want := []string{"A", "C", "D"}; !reflect.DeepEqual(b.Columns, want) {
		t.Errorf("Columns = %v, want %v", b.Columns, want)
	}
	if _, ok := b.Rows[0]["B"]; ok {
		t.Error("dropped column cell still present")
	}
}

func TestBatchCloneIsIndependent(t *testing.T) {
	b := New("A")
	b.Rows = []Row{{"A": "1"}}
	c := b.Clone()
	c.Rows[0]["A"] = "2"
	c.AddColumn("Z")
	if b.Rows[0]["A"] != "1" || b.HasColumn("Z") {
		t.Error("clone shares state with the original")
	}
}
