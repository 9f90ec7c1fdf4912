package chart

import (
	"errors"
	"testing"
)

func TestAddAndLookup(t *testing.T) {
	c := New("t1")
	acc, err := c.Add(Account{Code: "1300", Name: "Debiteuren", Type: TypeAsset, IsControlAccount: true, ControlType: ControlAR})
	if err != nil {
		t.Fatal(err)
	}
	if acc.ID == "" || !acc.Active || acc.TenantID != "t1" {
		t.Fatalf("unexpected account: %+v", acc)
	}

	byCode, err := c.ByCode("1300")
	if err != nil || byCode.ID != acc.ID {
		t.Fatalf("ByCode mismatch: %v %+v", err, byCode)
	}
}

func TestDuplicateCodeRejected(t *testing.T) {
	c := New("t1")
	if _, err := c.Add(Account{Code: "8000", Name: "Omzet", Type: TypeRevenue}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Add(Account{Code: "8000", Name: "Omzet 2", Type: TypeRevenue}); !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestControlAccountRequiresControlType(t *testing.T) {
	c := New("t1")
	if _, err := c.Add(Account{Code: "1600", Name: "Crediteuren", Type: TypeLiability, IsControlAccount: true}); !errors.Is(err, ErrMissingControl) {
		t.Fatalf("expected ErrMissingControl, got %v", err)
	}
}

func TestReparentCycleRejected(t *testing.T) {
	c := New("t1")
	root, _ := c.Add(Account{Code: "4000", Name: "Kosten", Type: TypeExpense})
	mid, _ := c.Add(Account{Code: "4100", Name: "Huisvesting", Type: TypeExpense, ParentID: root.ID})
	leaf, _ := c.Add(Account{Code: "4110", Name: "Huur", Type: TypeExpense, ParentID: mid.ID})

	if err := c.Reparent(root.ID, leaf.ID); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	if err := c.Reparent(root.ID, root.ID); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle for self-parent, got %v", err)
	}
	// A legal move still works.
	if err := c.Reparent(leaf.ID, root.ID); err != nil {
		t.Fatalf("legal reparent failed: %v", err)
	}
}

func TestDeactivateBlocksActiveLookup(t *testing.T) {
	c := New("t1")
	acc, _ := c.Add(Account{Code: "4000", Name: "Kosten", Type: TypeExpense})
	if err := c.Deactivate(acc.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ActiveByID(acc.ID); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	// Plain lookup still resolves historic references.
	if _, err := c.ByID(acc.ID); err != nil {
		t.Fatalf("ByID after deactivate: %v", err)
	}
}

func TestChildrenOrderedByCode(t *testing.T) {
	c := New("t1")
	root, _ := c.Add(Account{Code: "4000", Name: "Kosten", Type: TypeExpense})
	c.Add(Account{Code: "4200", Name: "B", Type: TypeExpense, ParentID: root.ID})
	c.Add(Account{Code: "4100", Name: "A", Type: TypeExpense, ParentID: root.ID})

	kids := c.Children(root.ID)
	if len(kids) != 2 || kids[0].Code != "4100" || kids[1].Code != "4200" {
		t.Fatalf("unexpected children: %+v", kids)
	}
}

func TestNewDefaultChart(t *testing.T) {
	c, err := NewDefault("t1")
	if err != nil {
		t.Fatal(err)
	}
	ar, err := c.ByCode("1300")
	if err != nil {
		t.Fatal(err)
	}
	if !ar.IsControlAccount || ar.ControlType != ControlAR {
		t.Fatalf("1300 should be the AR control account: %+v", ar)
	}
	dep, err := c.ByCode("0210")
	if err != nil {
		t.Fatal(err)
	}
	if dep.ParentID == "" {
		t.Fatal("0210 should hang under 0200")
	}
}
