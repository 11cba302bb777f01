package storage

import (
	"context"
	"testing"
)

func TestCorpusRepo_GetOrCreateByName(t *testing.T) {
	repo := NewCorpusRepo(newTestDB(t))
	ctx := context.Background()

	first, err := repo.GetOrCreateByName(ctx, "classics", "/data/classics")
	if err != nil {
		t.Fatalf("GetOrCreateByName() error = %v", err)
	}
	if first.ID == 0 || first.Name != "classics" || first.RootPath != "/data/classics" {
		t.Errorf("GetOrCreateByName() = %+v", first)
	}
	if first.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	again, err := repo.GetOrCreateByName(ctx, "classics", "/elsewhere")
	if err != nil {
		t.Fatalf("GetOrCreateByName() second call error = %v", err)
	}
	if again.ID != first.ID || again.RootPath != "/data/classics" {
		t.Errorf("second call = %+v, want existing corpus %+v", again, first)
	}
}

func TestCorpusRepo_ListAll(t *testing.T) {
	repo := NewCorpusRepo(newTestDB(t))
	ctx := context.Background()

	empty, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListAll() = %v, want empty", empty)
	}

	for _, name := range []string{"openings", "endgames"} {
		if _, err := repo.GetOrCreateByName(ctx, name, "/data/"+name); err != nil {
			t.Fatalf("GetOrCreateByName(%s) error = %v", name, err)
		}
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 2 || all[0].Name != "endgames" || all[1].Name != "openings" {
		t.Errorf("ListAll() = %+v, want endgames then openings", all)
	}
}
