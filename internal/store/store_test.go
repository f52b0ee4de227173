package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/reoverflow/internal/apperr"
	"github.com/starford/reoverflow/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	f, err := os.CreateTemp("", "reoverflow-store-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	s, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedQuestion(t *testing.T, s *Store, id string, tags ...string) *models.Question {
	t.Helper()
	q := &models.Question{
		ID:               id,
		Title:            "Title " + id,
		Content:          "<p>Body</p>",
		Tags:             tags,
		AskerID:          "u1",
		AskerDisplayName: "Alice",
		Version:          1,
		CreatedAt:        time.Now().UTC(),
	}
	err := s.InTx(context.Background(), func(tx *Tx) error {
		return tx.InsertQuestion(context.Background(), q)
	})
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}
	return q
}

func TestSchemaCreation(t *testing.T) {
	s := testStore(t)
	for _, table := range []string{"questions", "answers", "tags"} {
		var count int
		if err := s.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestInsertAndLoadQuestion(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedQuestion(t, s, "q1", "go", "sql")

	q, err := s.GetQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.Title != "Title q1" || len(q.Tags) != 2 || q.Tags[0] != "go" {
		t.Errorf("question = %+v", q)
	}
	if q.UpdatedAt != nil {
		t.Error("UpdatedAt should be nil on a fresh question")
	}

	_, err = s.GetQuestion(ctx, "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing question err = %v, want not found", err)
	}
}

func TestAnswersCascadeOnDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedQuestion(t, s, "q1")

	err := s.InTx(ctx, func(tx *Tx) error {
		return tx.InsertAnswer(ctx, &models.Answer{ID: "a1", QuestionID: "q1", Content: "x", UserID: "u2", CreatedAt: time.Now()})
	})
	if err != nil {
		t.Fatalf("InsertAnswer: %v", err)
	}
	err = s.InTx(ctx, func(tx *Tx) error { return tx.DeleteQuestion(ctx, "q1") })
	if err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	var n int
	_ = s.conn.QueryRow(`SELECT count(*) FROM answers`).Scan(&n)
	if n != 0 {
		t.Errorf("answers left after cascade: %d", n)
	}
}

func TestUniqueAcceptedAnswer(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedQuestion(t, s, "q1")

	a1 := &models.Answer{ID: "a1", QuestionID: "q1", Content: "x", UserID: "u2", CreatedAt: time.Now()}
	a2 := &models.Answer{ID: "a2", QuestionID: "q1", Content: "y", UserID: "u3", CreatedAt: time.Now()}
	_ = s.InTx(ctx, func(tx *Tx) error {
		if err := tx.InsertAnswer(ctx, a1); err != nil {
			return err
		}
		return tx.InsertAnswer(ctx, a2)
	})

	a1.Accepted = true
	if err := s.InTx(ctx, func(tx *Tx) error { return tx.SaveAnswer(ctx, a1) }); err != nil {
		t.Fatalf("accept a1: %v", err)
	}
	a2.Accepted = true
	err := s.InTx(ctx, func(tx *Tx) error { return tx.SaveAnswer(ctx, a2) })
	if !errors.Is(err, apperr.ErrInvariant) {
		t.Fatalf("second accept err = %v, want invariant", err)
	}
}

func TestInTxRollsBack(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx *Tx) error {
		q := &models.Question{ID: "q1", Title: "t", Content: "c", Tags: []string{}, AskerID: "u1", Version: 1, CreatedAt: time.Now()}
		if err := tx.InsertQuestion(ctx, q); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.GetQuestion(ctx, "q1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("rolled back question must not exist")
	}
}

func TestListQuestionsByTag(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedQuestion(t, s, "q1", "go")
	seedQuestion(t, s, "q2", "sql")

	all, err := s.ListQuestions(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d questions, want 2", len(all))
	}
	tagged, _ := s.ListQuestions(ctx, "GO", 0, 0)
	if len(tagged) != 1 || tagged[0].ID != "q1" {
		t.Errorf("tag filter = %+v", tagged)
	}
}

func TestViewCount(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	seedQuestion(t, s, "q1")
	for i := 0; i < 3; i++ {
		if err := s.IncrementViewCount(ctx, "q1"); err != nil {
			t.Fatal(err)
		}
	}
	q, _ := s.GetQuestion(ctx, "q1")
	if q.ViewCount != 3 {
		t.Errorf("view count = %d, want 3", q.ViewCount)
	}
}

func TestUpsertAndLoadTags(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if err := s.UpsertTags(ctx, []models.Tag{{Slug: "Go", Name: "Go"}, {Slug: "sql"}}); err != nil {
		t.Fatalf("UpsertTags: %v", err)
	}
	if err := s.UpsertTags(ctx, []models.Tag{{Slug: "go", Name: "Golang"}}); err != nil {
		t.Fatalf("UpsertTags again: %v", err)
	}
	tags, err := s.LoadTags(ctx)
	if err != nil {
		t.Fatalf("LoadTags: %v", err)
	}
	if len(tags) != 2 || tags[0].Slug != "go" || tags[0].Name != "Golang" {
		t.Errorf("tags = %+v", tags)
	}
}
