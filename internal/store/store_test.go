package store

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/MJE43/rotor-replay-go/internal/slot"
)

func newTestSQLite(t *testing.T) *SQLDB {
	t.Helper()
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

// backends returns every DB implementation under test.
func backends(t *testing.T) map[string]DB {
	return map[string]DB{
		"sqlite": newTestSQLite(t),
		"memory": NewMemoryDB(),
	}
}

func randomOutcomes(n int, seed uint64) []slot.Outcome {
	r := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]slot.Outcome, n)
	for i := range out {
		out[i].Seq = int64(i + 1)
		for c := range out[i].Grid {
			// bias towards blanks and a couple of symbols so lines actually win
			switch v := r.IntN(12); {
			case v < 4:
				out[i].Grid[c] = 0
			case v < 8:
				out[i].Grid[c] = slot.Symbol(1 + v%2)
			default:
				out[i].Grid[c] = slot.Symbol(r.IntN(slot.SymbolCount))
			}
		}
	}
	return out
}

func TestOutcomesRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			in := []slot.Outcome{
				{Seq: 3, Grid: slot.Grid{1, 1, 1, 0, 0, 0, 2, 2, 2}},
				{Seq: 1, Grid: slot.Grid{7, 7, 0, 7, 0, 0, 0, 0, 0}},
				{Seq: 2, Grid: slot.Grid{0, 0, 0, 0, 0, 0, 0, 0, 0}},
			}
			if err := db.SaveOutcomes(ctx, in); err != nil {
				t.Fatalf("SaveOutcomes failed: %v", err)
			}
			n, err := db.CountOutcomes(ctx)
			if err != nil || n != 3 {
				t.Fatalf("Expected 3 outcomes, got %d (err %v)", n, err)
			}
			got, err := db.Outcomes(ctx)
			if err != nil {
				t.Fatalf("Outcomes failed: %v", err)
			}
			for i, o := range got {
				if o.Seq != int64(i+1) {
					t.Errorf("Expected recorded order, position %d has seq %d", i, o.Seq)
				}
			}
			if got[2].Grid != in[0].Grid {
				t.Errorf("Expected grid %v, got %v", in[0].Grid, got[2].Grid)
			}

			err = db.SaveOutcomes(ctx, []slot.Outcome{{Seq: 1}})
			if !errors.Is(err, ErrDuplicateOutcome) {
				t.Errorf("Expected ErrDuplicateOutcome, got %v", err)
			}
			err = db.SaveOutcomes(ctx, []slot.Outcome{{Seq: 9, Grid: slot.Grid{8}}})
			if !errors.Is(err, slot.ErrMalformedOutcome) {
				t.Errorf("Expected ErrMalformedOutcome, got %v", err)
			}
		})
	}
}

// The SQL predicate and the in-process MatchLine must select the same spins.
func TestLinePredicateAgreesWithMatchLine(t *testing.T) {
	ctx := context.Background()
	sqlite := newTestSQLite(t)
	memory := NewMemoryDB()
	data := randomOutcomes(1500, 11)
	for _, db := range []DB{sqlite, memory} {
		if err := db.SaveOutcomes(ctx, data); err != nil {
			t.Fatalf("SaveOutcomes failed: %v", err)
		}
	}

	for _, line := range slot.Lines() {
		t.Run(line.String(), func(t *testing.T) {
			a, err := sqlite.OutcomesWinningLine(ctx, line)
			if err != nil {
				t.Fatalf("sqlite query failed: %v", err)
			}
			b, _ := memory.OutcomesWinningLine(ctx, line)
			if len(a) == 0 {
				t.Fatalf("test data produced no %s wins", line)
			}
			if len(a) != len(b) {
				t.Fatalf("sqlite matched %d spins, memory matched %d", len(a), len(b))
			}
			for i := range a {
				if a[i].Seq != b[i].Seq {
					t.Errorf("match %d: sqlite seq %d, memory seq %d", i, a[i].Seq, b[i].Seq)
				}
			}
		})
	}

	a, err := sqlite.OutcomesWithCloverPair(ctx)
	if err != nil {
		t.Fatalf("clover query failed: %v", err)
	}
	b, _ := memory.OutcomesWithCloverPair(ctx)
	if len(a) != len(b) {
		t.Errorf("clover pairs: sqlite %d, memory %d", len(a), len(b))
	}
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			runs := []*Run{
				{Kind: KindProfit, ParamsJSON: "{}", ResultJSON: "[1,2,3]", EngineVersion: "test", CreatedAt: base},
				{Kind: KindCalibrate, ParamsJSON: "{}", ResultJSON: "[]", EngineVersion: "test", CreatedAt: base.Add(time.Minute)},
				{Kind: KindProfit, ParamsJSON: "{}", ResultJSON: "[4,5,6]", EngineVersion: "test", CreatedAt: base.Add(2 * time.Minute)},
			}
			for _, r := range runs {
				if err := db.SaveRun(ctx, r); err != nil {
					t.Fatalf("SaveRun failed: %v", err)
				}
				if r.ID == "" {
					t.Fatal("SaveRun should assign an ID")
				}
			}

			all, err := db.ListRuns(ctx, RunsQuery{Page: 1, PerPage: 2})
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			if all.TotalCount != 3 || all.TotalPages != 2 || len(all.Runs) != 2 {
				t.Errorf("Expected 3 runs on 2 pages, got %+v", all)
			}
			if all.Runs[0].ID != runs[2].ID {
				t.Errorf("Expected newest run first")
			}

			profit, err := db.ListRuns(ctx, RunsQuery{Kind: KindProfit})
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			if profit.TotalCount != 2 {
				t.Errorf("Expected 2 profit runs, got %d", profit.TotalCount)
			}

			got, err := db.GetRun(ctx, runs[1].ID)
			if err != nil {
				t.Fatalf("GetRun failed: %v", err)
			}
			if got.Kind != KindCalibrate || !got.CreatedAt.Equal(runs[1].CreatedAt) {
				t.Errorf("Expected %+v, got %+v", runs[1], got)
			}

			if _, err := db.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
				t.Errorf("Expected ErrRunNotFound, got %v", err)
			}
		})
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, nil)
	if !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("Expected ErrUnsupportedDriver, got %v", err)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := newTestSQLite(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("second migration should be a no-op, got %v", err)
	}
}
