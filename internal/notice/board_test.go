package notice

import (
	"errors"
	"fmt"
	"testing"
)

type friendlyErr struct{}

func (friendlyErr) Error() string       { return "internal detail" }
func (friendlyErr) UserMessage() string { return "Please retry." }

func TestBoardKeepsNewestWithinCapacity(t *testing.T) {
	board := NewBoard(3, nil)
	for i := 0; i < 5; i++ {
		board.Post(LevelInfo, "test", fmt.Sprintf("n%d", i))
	}
	got := board.Recent(0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Message != "n4" || got[2].Message != "n2" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if limited := board.Recent(1); len(limited) != 1 || limited[0].Message != "n4" {
		t.Fatalf("Recent(1) = %+v", limited)
	}
}

func TestReportPrefersUserMessage(t *testing.T) {
	board := NewBoard(0, nil)
	board.Report("analysis", fmt.Errorf("wrapped: %w", friendlyErr{}))
	board.Report("aggregate", errors.New("plain failure"))
	board.Report("ignored", nil)

	got := board.Recent(0)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].Message != "Please retry." || got[1].Level != LevelError || got[1].Source != "analysis" {
		t.Fatalf("unexpected notice: %+v", got[1])
	}
	if got[0].Message != "plain failure" {
		t.Fatalf("unexpected notice: %+v", got[0])
	}
}
