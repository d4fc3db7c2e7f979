// Package questions selects age-appropriate screening questions from the
// question bank and resolves their pass criteria and hints on demand.
package questions

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/linyuchia/speechbot/internal/database"
)

// Question is one screening question selected for a child's age. Position
// is the row's storage ordinate, kept so the criterion and hint can be
// fetched later from the same row.
type Question struct {
	Position int
	AgeRange string
	Text     string
}

// Detail holds the lazily fetched companion columns of a question row.
type Detail struct {
	Hint      string
	Criterion string
}

var numberPattern = regexp.MustCompile(`\d+`)

// Repository filters the question bank by age and exposes the per-row
// detail lookup used during a screening run.
type Repository struct {
	store  database.Store
	logger *slog.Logger
}

// NewRepository creates a question repository over the given store.
func NewRepository(store database.Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{
		store:  store,
		logger: logger.With("component", "questions"),
	}
}

// ForAge returns the questions whose age range contains the given month
// count, in storage order. Rows with malformed range text are skipped.
// Returns nil when nothing matches; read failures are logged and also
// reported as nil so a broken store surfaces to the user as "screening
// unavailable" rather than a crashed turn.
func (r *Repository) ForAge(ctx context.Context, months int) []Question {
	rows, err := r.store.ListQuestions(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to read question bank", "months", months, "error", err)
		return nil
	}

	var matched []Question
	for _, row := range rows {
		min, max, ok := parseAgeRange(row.AgeRange)
		if !ok {
			continue
		}
		if min <= months && months <= max {
			matched = append(matched, Question{
				Position: row.Position,
				AgeRange: row.AgeRange,
				Text:     row.Text,
			})
		}
	}

	if len(matched) == 0 {
		r.logger.InfoContext(ctx, "No questions matched age", "months", months)
		return nil
	}

	r.logger.DebugContext(ctx, "Selected questions for age", "months", months, "count", len(matched))
	return matched
}

// Detail fetches the pass criterion and hint for the row a question came
// from. Unlike ForAge, failures here propagate: they abort the turn the
// same way an evaluator failure would.
func (r *Repository) Detail(ctx context.Context, position int) (Detail, error) {
	d, err := r.store.QuestionDetail(ctx, position)
	if err != nil {
		return Detail{}, err
	}
	if d == nil {
		// Row vanished between the scan and the lazy fetch. Treat it
		// like a row with empty companion columns.
		r.logger.WarnContext(ctx, "Question detail row missing", "position", position)
		return Detail{}, nil
	}
	return Detail{Hint: d.Hint, Criterion: d.Criterion}, nil
}

// parseAgeRange parses range text of the form "<min>-<max>", with the
// bounds being the first two numbers in the text ("9-12 個月" parses as
// 9 to 12). Text without a '-' never matches any age.
func parseAgeRange(text string) (min, max int, ok bool) {
	if !strings.Contains(text, "-") {
		return 0, 0, false
	}

	nums := numberPattern.FindAllString(text, 2)
	if len(nums) < 2 {
		return 0, 0, false
	}

	min, err := strconv.Atoi(nums[0])
	if err != nil {
		return 0, 0, false
	}
	max, err = strconv.Atoi(nums[1])
	if err != nil {
		return 0, 0, false
	}

	return min, max, true
}
