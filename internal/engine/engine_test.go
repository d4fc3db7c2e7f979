package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/linyuchia/speechbot/internal/config"
	"github.com/linyuchia/speechbot/internal/gemini"
	"github.com/linyuchia/speechbot/internal/questions"
	"github.com/linyuchia/speechbot/internal/session"
)

var testMsgs = config.MessagesConfig{
	Welcome:          "welcome",
	Menu:             "menu",
	BirthdatePrompt:  "birthdate?",
	InvalidBirthdate: "bad date",
	NoQuestions:      "no questions",
	Tips:             "tips",
	Treatment:        "treatment",
	GeneralError:     "oops",
}

type fakeRepo struct {
	byAge     map[int][]questions.Question
	details   map[int]questions.Detail
	detailErr error
}

func (f *fakeRepo) ForAge(_ context.Context, months int) []questions.Question {
	return f.byAge[months]
}

func (f *fakeRepo) Detail(_ context.Context, position int) (questions.Detail, error) {
	if f.detailErr != nil {
		return questions.Detail{}, f.detailErr
	}
	return f.details[position], nil
}

type fakeEvaluator struct {
	verdicts    []gemini.Verdict
	classifyErr error
	rephrased   string
	rephraseErr error
	classified  int
}

func (f *fakeEvaluator) ClassifyAnswer(context.Context, string, string, string) (gemini.Verdict, error) {
	if f.classifyErr != nil {
		return gemini.VerdictUnclear, f.classifyErr
	}
	v := f.verdicts[f.classified]
	f.classified++
	return v, nil
}

func (f *fakeEvaluator) RephraseHint(_ context.Context, hint string) (string, error) {
	if f.rephraseErr != nil {
		return "", f.rephraseErr
	}
	if f.rephrased != "" {
		return f.rephrased, nil
	}
	return "simpler: " + hint, nil
}

func threeQuestions() []questions.Question {
	return []questions.Question{
		{Position: 1, AgeRange: "9-12", Text: "q1"},
		{Position: 2, AgeRange: "9-12", Text: "q2"},
		{Position: 3, AgeRange: "9-12", Text: "q3"},
	}
}

func threeDetails() map[int]questions.Detail {
	return map[int]questions.Detail{
		1: {Hint: "h1", Criterion: "c1"},
		2: {Hint: "h2", Criterion: "c2"},
		3: {Hint: "h3", Criterion: "c3"},
	}
}

func newTestEngine(repo QuestionSource, eval gemini.Client) (*Engine, *session.MemoryStore) {
	store := session.NewMemoryStore()
	e := New(store, repo, eval, testMsgs, nil)
	e.now = func() time.Time { return time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC) }
	return e, store
}

func sessionOf(store *session.MemoryStore, userID string) session.Session {
	var snapshot session.Session
	store.Do(userID, func(s *session.Session) { snapshot = *s })
	return snapshot
}

func TestNewUserDefaultsToMainMenu(t *testing.T) {
	t.Parallel()

	e, store := newTestEngine(&fakeRepo{}, &fakeEvaluator{})

	// No follow event: the first text message alone creates the session.
	reply, err := e.HandleText(context.Background(), "user-1", "hello")
	if err != nil {
		t.Fatalf("HandleText error: %v", err)
	}
	if reply != testMsgs.Menu {
		t.Errorf("reply = %q, want menu text", reply)
	}
	if got := sessionOf(store, "user-1").Mode; got != session.ModeMainMenu {
		t.Errorf("mode = %s, want main_menu", got)
	}
}

func TestFollowEmitsWelcome(t *testing.T) {
	t.Parallel()

	e, store := newTestEngine(&fakeRepo{}, &fakeEvaluator{})

	reply := e.HandleFollow(context.Background(), "user-1")
	if reply != testMsgs.Welcome {
		t.Errorf("reply = %q, want welcome text", reply)
	}
	if got := sessionOf(store, "user-1").Mode; got != session.ModeMainMenu {
		t.Errorf("mode = %s, want main_menu", got)
	}
}

func TestMainMenuKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		reply    string
		wantMode session.Mode
	}{
		{name: "screening keyword", input: KeywordScreening, reply: testMsgs.BirthdatePrompt, wantMode: session.ModeScreening},
		{name: "tips keyword", input: KeywordTips, reply: testMsgs.Tips, wantMode: session.ModeTips},
		{name: "treatment keyword", input: KeywordTreatment, reply: testMsgs.Treatment, wantMode: session.ModeTreatment},
		{name: "keyword with surrounding whitespace", input: "  " + KeywordScreening + "\n", reply: testMsgs.BirthdatePrompt, wantMode: session.ModeScreening},
		{name: "unknown text repeats menu", input: "嗨", reply: testMsgs.Menu, wantMode: session.ModeMainMenu},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e, store := newTestEngine(&fakeRepo{}, &fakeEvaluator{})

			reply, err := e.HandleText(context.Background(), "user-1", tc.input)
			if err != nil {
				t.Fatalf("HandleText error: %v", err)
			}
			if reply != tc.reply {
				t.Errorf("reply = %q, want %q", reply, tc.reply)
			}
			if got := sessionOf(store, "user-1").Mode; got != tc.wantMode {
				t.Errorf("mode = %s, want %s", got, tc.wantMode)
			}
		})
	}
}

func TestScreeningBirthdateFlow(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		byAge:   map[int][]questions.Question{6: threeQuestions()},
		details: threeDetails(),
	}
	e, store := newTestEngine(repo, &fakeEvaluator{})
	ctx := context.Background()

	if _, err := e.HandleText(ctx, "user-1", KeywordScreening); err != nil {
		t.Fatalf("entering screening: %v", err)
	}

	// Unparseable birthdate: stay in screening, re-prompt.
	reply, err := e.HandleText(ctx, "user-1", "兩歲半")
	if err != nil {
		t.Fatalf("invalid birthdate turn: %v", err)
	}
	if reply != testMsgs.InvalidBirthdate {
		t.Errorf("reply = %q, want invalid-birthdate text", reply)
	}
	if got := sessionOf(store, "user-1").Mode; got != session.ModeScreening {
		t.Errorf("mode after invalid date = %s, want screening", got)
	}

	// Valid birthdate: 2024-01-01 at fixed now 2024-07-01 is 6 months.
	reply, err = e.HandleText(ctx, "user-1", "2024-01-01")
	if err != nil {
		t.Fatalf("valid birthdate turn: %v", err)
	}
	want := fmt.Sprintf(questionTemplate, 1, "q1")
	if reply != want {
		t.Errorf("reply = %q, want first question prompt %q", reply, want)
	}

	got := sessionOf(store, "user-1")
	if got.Mode != session.ModeTesting || got.CurrentIndex != 0 || got.Score != 0 || len(got.Questions) != 3 {
		t.Errorf("session after start = %+v, want testing with fresh cursor and score", got)
	}
}

func TestScreeningUnavailableForAge(t *testing.T) {
	t.Parallel()

	e, store := newTestEngine(&fakeRepo{byAge: map[int][]questions.Question{}}, &fakeEvaluator{})
	ctx := context.Background()

	if _, err := e.HandleText(ctx, "user-1", KeywordScreening); err != nil {
		t.Fatalf("entering screening: %v", err)
	}
	reply, err := e.HandleText(ctx, "user-1", "2024-01-01")
	if err != nil {
		t.Fatalf("birthdate turn: %v", err)
	}
	if reply != testMsgs.NoQuestions {
		t.Errorf("reply = %q, want no-questions text", reply)
	}
	if got := sessionOf(store, "user-1").Mode; got != session.ModeMainMenu {
		t.Errorf("mode = %s, want main_menu", got)
	}
}

// Pass advances cursor and score; Unclear holds both; Fail advances the
// cursor only.
func TestTestingPassUnclearFail(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		byAge:   map[int][]questions.Question{6: threeQuestions()},
		details: threeDetails(),
	}
	eval := &fakeEvaluator{verdicts: []gemini.Verdict{gemini.VerdictPass, gemini.VerdictUnclear, gemini.VerdictFail}}
	e, store := newTestEngine(repo, eval)
	ctx := context.Background()

	e.HandleText(ctx, "user-1", KeywordScreening)
	e.HandleText(ctx, "user-1", "2024-01-01")

	// Pass: score 1, cursor 1, question 2 prompted.
	reply, err := e.HandleText(ctx, "user-1", "會，常常模仿")
	if err != nil {
		t.Fatalf("pass turn: %v", err)
	}
	if want := fmt.Sprintf(questionTemplate, 2, "q2"); reply != want {
		t.Errorf("pass reply = %q, want %q", reply, want)
	}
	got := sessionOf(store, "user-1")
	if got.CurrentIndex != 1 || got.Score != 1 {
		t.Errorf("after pass: cursor %d score %d, want 1 and 1", got.CurrentIndex, got.Score)
	}

	// Unclear: cursor and score unchanged, rephrased hint in reply.
	reply, err = e.HandleText(ctx, "user-1", "嗯")
	if err != nil {
		t.Fatalf("unclear turn: %v", err)
	}
	if want := fmt.Sprintf(unclearTemplate, "simpler: h2"); reply != want {
		t.Errorf("unclear reply = %q, want %q", reply, want)
	}
	got = sessionOf(store, "user-1")
	if got.CurrentIndex != 1 || got.Score != 1 {
		t.Errorf("after unclear: cursor %d score %d, want unchanged 1 and 1", got.CurrentIndex, got.Score)
	}
	if got.Mode != session.ModeTesting {
		t.Errorf("after unclear: mode %s, want testing", got.Mode)
	}

	// Fail: cursor 2, score still 1.
	reply, err = e.HandleText(ctx, "user-1", "不會")
	if err != nil {
		t.Fatalf("fail turn: %v", err)
	}
	if want := fmt.Sprintf(questionTemplate, 3, "q3"); reply != want {
		t.Errorf("fail reply = %q, want %q", reply, want)
	}
	got = sessionOf(store, "user-1")
	if got.CurrentIndex != 2 || got.Score != 1 {
		t.Errorf("after fail: cursor %d score %d, want 2 and 1", got.CurrentIndex, got.Score)
	}
}

func TestTestingCompletesOnLastAdvance(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		byAge: map[int][]questions.Question{6: {{Position: 1, Text: "q1"}}},
		details: map[int]questions.Detail{
			1: {Hint: "h1", Criterion: "c1"},
		},
	}
	eval := &fakeEvaluator{verdicts: []gemini.Verdict{gemini.VerdictPass}}
	e, store := newTestEngine(repo, eval)
	ctx := context.Background()

	e.HandleText(ctx, "user-1", KeywordScreening)
	e.HandleText(ctx, "user-1", "2024-01-01")

	reply, err := e.HandleText(ctx, "user-1", "會")
	if err != nil {
		t.Fatalf("final answer turn: %v", err)
	}
	if want := fmt.Sprintf(completeTemplate, 1); reply != want {
		t.Errorf("reply = %q, want completion summary %q", reply, want)
	}

	got := sessionOf(store, "user-1")
	if got.Mode != session.ModeMainMenu || got.Questions != nil {
		t.Errorf("session after completion = %+v, want main_menu with discarded testing fields", got)
	}
}

// A session already sitting at cursor == len(questions) emits the final
// summary on the next inbound message and returns to the main menu.
func TestTestingSummaryOnNextMessage(t *testing.T) {
	t.Parallel()

	e, store := newTestEngine(&fakeRepo{}, &fakeEvaluator{})

	store.Do("user-1", func(s *session.Session) {
		s.StartTesting(threeQuestions())
		s.CurrentIndex = 3
		s.Score = 2
	})

	reply, err := e.HandleText(context.Background(), "user-1", "好")
	if err != nil {
		t.Fatalf("summary turn: %v", err)
	}
	if want := fmt.Sprintf(summaryTemplate, 2); reply != want {
		t.Errorf("reply = %q, want %q", reply, want)
	}
	if got := sessionOf(store, "user-1").Mode; got != session.ModeMainMenu {
		t.Errorf("mode = %s, want main_menu", got)
	}
}

func TestReturnKeywordResetsFromAnyMode(t *testing.T) {
	t.Parallel()

	modes := []struct {
		name  string
		setup func(s *session.Session)
	}{
		{name: "from screening", setup: func(s *session.Session) { s.SetMode(session.ModeScreening) }},
		{name: "from tips", setup: func(s *session.Session) { s.SetMode(session.ModeTips) }},
		{name: "from treatment", setup: func(s *session.Session) { s.SetMode(session.ModeTreatment) }},
		{name: "mid testing", setup: func(s *session.Session) {
			s.StartTesting(threeQuestions())
			s.CurrentIndex = 2
			s.Score = 1
		}},
	}

	for _, tc := range modes {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e, store := newTestEngine(&fakeRepo{}, &fakeEvaluator{})
			store.Do("user-1", func(s *session.Session) { tc.setup(s) })

			reply, err := e.HandleText(context.Background(), "user-1", " "+KeywordReturn+" ")
			if err != nil {
				t.Fatalf("return turn: %v", err)
			}
			if reply != testMsgs.Menu {
				t.Errorf("reply = %q, want menu text", reply)
			}

			got := sessionOf(store, "user-1")
			if got.Mode != session.ModeMainMenu || got.Questions != nil || got.CurrentIndex != 0 || got.Score != 0 {
				t.Errorf("session after return = %+v, want clean main_menu", got)
			}
		})
	}
}

func TestTipsAndTreatmentReEmitContent(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(&fakeRepo{}, &fakeEvaluator{})
	ctx := context.Background()

	e.HandleText(ctx, "user-1", KeywordTips)
	reply, err := e.HandleText(ctx, "user-1", "然後呢？")
	if err != nil {
		t.Fatalf("tips turn: %v", err)
	}
	if reply != testMsgs.Tips {
		t.Errorf("reply in tips mode = %q, want tips content", reply)
	}
}

func TestEvaluatorErrorAbortsTurn(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		byAge:   map[int][]questions.Question{6: threeQuestions()},
		details: threeDetails(),
	}
	eval := &fakeEvaluator{classifyErr: errors.New("oracle down")}
	e, store := newTestEngine(repo, eval)
	ctx := context.Background()

	e.HandleText(ctx, "user-1", KeywordScreening)
	e.HandleText(ctx, "user-1", "2024-01-01")

	_, err := e.HandleText(ctx, "user-1", "會")
	if err == nil {
		t.Fatal("expected error when evaluator is unavailable")
	}

	// The turn aborted before any advance: cursor and score untouched.
	got := sessionOf(store, "user-1")
	if got.CurrentIndex != 0 || got.Score != 0 || got.Mode != session.ModeTesting {
		t.Errorf("session after aborted turn = %+v, want untouched testing state", got)
	}
}

func TestRephraseFailureFallsBackToRawHint(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{
		byAge:   map[int][]questions.Question{6: threeQuestions()},
		details: threeDetails(),
	}
	eval := &fakeEvaluator{
		verdicts:    []gemini.Verdict{gemini.VerdictUnclear},
		rephraseErr: errors.New("oracle hiccup"),
	}
	e, _ := newTestEngine(repo, eval)
	ctx := context.Background()

	e.HandleText(ctx, "user-1", KeywordScreening)
	e.HandleText(ctx, "user-1", "2024-01-01")

	reply, err := e.HandleText(ctx, "user-1", "嗯")
	if err != nil {
		t.Fatalf("unclear turn: %v", err)
	}
	if want := fmt.Sprintf(unclearTemplate, "h1"); reply != want {
		t.Errorf("reply = %q, want raw-hint fallback %q", reply, want)
	}
}
