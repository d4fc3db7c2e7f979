// Package engine implements the conversation state machine: menu
// navigation, the screening protocol, and answer scoring. It produces
// exactly one reply per inbound message.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/linyuchia/speechbot/internal/age"
	"github.com/linyuchia/speechbot/internal/config"
	"github.com/linyuchia/speechbot/internal/gemini"
	"github.com/linyuchia/speechbot/internal/questions"
	"github.com/linyuchia/speechbot/internal/session"
)

// Keywords recognized in message text after trimming. They are defined
// once here; the menu and welcome texts reference the same literals.
const (
	KeywordReturn    = "返回"
	KeywordScreening = "篩檢"
	KeywordTips      = "提升"
	KeywordTreatment = "我想治療"
)

const (
	questionTemplate = "第 %d 題：%s\n\n輸入「返回」可中途退出篩檢。"
	unclearTemplate  = "⚠️ 回答不明確，請再試一次。\n提示：%s"
	completeTemplate = "篩檢完成！您的總得分：%d 分。\n\n輸入「返回」回到主選單。"
	summaryTemplate  = "篩檢結束！\n您的孩子在測驗中的總得分為：%d 分。\n\n請記住，測驗結果僅供參考，若有疑問請聯絡語言治療師。\n\n輸入「返回」回到主選單。"
)

// QuestionSource selects questions by age and resolves their pass
// criterion and hint lazily, one row per turn.
type QuestionSource interface {
	ForAge(ctx context.Context, months int) []questions.Question
	Detail(ctx context.Context, position int) (questions.Detail, error)
}

// Engine drives one user turn at a time: it loads the session, dispatches
// on (mode, message), consults the question source and evaluator as
// needed, mutates the session, and returns the reply text.
type Engine struct {
	sessions  session.Store
	repo      QuestionSource
	evaluator gemini.Client
	msgs      config.MessagesConfig
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a conversation engine.
func New(sessions session.Store, repo QuestionSource, evaluator gemini.Client, msgs config.MessagesConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		sessions:  sessions,
		repo:      repo,
		evaluator: evaluator,
		msgs:      msgs,
		logger:    logger.With("component", "engine"),
		now:       time.Now,
	}
}

// HandleFollow handles a first-contact event: the session starts in the
// main menu and the welcome text is returned.
func (e *Engine) HandleFollow(ctx context.Context, userID string) string {
	e.sessions.Do(userID, func(s *session.Session) {
		s.SetMode(session.ModeMainMenu)
	})
	e.logger.InfoContext(ctx, "User followed", "user_id", userID)
	return e.msgs.Welcome
}

// HandleText handles one inbound text message and returns the single
// reply for the turn. An error means the turn aborted (evaluator or store
// failure mid-screening); the transport translates it into the generic
// failure reply.
func (e *Engine) HandleText(ctx context.Context, userID, text string) (string, error) {
	text = strings.TrimSpace(text)

	var reply string
	var err error
	e.sessions.Do(userID, func(s *session.Session) {
		reply, err = e.handleTurn(ctx, s, text)
	})
	return reply, err
}

func (e *Engine) handleTurn(ctx context.Context, s *session.Session, text string) (string, error) {
	// The return keyword works from any mode, at any cursor position.
	if text == KeywordReturn {
		s.SetMode(session.ModeMainMenu)
		return e.msgs.Menu, nil
	}

	switch s.Mode {
	case session.ModeTesting:
		return e.handleTesting(ctx, s, text)
	case session.ModeScreening:
		return e.handleScreening(ctx, s, text)
	case session.ModeTips:
		return e.msgs.Tips, nil
	case session.ModeTreatment:
		return e.msgs.Treatment, nil
	default:
		return e.handleMainMenu(s, text), nil
	}
}

func (e *Engine) handleMainMenu(s *session.Session, text string) string {
	switch text {
	case KeywordScreening:
		s.SetMode(session.ModeScreening)
		return e.msgs.BirthdatePrompt
	case KeywordTips:
		s.SetMode(session.ModeTips)
		return e.msgs.Tips
	case KeywordTreatment:
		s.SetMode(session.ModeTreatment)
		return e.msgs.Treatment
	default:
		// Unrecognized input in the main menu is not an error; the menu
		// is simply repeated.
		return e.msgs.Menu
	}
}

// handleScreening expects the child's birthdate, converts it to a month
// age, and builds the question list for the run.
func (e *Engine) handleScreening(ctx context.Context, s *session.Session, text string) (string, error) {
	birth, ok := age.ParseBirthdate(text)
	if !ok {
		return e.msgs.InvalidBirthdate, nil
	}

	months := age.Months(birth, e.now())
	qs := e.repo.ForAge(ctx, months)
	if len(qs) == 0 {
		e.logger.InfoContext(ctx, "Screening unavailable for age", "months", months)
		s.SetMode(session.ModeMainMenu)
		return e.msgs.NoQuestions, nil
	}

	s.StartTesting(qs)
	e.logger.InfoContext(ctx, "Screening started", "months", months, "question_count", len(qs))
	return fmt.Sprintf(questionTemplate, 1, qs[0].Text), nil
}

// handleTesting runs one step of the screening inner loop: classify the
// answer to the current question, then advance, retry, or finish.
func (e *Engine) handleTesting(ctx context.Context, s *session.Session, text string) (string, error) {
	if s.CurrentIndex >= len(s.Questions) {
		score := s.Score
		s.SetMode(session.ModeMainMenu)
		return fmt.Sprintf(summaryTemplate, score), nil
	}

	q := s.Questions[s.CurrentIndex]
	detail, err := e.repo.Detail(ctx, q.Position)
	if err != nil {
		return "", fmt.Errorf("failed to fetch criterion for question %d: %w", q.Position, err)
	}

	verdict, err := e.evaluator.ClassifyAnswer(ctx, q.Text, detail.Criterion, text)
	if err != nil {
		return "", fmt.Errorf("failed to classify answer for question %d: %w", q.Position, err)
	}

	switch verdict {
	case gemini.VerdictPass:
		s.Score++
	case gemini.VerdictFail:
		// No score change; still advances.
	default:
		// Unclear: re-ask the same question with a clarified hint. The
		// cursor and score stay put, so the retry loop is bounded to one
		// pending hint at a time.
		hint, err := e.evaluator.RephraseHint(ctx, detail.Hint)
		if err != nil {
			e.logger.WarnContext(ctx, "Hint rephrase failed, using raw hint", "position", q.Position, "error", err)
			hint = detail.Hint
		}
		return fmt.Sprintf(unclearTemplate, hint), nil
	}

	s.CurrentIndex++
	if s.CurrentIndex < len(s.Questions) {
		next := s.Questions[s.CurrentIndex]
		return fmt.Sprintf(questionTemplate, s.CurrentIndex+1, next.Text), nil
	}

	score := s.Score
	e.logger.InfoContext(ctx, "Screening completed", "score", score, "question_count", len(s.Questions))
	s.SetMode(session.ModeMainMenu)
	return fmt.Sprintf(completeTemplate, score), nil
}
