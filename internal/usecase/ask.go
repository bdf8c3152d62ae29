package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"incidentkb/internal/port"
	kberrors "incidentkb/pkg/errors"
)

// AskUseCase hands a question and the retrieval tools to the planner. The
// planner decides which tools to call; this type only logs and times it.
type AskUseCase struct {
	planner port.Planner
	tools   []port.Tool
	logger  *zap.Logger
}

func NewAskUseCase(planner port.Planner, tools []port.Tool, logger *zap.Logger) *AskUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AskUseCase{planner: planner, tools: tools, logger: logger}
}

func (u *AskUseCase) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", kberrors.New(kberrors.CodeAskQuestionInvalid, "question is required")
	}
	if u.planner == nil {
		return "", kberrors.New(kberrors.CodePlannerConfigInvalid, "no planner configured")
	}

	start := time.Now()
	answer, err := u.planner.Answer(ctx, question, u.tools)
	if err != nil {
		u.logger.Warn("planner failed", zap.String("model", u.planner.ModelName()), zap.Error(err))
		return "", err
	}

	u.logger.Info("question answered",
		zap.String("model", u.planner.ModelName()),
		zap.Duration("elapsed", time.Since(start)))
	return answer, nil
}
