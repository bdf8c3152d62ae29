package port

import "context"

// Tool is one named operation handed to the planning service.
type Tool struct {
	Name        string
	Description string
	Call        func(ctx context.Context, input string) (string, error)
}

// Planner picks and sequences tool calls to answer a question.
type Planner interface {
	Answer(ctx context.Context, question string, tools []Tool) (string, error)

	ModelName() string
}
