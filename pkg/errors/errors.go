package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error, shaped
// "area.operation.reason". The reason suffix drives the Is* helpers.
type Code string

const (
	CodeEmbeddingProviderFailure   Code = "embedding.provider.failure"
	CodeEmbeddingProviderTimeout   Code = "embedding.provider.timeout"
	CodeEmbeddingDimensionMismatch Code = "embedding.dimension.mismatch"
	CodeEmbeddingConfigInvalid     Code = "embedding.config.invalid_value"

	CodeIndexDimensionMismatch Code = "index.dimension.mismatch"

	CodeIncidentNotFound  Code = "incident.get.not_found"
	CodeIncidentInvalid   Code = "incident.validate.invalid_input"
	CodeIncidentDuplicate Code = "incident.add.conflict"

	CodeJournalOpenFailure     Code = "journal.open.failure"
	CodeJournalDatabaseFailure Code = "journal.database.failure"
	CodeJournalBackendInvalid  Code = "journal.backend.invalid_value"
	CodeJournalModelMismatch   Code = "journal.embedding.mismatch"

	CodeIngestReadFailure Code = "ingest.read.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodePlannerUpstreamFailure Code = "planner.upstream.failure"
	CodePlannerStepsExceeded   Code = "planner.loop.budget_exceeded"
	CodePlannerConfigInvalid   Code = "planner.config.invalid_value"

	CodeToolNotFound Code = "tool.registry.not_found"

	CodeAskQuestionInvalid Code = "ask.question.invalid_input"

	CodeServerRequestInvalid Code = "server.request.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field is the helper for terse callsites.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldIncidentID(value string) Attr {
	return Field("incident_id", value)
}

func FieldStage(value string) Attr {
	return Field("stage", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsDimensionMismatch(err error) bool {
	return reason(CodeOf(err)) == "mismatch"
}

// IsEmbeddingFailure reports whether the embedding provider itself failed,
// as opposed to returning a vector of the wrong shape.
func IsEmbeddingFailure(err error) bool {
	code := CodeOf(err)
	return code == CodeEmbeddingProviderFailure || code == CodeEmbeddingProviderTimeout
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return (strings.Contains(string(code), "upstream") || strings.Contains(string(code), "provider")) &&
		reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err), IsDimensionMismatch(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
