package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDecode            = errors.New("decode error")
	ErrFeatureExtraction = errors.New("feature extraction error")
	ErrModelInit         = errors.New("model init error")
	ErrModelPrediction   = errors.New("model prediction error")
	ErrTimeout           = errors.New("timeout")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrDisposed          = errors.New("record disposed")
	ErrNoAudio           = errors.New("no audio files")
)

// ServiceError carries the stage context attached by Wrap.
type ServiceError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

func (e *ServiceError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Marker != nil {
		errs = append(errs, e.Marker)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Wrap builds an error that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrValidation
	}
	return &ServiceError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the structured view of an error used by failure logging.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details extracts structured context from err. Errors that did not pass
// through Wrap are classified by marker only.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: Kind(err), Hint: hintFor(err)}
	var svc *ServiceError
	if errors.As(err, &svc) {
		details.Stage = svc.Stage
		details.Operation = svc.Operation
		details.Message = svc.Message
		details.Cause = svc.Cause
	}
	if details.Message == "" {
		details.Message = err.Error()
	}
	return details
}

// Kind returns a short classification label for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrFeatureExtraction):
		return "feature_extraction"
	case errors.Is(err, ErrModelInit):
		return "model_init"
	case errors.Is(err, ErrModelPrediction):
		return "model_prediction"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrDisposed):
		return "disposed"
	case errors.Is(err, ErrNoAudio):
		return "no_audio"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "unknown"
	}
}

// UserMessage returns the message shown to users for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var svc *ServiceError
	if errors.As(err, &svc) && svc.Message != "" {
		return svc.Message
	}
	return err.Error()
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, ErrDecode):
		return "try a different file or format"
	case errors.Is(err, ErrFeatureExtraction):
		return "check extraction settings in [extraction]"
	case errors.Is(err, ErrModelInit):
		return "verify models_dir and the onnxruntime library path"
	case errors.Is(err, ErrModelPrediction):
		return "check model compatibility with the feature bundle shape"
	case errors.Is(err, ErrTimeout):
		return "file may be too large or models failed to load"
	case errors.Is(err, ErrConfiguration):
		return "check the configuration file"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
