// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
// Codes follow "area.operation.reason"; the reason drives classification.
type Code string

const (
	CodeTableNameInvalid   Code = "gallery.table.invalid_input"
	CodeTableNotFound      Code = "gallery.table.not_found"
	CodeEntityNotFound     Code = "gallery.entity.not_found"
	CodeEntityIDInvalid    Code = "gallery.entity.invalid_input"
	CodePageInvalid        Code = "gallery.page.invalid_input"
	CodeTopKInvalid        Code = "gallery.search.invalid_input"
	CodeSourceInvalid      Code = "gallery.source.invalid_input"
	CodeLoadSourceInvalid  Code = "gallery.load.invalid_input"
	CodeMediaPathForbidden Code = "gallery.media.forbidden"

	CodeStoreVectorFailure      Code = "store.vector.failure"
	CodeStoreMetadataFailure    Code = "store.metadata.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreInvalidInput       Code = "store.invalid_input"

	CodeIOReadFailure  Code = "io.read.failure"
	CodeIOWriteFailure Code = "io.write.failure"
	CodeIOFetchFailure Code = "io.fetch.upstream_failure"

	CodeEmbedImageFailure      Code = "embed.image.failure"
	CodeEmbedDimensionMismatch Code = "embed.dimension.invalid"
	CodeEmbedUpstreamFailure   Code = "embed.request.upstream_failure"
	CodeEmbedProviderInvalid   Code = "embed.provider.invalid"

	CodeProgressFailure Code = "progress.store.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerRateLimited     Code = "server.rate.exceeded"

	CodeCLIServerNotRunning Code = "cli.server.not_running"
	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLIResponseInvalid  Code = "cli.response.invalid"
	CodeCLISetupFailure     Code = "cli.setup.failure"
	CodeCLIInputInvalid     Code = "cli.input.invalid"

	CodeSecretInvalidInput   Code = "secret.input.invalid"
	CodeSecretNotFound       Code = "secret.lookup.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldTable(value string) Attr {
	return Field("table", value)
}

func FieldID(value string) Attr {
	return Field("id", value)
}

func FieldPath(value string) Attr {
	return Field("path", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain, keeping its code.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
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

// IsNotFound reports a NotFoundError: the table or entity is absent.
func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

// IsInvalidInput reports a ValidationError.
func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

// IsStoreFailure reports a StoreError raised by the vector index or the metadata store.
func IsStoreFailure(err error) bool {
	return area(CodeOf(err)) == "store" && !IsInvalidInput(err)
}

// IsIOFailure reports an IOError: file read/write or remote fetch failure.
func IsIOFailure(err error) bool {
	return area(CodeOf(err)) == "io"
}

func IsForbidden(err error) bool {
	r := reason(CodeOf(err))
	return r == "forbidden" || r == "denied"
}

func IsRateLimited(err error) bool {
	return reason(CodeOf(err)) == "exceeded"
}

func IsUpstreamFailure(err error) bool {
	return reason(CodeOf(err)) == "upstream_failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsForbidden(err):
		return http.StatusForbidden
	case IsRateLimited(err):
		return http.StatusTooManyRequests
	case IsUpstreamFailure(err), IsStoreFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Join combines errors under a single code. Nil errors are dropped; the
// result is nil when every input is nil.
func Join(code Code, errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(code).Wrap(joined)
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

func area(code Code) string {
	raw := string(code)
	if idx := strings.Index(raw, "."); idx > 0 {
		return raw[:idx]
	}
	return raw
}
