package runtime

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/sluice/form"
	"github.com/pithecene-io/sluice/transfer"
	"github.com/pithecene-io/sluice/types"
)

// formErrorKinds names decoder failures for outcomes and metrics.
var formErrorKinds = []struct {
	err  error
	kind string
}{
	{form.ErrMissingBoundary, "missing_boundary"},
	{form.ErrNotMultipart, "not_multipart"},
	{form.ErrMalformedBoundary, "malformed_boundary"},
	{form.ErrIncompleteHeader, "incomplete_header"},
	{form.ErrTooManyHeaderLines, "too_many_header_lines"},
	{form.ErrLineTooLong, "line_too_long"},
	{form.ErrMissingDisposition, "missing_disposition"},
	{form.ErrBadFilename, "bad_filename"},
	{form.ErrTooManyParts, "too_many_parts"},
	{form.ErrNoPart, "no_part"},
}

// ErrorKind classifies a request failure. Transfer errors use their kind
// name; decoder errors use the sentinel they wrap. Anything else is "decode".
func ErrorKind(err error) string {
	var te *transfer.Error
	if errors.As(err, &te) {
		return te.Kind.String()
	}
	for _, fk := range formErrorKinds {
		if errors.Is(err, fk.err) {
			return fk.kind
		}
	}
	return "decode"
}

// DetermineOutcome classifies a finished request.
//
// Precedence:
//  1. canceled: the request context ended the input
//  2. failed: a fatal decode, transfer or storage error
//  3. truncated: the input ended inside the body of truncatedPart
//  4. success
func DetermineOutcome(err error, canceled bool, truncatedPart, files int) *types.RequestOutcome {
	switch {
	case canceled:
		return &types.RequestOutcome{
			Status:  types.OutcomeCanceled,
			Message: "request canceled",
		}

	case err != nil:
		kind := ErrorKind(err)
		return &types.RequestOutcome{
			Status:    types.OutcomeFailed,
			Message:   err.Error(),
			ErrorKind: &kind,
		}

	case truncatedPart > 0:
		return &types.RequestOutcome{
			Status:  types.OutcomeTruncated,
			Message: fmt.Sprintf("input ended inside part %d", truncatedPart),
		}

	default:
		return &types.RequestOutcome{
			Status:  types.OutcomeSuccess,
			Message: fmt.Sprintf("%d %s uploaded", files, plural(files, "file", "files")),
		}
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
