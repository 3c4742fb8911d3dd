package form

import (
	"errors"
	"mime"
	"strings"
)

// ExtractQuotedValue finds the first occurrence of key in line and returns
// the quoted value that immediately follows it as key="value".
//
// It reports false if key is absent, if the two bytes after key are not =",
// if there is no closing quote, or if the value is longer than max bytes.
// A max of zero or less disables the length check. This is a narrow pattern
// match, not a MIME parameter parser: quoted-pair escapes are not decoded.
func ExtractQuotedValue(line, key string, max int) (string, bool) {
	i := strings.Index(line, key)
	if i < 0 {
		return "", false
	}
	rest := line[i+len(key):]
	if len(rest) < 2 || rest[0] != '=' || rest[1] != '"' {
		return "", false
	}
	rest = rest[2:]
	j := strings.IndexByte(rest, '"')
	if j < 0 {
		return "", false
	}
	if max > 0 && j > max {
		return "", false
	}
	return rest[:j], true
}

// paramValue returns the quoted value of a Content-Disposition parameter.
// Unlike a bare ExtractQuotedValue it only matches param as a whole token,
// so "name" does not match inside "filename".
func paramValue(line, param string, max int) (value string, present, ok bool) {
	for off := 0; off < len(line); {
		i := strings.Index(line[off:], param)
		if i < 0 {
			break
		}
		i += off
		off = i + len(param)
		if i == 0 || !isParamSep(line[i-1]) {
			continue
		}
		if off >= len(line) || line[off] != '=' {
			continue
		}
		value, ok = ExtractQuotedValue(line[i:], param, max)
		return value, true, ok
	}
	return "", false, false
}

func isParamSep(c byte) bool {
	return c == ';' || c == ' ' || c == '\t'
}

// splitHeader splits "Name: value" into its trimmed halves.
func splitHeader(line string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(name), strings.TrimSpace(value), true
}

// applyHeader records one header line on p. It returns ErrBadFilename when a
// filename parameter is present but unreadable.
func applyHeader(p *Part, line string, max int) error {
	name, value, ok := splitHeader(line)
	if !ok {
		return nil
	}
	switch {
	case strings.EqualFold(name, "Content-Disposition"):
		typ, _, _ := strings.Cut(value, ";")
		p.Disposition = strings.ToLower(strings.TrimSpace(typ))
		if v, present, ok := paramValue(value, "name", max); present && ok {
			p.Name = v
		}
		v, present, ok := paramValue(value, "filename", max)
		if present {
			if !ok {
				return ErrBadFilename
			}
			p.Filename = v
			p.HasFilename = true
		}
	case strings.EqualFold(name, "Content-Type"):
		p.ContentType = value
	}
	return nil
}

// BoundaryFromContentType returns the boundary parameter of a
// multipart/form-data Content-Type header value.
func BoundaryFromContentType(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", &Error{Err: errors.Join(ErrNotMultipart, err)}
	}
	if mediaType != "multipart/form-data" {
		return "", &Error{Err: ErrNotMultipart}
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", &Error{Err: ErrMissingBoundary}
	}
	return boundary, nil
}
