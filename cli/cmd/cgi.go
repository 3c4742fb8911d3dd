package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/sluice/form"
	"github.com/pithecene-io/sluice/iox"
)

// cgiConfigError is the response body when the server side is misconfigured.
// Details go to the log, not to the client.
const cgiConfigError = "upload service is not configured correctly"

// CGICommand returns the cgi command.
// It handles one upload request per the CGI/1.1 environment: the body is
// read from stdin and a single-line text/plain response is written to stdout.
// The process exits 0 once the response is written; the outcome is in the
// response and the log.
func CGICommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
	}
	flags = append(flags, StorageFlags()...)
	flags = append(flags, RecorderFlags()...)

	return &cli.Command{
		Name:   "cgi",
		Usage:  "Handle one upload request as a CGI program",
		Flags:  flags,
		Action: cgiAction,
	}
}

// cgiRequest is the part of the CGI environment sluice reads.
type cgiRequest struct {
	method          string
	contentType     string
	contentLength   int64
	remoteAddr      string
	contentEncoding string
}

// readCGIEnv reads the request variables. CONTENT_LENGTH is -1 when absent.
func readCGIEnv(getenv func(string) string) (cgiRequest, error) {
	req := cgiRequest{
		method:          getenv("REQUEST_METHOD"),
		contentType:     getenv("CONTENT_TYPE"),
		contentLength:   -1,
		remoteAddr:      getenv("REMOTE_ADDR"),
		contentEncoding: getenv("HTTP_CONTENT_ENCODING"),
	}
	if s := strings.TrimSpace(getenv("CONTENT_LENGTH")); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return req, fmt.Errorf("invalid CONTENT_LENGTH %q", s)
		}
		req.contentLength = n
	}
	return req, nil
}

func cgiAction(c *cli.Context) error {
	out := c.App.Writer
	stderr := c.App.ErrWriter
	reject := func(msg string) error {
		cliLogger(stderr).Errorf("request rejected: %s", msg)
		writeCGIResponse(out, msg)
		return nil
	}

	req, err := readCGIEnv(os.Getenv)
	if err != nil {
		return reject(err.Error())
	}
	if req.method != "" && !strings.EqualFold(req.method, "POST") {
		return reject(fmt.Sprintf("method %s not allowed, use POST", req.method))
	}

	// An absent CONTENT_TYPE leaves the boundary to be read from the body.
	var boundary string
	if req.contentType != "" {
		boundary, err = form.BoundaryFromContentType(req.contentType)
		if err != nil {
			return reject(err.Error())
		}
	}

	cfg, err := loadConfig(c)
	if err != nil {
		cliLogger(stderr).Errorf("invalid config: %v", err)
		writeCGIResponse(out, cgiConfigError)
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, err := buildPipeline(ctx, cfg, stderr)
	if err != nil {
		cliLogger(stderr).Errorf("pipeline setup failed: %v", err)
		writeCGIResponse(out, cgiConfigError)
		return nil
	}
	defer iox.DiscardErr(p.Close)

	meta := newRequestMeta("", req.remoteAddr)
	meta.ContentLength = req.contentLength

	// The server may keep stdin open past the body; never read beyond it.
	var src io.Reader = c.App.Reader
	if req.contentLength >= 0 {
		src = io.LimitReader(src, req.contentLength)
	}

	result, err := p.execute(ctx, &meta, src, boundary, req.contentEncoding)
	if err != nil {
		return reject(err.Error())
	}

	writeCGIResponse(out, result.Outcome.Message)
	return nil
}

// writeCGIResponse writes the CGI header block and a single message line.
func writeCGIResponse(w io.Writer, msg string) {
	_, _ = fmt.Fprintf(w, "Content-type: text/plain\n\n%s\n", msg)
}
