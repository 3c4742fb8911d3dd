package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pithecene-io/sluice/journal"
	"github.com/pithecene-io/sluice/lode"
	"github.com/pithecene-io/sluice/types"
)

// Source abstracts read-only access to recorded requests.
// Implementations read the upload journal or the Lode manifest dataset.
//
// All methods are read-only and must not mutate the underlying records.
type Source interface {
	Uploads(ctx context.Context, f lode.Filter) ([]types.UploadRecord, error)
	Requests(ctx context.Context, f lode.Filter) ([]types.RequestSummary, error)
}

// JournalSource reads a msgpack journal file. The file is decoded once and
// cached.
type JournalSource struct {
	Path string

	once    sync.Once
	entries []journal.Entry
	err     error
	warning string
}

// NewJournalSource returns a source reading the journal at path.
func NewJournalSource(path string) *JournalSource {
	return &JournalSource{Path: path}
}

// Warning describes a recoverable problem found while reading, such as a
// partial final frame left by an interrupted writer.
func (s *JournalSource) Warning() string {
	_, _ = s.load()
	return s.warning
}

func (s *JournalSource) load() ([]journal.Entry, error) {
	s.once.Do(func() {
		entries, err := journal.ReadFile(s.Path)
		var frameErr *journal.FrameError
		if errors.As(err, &frameErr) && frameErr.Kind == journal.FrameErrorPartial {
			s.warning = fmt.Sprintf("journal %s ends with a partial entry; %d entries read", s.Path, len(entries))
			err = nil
		}
		s.entries, s.err = entries, err
	})
	return s.entries, s.err
}

// Uploads returns the upload records matching f in journal order.
func (s *JournalSource) Uploads(_ context.Context, f lode.Filter) ([]types.UploadRecord, error) {
	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []types.UploadRecord
	for _, rec := range journal.Uploads(entries) {
		if matches(f, rec.RequestID, rec.Ts) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Requests returns the request summaries matching f in journal order.
func (s *JournalSource) Requests(_ context.Context, f lode.Filter) ([]types.RequestSummary, error) {
	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []types.RequestSummary
	for _, sum := range journal.Requests(entries) {
		if matches(f, sum.RequestID, sum.Ts) {
			out = append(out, sum)
		}
	}
	return out, nil
}

// matches applies f to one record. A record whose timestamp does not parse
// never matches a day filter.
func matches(f lode.Filter, requestID, ts string) bool {
	if f.RequestID != "" && f.RequestID != requestID {
		return false
	}
	if f.Day == "" {
		return true
	}
	t, err := parseTs(ts)
	if err != nil {
		return false
	}
	return lode.DeriveDay(t) == f.Day
}

var (
	_ Source = (*JournalSource)(nil)
	_ Source = (*lode.Manifest)(nil)
)
