package lode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/sluice/types"
)

// ManifestDataset is the Lode dataset ID of the upload manifest.
const ManifestDataset = "sluice"

// Record kind discriminator values.
const (
	RecordKindUpload  = "upload"
	RecordKindRequest = "request"
)

// Partition keys of the manifest Hive layout.
const (
	partitionDay       = "day"
	partitionRequestID = "request_id"
)

// DeriveDay computes the partition day of t: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Manifest records upload and request summaries in a Lode dataset
// partitioned by day and request id. Each call writes one snapshot.
type Manifest struct {
	ds  lode.Dataset
	now func() time.Time
	mu  sync.Mutex
}

// NewManifest opens the manifest dataset on the store built by factory.
func NewManifest(factory lode.StoreFactory) (*Manifest, error) {
	ds, err := lode.NewDataset(
		lode.DatasetID(ManifestDataset),
		factory,
		lode.WithHiveLayout(partitionDay, partitionRequestID),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, Wrap(err, "init", ManifestDataset)
	}
	return &Manifest{ds: ds, now: time.Now}, nil
}

// NewManifestFS opens the manifest dataset rooted at a local directory.
func NewManifestFS(root string) (*Manifest, error) {
	return NewManifest(lode.NewFSFactory(root))
}

// RecordUpload writes rec to the manifest.
func (m *Manifest) RecordUpload(ctx context.Context, rec *types.UploadRecord) error {
	record, err := toRecordMap(rec)
	if err != nil {
		return err
	}
	record["record_kind"] = RecordKindUpload
	record[partitionDay] = m.day(rec.Ts)
	return m.write(ctx, record, rec.StoredName)
}

// RecordRequest writes a request summary to the manifest.
func (m *Manifest) RecordRequest(ctx context.Context, sum *types.RequestSummary) error {
	record, err := toRecordMap(sum)
	if err != nil {
		return err
	}
	record["record_kind"] = RecordKindRequest
	record[partitionDay] = m.day(sum.Ts)
	return m.write(ctx, record, sum.RequestID)
}

func (m *Manifest) write(ctx context.Context, record map[string]any, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.ds.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return Wrap(err, "write", path)
	}
	return nil
}

func (m *Manifest) day(ts string) string {
	if t, err := time.Parse(types.TimestampFormat, ts); err == nil {
		return DeriveDay(t)
	}
	return DeriveDay(m.now())
}

// Filter narrows manifest queries. Empty fields match everything.
type Filter struct {
	Day       string
	RequestID string
}

// Uploads returns the upload records matching f, oldest first.
func (m *Manifest) Uploads(ctx context.Context, f Filter) ([]types.UploadRecord, error) {
	var out []types.UploadRecord
	err := m.scan(ctx, f, RecordKindUpload, func(record map[string]any) error {
		var rec types.UploadRecord
		if err := fromRecordMap(record, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// Requests returns the request summaries matching f, oldest first.
func (m *Manifest) Requests(ctx context.Context, f Filter) ([]types.RequestSummary, error) {
	var out []types.RequestSummary
	err := m.scan(ctx, f, RecordKindRequest, func(record map[string]any) error {
		var sum types.RequestSummary
		if err := fromRecordMap(record, &sum); err != nil {
			return err
		}
		out = append(out, sum)
		return nil
	})
	return out, err
}

// scan visits every record of kind in snapshots matching f.
// Manifest paths are a coarse pre-filter; record fields are authoritative.
// A record repeated across snapshots is visited once.
func (m *Manifest) scan(ctx context.Context, f Filter, kind string, visit func(map[string]any) error) error {
	snapshots, err := m.ds.Snapshots(ctx)
	if err != nil {
		return Wrap(err, "read", ManifestDataset+"/snapshots")
	}

	seen := make(map[string]struct{})

	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, partitionDay, f.Day) ||
			!snapshotMatchesFilter(snap, partitionRequestID, f.RequestID) {
			continue
		}
		data, err := m.ds.Read(ctx, snap.ID)
		if err != nil {
			return Wrap(err, "read", fmt.Sprintf("%s/snapshot/%s", ManifestDataset, snap.ID))
		}
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != kind {
				continue
			}
			if f.Day != "" && toString(record[partitionDay]) != f.Day {
				continue
			}
			if f.RequestID != "" && toString(record[partitionRequestID]) != f.RequestID {
				continue
			}
			key := recordKey(record)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if err := visit(record); err != nil {
				return err
			}
		}
	}
	return nil
}

// snapshotMatchesFilter checks if any file of snap sits in the key=value
// partition.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks for an exact key=value path segment, so
// request_id=a does not match request_id=ab.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for part := range strings.SplitSeq(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// toRecordMap converts v to the map form Lode's HiveLayout requires.
func toRecordMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode manifest record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode manifest record: %w", err)
	}
	return m, nil
}

func fromRecordMap(record map[string]any, v any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("decode manifest record: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode manifest record: %w", err)
	}
	return nil
}

// recordKey identifies a record: one upload per request part, one summary
// per request.
func recordKey(record map[string]any) string {
	return fmt.Sprintf("%v/%v/%v/%v", record["record_kind"], record[partitionRequestID],
		record["part_index"], record["stored_name"])
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
