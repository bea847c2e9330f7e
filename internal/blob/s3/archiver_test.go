package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/cryptowallet/internal/domain"
)

type memWriter struct {
	path        string
	contentType string
	body        []byte
	err         error
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if w.err != nil {
		return w.err
	}
	w.path, w.contentType = path, contentType
	var err error
	w.body, err = io.ReadAll(data)
	return err
}

type memHistory []domain.PriceHistoryRecord

func (h memHistory) ListBetween(_ context.Context, after, before time.Time) ([]domain.PriceHistoryRecord, error) {
	var out []domain.PriceHistoryRecord
	for _, r := range h {
		if r.Timestamp.Before(before) && !r.Timestamp.Before(after) {
			out = append(out, r)
		}
	}
	return out, nil
}

type memAudit struct {
	events  []string
	details []map[string]any
	listErr error
}

func (a *memAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.events = append(a.events, event)
	a.details = append(a.details, detail)
	return nil
}

func (a *memAudit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if a.listErr != nil {
		return nil, a.listErr
	}
	var out []domain.AuditEntry
	for i := len(a.events) - 1; i >= 0; i-- {
		if opts.Event != "" && a.events[i] != opts.Event {
			continue
		}
		out = append(out, domain.AuditEntry{ID: int64(i + 1), Event: a.events[i], Detail: a.details[i]})
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func TestArchivePriceHistory(t *testing.T) {
	cutoff := time.Date(2024, 4, 1, 3, 0, 0, 0, time.UTC)
	history := memHistory{
		{ID: 1, Symbol: "BTC", Price: decimal.NewFromInt(60000), Timestamp: cutoff.Add(-48 * time.Hour)},
		{ID: 2, Symbol: "ETH", Price: decimal.NewFromInt(3000), Timestamp: cutoff.Add(-time.Hour)},
		{ID: 3, Symbol: "BTC", Price: decimal.NewFromInt(61000), Timestamp: cutoff.Add(time.Hour)},
	}
	w := &memWriter{}
	audit := &memAudit{}

	n, err := NewPriceHistoryArchive(w, history, audit).ArchivePriceHistory(context.Background(), cutoff)
	require.NoError(t, err)

	assert.Equal(t, int64(2), n)
	assert.Equal(t, "archive/price_history/2024-04-01.jsonl", w.path)
	assert.Equal(t, "application/x-ndjson", w.contentType)
	lines := strings.Split(strings.TrimSpace(string(w.body)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"symbol":"BTC"`)
	assert.Contains(t, lines[1], `"symbol":"ETH"`)

	require.Equal(t, []string{"archive.price_history"}, audit.events)
	assert.Equal(t, int64(2), audit.details[0]["count"])
}

func TestArchivePriceHistory_ExportsOnlySincePreviousCutoff(t *testing.T) {
	first := time.Date(2024, 4, 1, 3, 0, 0, 0, time.UTC)
	second := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	history := memHistory{
		{ID: 1, Symbol: "BTC", Price: decimal.NewFromInt(60000), Timestamp: first.Add(-time.Hour)},
		{ID: 2, Symbol: "ETH", Price: decimal.NewFromInt(3000), Timestamp: first},
		{ID: 3, Symbol: "ADA", Price: decimal.NewFromInt(1), Timestamp: second.Add(-time.Hour)},
		{ID: 4, Symbol: "BTC", Price: decimal.NewFromInt(61000), Timestamp: second.Add(time.Hour)},
	}
	w := &memWriter{}
	audit := &memAudit{}
	archive := NewPriceHistoryArchive(w, history, audit)

	n, err := archive.ArchivePriceHistory(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = archive.ArchivePriceHistory(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "archive/price_history/2024-05-01.jsonl", w.path)
	lines := strings.Split(strings.TrimSpace(string(w.body)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"symbol":"ETH"`)
	assert.Contains(t, lines[1], `"symbol":"ADA"`)
	assert.Equal(t, first.Format(time.RFC3339Nano), audit.details[1]["after"])

	// Same cutoff again: nothing new to export.
	n, err = archive.ArchivePriceHistory(context.Background(), second)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, audit.events, 2)
}

func TestArchivePriceHistory_WatermarkError(t *testing.T) {
	w := &memWriter{}
	audit := &memAudit{listErr: errors.New("db down")}

	_, err := NewPriceHistoryArchive(w, memHistory{{Symbol: "BTC"}}, audit).
		ArchivePriceHistory(context.Background(), time.Now())
	assert.ErrorContains(t, err, "db down")
	assert.Empty(t, w.path)
}

func TestArchivePriceHistory_NothingToDo(t *testing.T) {
	w := &memWriter{}
	audit := &memAudit{}

	n, err := NewPriceHistoryArchive(w, memHistory{}, audit).ArchivePriceHistory(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.path)
	assert.Empty(t, audit.events)
}

func TestArchivePriceHistory_UploadError(t *testing.T) {
	history := memHistory{{Symbol: "BTC", Timestamp: time.Unix(0, 0)}}
	audit := &memAudit{}

	_, err := NewPriceHistoryArchive(&memWriter{err: errors.New("denied")}, history, audit).
		ArchivePriceHistory(context.Background(), time.Now())
	assert.ErrorContains(t, err, "denied")
	assert.Empty(t, audit.events)
}

type fakeUploadAPI struct {
	manager.UploadAPIClient
	puts []*s3.PutObjectInput
}

func (f *fakeUploadAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func TestWriterPut_SmallPayloadUsesPutObject(t *testing.T) {
	api := &fakeUploadAPI{}
	w := &Writer{api: api, bucket: "archive"}

	err := w.Put(context.Background(), "a/b.jsonl", bytes.NewReader([]byte("{}\n")), "application/x-ndjson")
	require.NoError(t, err)
	require.Len(t, api.puts, 1)
	assert.Equal(t, "archive", aws.ToString(api.puts[0].Bucket))
	assert.Equal(t, "a/b.jsonl", aws.ToString(api.puts[0].Key))
	assert.Equal(t, "application/x-ndjson", aws.ToString(api.puts[0].ContentType))
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("localhost:9000", false))
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("s3.example.com", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("http://minio:9000", true))
}

func TestNew_RequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	assert.Error(t, err)
	_, err = New(context.Background(), ClientConfig{Bucket: "b"})
	assert.Error(t, err)
}
