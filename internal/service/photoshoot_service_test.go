package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthaus/photoshoot-bot/internal/artifact"
	"github.com/arthaus/photoshoot-bot/internal/config"
	"github.com/arthaus/photoshoot-bot/internal/models"
	"github.com/arthaus/photoshoot-bot/internal/provider"
)

type fakeLedger struct {
	outcome models.DebitOutcome
	calls   int
}

func (f *fakeLedger) TryDebit(ctx context.Context, telegramID int64, priceUnits int) (models.DebitOutcome, error) {
	f.calls++
	return f.outcome, nil
}

type fakeAudit struct {
	entries []models.PhotoshootLog
}

func (f *fakeAudit) Log(ctx context.Context, entry *models.PhotoshootLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAudit) ReportSince(ctx context.Context, since time.Time) (*models.PhotoshootReport, error) {
	report := &models.PhotoshootReport{}
	for _, e := range f.entries {
		report.Total++
		switch e.Status {
		case models.PhotoshootSuccess:
			report.Success++
		case models.PhotoshootFailed:
			report.Failed++
		}
		report.SumCostUnits += e.CostUnits
		report.SumCostCredits += e.CostCredits
	}
	return report, nil
}

type fakeGenerator struct {
	img        *provider.Image
	err        error
	calls      int
	lastImages int
	lastPrompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, req provider.GenerateRequest) (*provider.Image, error) {
	f.calls++
	f.lastImages = len(req.Images)
	f.lastPrompt = req.Prompt
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

type fakeSaver struct {
	artifact *artifact.Artifact
	err      error
}

func (f *fakeSaver) Save(sourceKey string, sourceCount int, img *provider.Image) (*artifact.Artifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.artifact, nil
}

func okDownload(ctx context.Context, fileID string) ([]byte, error) {
	return []byte("img:" + fileID), nil
}

func photoshootTestConfig() config.Config {
	return config.Config{
		PhotoshootPriceUnits: 350,
		ProviderModel:        "gemini-3-pro-image-preview",
	}
}

func newTestPhotoshootService(ledger *fakeLedger, audit *fakeAudit, gen *fakeGenerator, saver *fakeSaver, download DownloadFunc) *PhotoshootService {
	return NewPhotoshootService(photoshootTestConfig(), discardLogger(), ledger, audit, gen, saver, download)
}

func TestGenerateHappyPath(t *testing.T) {
	ledger := &fakeLedger{outcome: models.DebitOutcome{OK: true, CostCredits: 1}}
	audit := &fakeAudit{}
	gen := &fakeGenerator{img: &provider.Image{Bytes: []byte{1, 2, 3}, Mime: "image/png"}}
	saver := &fakeSaver{artifact: &artifact.Artifact{Path: "/tmp/out.png", Mime: "image/png"}}
	svc := newTestPhotoshootService(ledger, audit, gen, saver, okDownload)

	result, err := svc.Generate(context.Background(), 42, StyleInfo{Title: "Нуар", Prompt: "noir prompt"}, []string{"f1", "f2"})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out.png", result.Artifact.Path)
	assert.Equal(t, models.DebitOutcome{OK: true, CostCredits: 1}, result.Outcome)
	assert.Equal(t, 2, gen.lastImages)
	assert.Equal(t, "noir prompt", gen.lastPrompt)

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, models.PhotoshootSuccess, entry.Status)
	assert.Equal(t, int64(42), entry.TelegramID)
	assert.Equal(t, "Нуар", entry.StyleTitle)
	assert.Equal(t, 1, entry.CostCredits)
	assert.Equal(t, 0, entry.CostUnits)
	assert.Empty(t, entry.ErrorMessage)
}

func TestGenerateNoSources(t *testing.T) {
	ledger := &fakeLedger{outcome: models.DebitOutcome{OK: true, CostCredits: 1}}
	svc := newTestPhotoshootService(ledger, &fakeAudit{}, &fakeGenerator{}, &fakeSaver{}, okDownload)

	_, err := svc.Generate(context.Background(), 42, StyleInfo{Title: "Нуар"}, nil)
	assert.ErrorIs(t, err, ErrNoSourceImages)
	assert.Equal(t, 0, ledger.calls, "nothing charged when there is nothing to render")
}

func TestGenerateTruncatesSources(t *testing.T) {
	ledger := &fakeLedger{outcome: models.DebitOutcome{OK: true, CostCredits: 1}}
	gen := &fakeGenerator{img: &provider.Image{Bytes: []byte{1}, Mime: "image/jpeg"}}
	saver := &fakeSaver{artifact: &artifact.Artifact{Path: "/tmp/out.jpg", Mime: "image/jpeg"}}
	svc := newTestPhotoshootService(ledger, &fakeAudit{}, gen, saver, okDownload)

	_, err := svc.Generate(context.Background(), 42, StyleInfo{Title: "Нуар"}, []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Equal(t, 3, gen.lastImages)
}

func TestGenerateInsufficientFunds(t *testing.T) {
	ledger := &fakeLedger{outcome: models.DebitOutcome{}}
	audit := &fakeAudit{}
	gen := &fakeGenerator{}
	svc := newTestPhotoshootService(ledger, audit, gen, &fakeSaver{}, okDownload)

	_, err := svc.Generate(context.Background(), 42, StyleInfo{Title: "Нуар"}, []string{"f1"})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 0, gen.calls, "provider must not be called without a debit")
	assert.Empty(t, audit.entries, "declined attempts are not logged")
}

func TestGenerateProviderFailureLogsChargedCost(t *testing.T) {
	ledger := &fakeLedger{outcome: models.DebitOutcome{OK: true, CostUnits: 350}}
	audit := &fakeAudit{}
	gen := &fakeGenerator{err: &provider.Error{Kind: provider.KindAuthorization, Status: 403, Message: "provider rejected the request (key, quota or access)"}}
	svc := newTestPhotoshootService(ledger, audit, gen, &fakeSaver{}, okDownload)

	_, err := svc.Generate(context.Background(), 42, StyleInfo{Title: "Нуар"}, []string{"f1"})
	require.Error(t, err)
	assert.Equal(t, provider.KindAuthorization, provider.KindOf(err))

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	assert.Equal(t, models.PhotoshootFailed, entry.Status)
	assert.Equal(t, 350, entry.CostUnits, "failed attempts still record what was charged")
	assert.NotEmpty(t, entry.ErrorMessage)
}

func TestGenerateErrorMessageTruncatedOnRuneBoundary(t *testing.T) {
	ledger := &fakeLedger{outcome: models.DebitOutcome{OK: true, CostCredits: 1}}
	audit := &fakeAudit{}
	// 511 single-byte chars, then Cyrillic: the byte limit falls inside the
	// first two-byte rune.
	long := strings.Repeat("a", 511) + strings.Repeat("и", 20)
	gen := &fakeGenerator{err: &provider.Error{Kind: provider.KindUnavailable, Message: long}}
	svc := newTestPhotoshootService(ledger, audit, gen, &fakeSaver{}, okDownload)

	_, err := svc.Generate(context.Background(), 42, StyleInfo{Title: "Нуар"}, []string{"f1"})
	require.Error(t, err)

	require.Len(t, audit.entries, 1)
	msg := audit.entries[0].ErrorMessage
	assert.LessOrEqual(t, len(msg), 512)
	assert.True(t, utf8.ValidString(msg), "audit message must stay valid UTF-8")
	assert.Equal(t, strings.Repeat("a", 511), msg)
}

func TestTruncateMessage(t *testing.T) {
	assert.Equal(t, "short", truncateMessage("short", 512))
	assert.Equal(t, "аб", truncateMessage("абв", 5), "cut falls mid-rune and backs up")
	assert.Equal(t, "абв", truncateMessage("абв", 6))
	assert.True(t, utf8.ValidString(truncateMessage(strings.Repeat("ё", 300), 512)))
}

func TestGenerateDownloadFailureLogsFailed(t *testing.T) {
	ledger := &fakeLedger{outcome: models.DebitOutcome{OK: true, CostCredits: 1}}
	audit := &fakeAudit{}
	gen := &fakeGenerator{}
	failing := func(ctx context.Context, fileID string) ([]byte, error) {
		return nil, fmt.Errorf("file gone")
	}
	svc := newTestPhotoshootService(ledger, audit, gen, &fakeSaver{}, failing)

	_, err := svc.Generate(context.Background(), 42, StyleInfo{Title: "Нуар"}, []string{"f1"})
	require.Error(t, err)
	assert.Equal(t, provider.KindUnavailable, provider.KindOf(err))
	assert.Equal(t, 0, gen.calls)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.PhotoshootFailed, audit.entries[0].Status)
	assert.Equal(t, 1, audit.entries[0].CostCredits)
}

func TestGenerateFallbackPromptWhenStyleHasNone(t *testing.T) {
	ledger := &fakeLedger{outcome: models.DebitOutcome{OK: true, CostCredits: 1}}
	gen := &fakeGenerator{img: &provider.Image{Bytes: []byte{1}, Mime: "image/jpeg"}}
	saver := &fakeSaver{artifact: &artifact.Artifact{Path: "/tmp/out.jpg", Mime: "image/jpeg"}}
	svc := newTestPhotoshootService(ledger, &fakeAudit{}, gen, saver, okDownload)

	_, err := svc.Generate(context.Background(), 42, StyleInfo{Title: "Гранж"}, []string{"f1"})
	require.NoError(t, err)
	assert.Contains(t, gen.lastPrompt, "Гранж")
}

func TestPhotoshootReport(t *testing.T) {
	ledger := &fakeLedger{outcome: models.DebitOutcome{OK: true, CostUnits: 350}}
	audit := &fakeAudit{}
	gen := &fakeGenerator{img: &provider.Image{Bytes: []byte{1}, Mime: "image/jpeg"}}
	saver := &fakeSaver{artifact: &artifact.Artifact{Path: "/tmp/out.jpg", Mime: "image/jpeg"}}
	svc := newTestPhotoshootService(ledger, audit, gen, saver, okDownload)

	_, err := svc.Generate(context.Background(), 42, StyleInfo{Title: "Нуар"}, []string{"f1"})
	require.NoError(t, err)

	report, err := svc.Report(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, report.Days)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Success)
	assert.Equal(t, 350, report.SumCostUnits)
}
