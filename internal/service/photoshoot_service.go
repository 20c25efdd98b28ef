package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arthaus/photoshoot-bot/internal/artifact"
	"github.com/arthaus/photoshoot-bot/internal/config"
	"github.com/arthaus/photoshoot-bot/internal/metrics"
	"github.com/arthaus/photoshoot-bot/internal/models"
	"github.com/arthaus/photoshoot-bot/internal/provider"
)

var (
	ErrInsufficientFunds = errors.New("insufficient credits or balance")
	ErrNoSourceImages    = errors.New("no source images supplied")
)

// maxSourceImages bounds the consistency references sent to the provider;
// extra photos are dropped, not rejected.
const maxSourceImages = 3

const maxErrorMessageLength = 512

// DownloadFunc fetches the raw bytes of one source image from the chat
// platform's file storage.
type DownloadFunc func(ctx context.Context, fileID string) ([]byte, error)

// Ledger is the debit gate every generation attempt passes through.
type Ledger interface {
	TryDebit(ctx context.Context, telegramID int64, priceUnits int) (models.DebitOutcome, error)
}

type AuditLog interface {
	Log(ctx context.Context, entry *models.PhotoshootLog) error
	ReportSince(ctx context.Context, since time.Time) (*models.PhotoshootReport, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, req provider.GenerateRequest) (*provider.Image, error)
}

type ArtifactSaver interface {
	Save(sourceKey string, sourceCount int, img *provider.Image) (*artifact.Artifact, error)
}

// StyleInfo is what the pipeline needs to know about the chosen style.
type StyleInfo struct {
	Title  string
	Prompt string
}

type PhotoshootResult struct {
	Artifact *artifact.Artifact
	Outcome  models.DebitOutcome
}

// PhotoshootService debits the account, runs the generation pipeline once
// and writes the audit record for the attempt.
type PhotoshootService struct {
	cfg       config.Config
	log       *slog.Logger
	ledger    Ledger
	audit     AuditLog
	generator ImageGenerator
	artifacts ArtifactSaver
	download  DownloadFunc
}

func NewPhotoshootService(cfg config.Config, log *slog.Logger, ledger Ledger, audit AuditLog, generator ImageGenerator, artifacts ArtifactSaver, download DownloadFunc) *PhotoshootService {
	return &PhotoshootService{
		cfg:       cfg,
		log:       log,
		ledger:    ledger,
		audit:     audit,
		generator: generator,
		artifacts: artifacts,
		download:  download,
	}
}

// Generate runs one photoshoot attempt end to end.
//
// The debit happens before the provider call and is not refunded on failure:
// the attempt itself is what is being paid for. The failed audit row carries
// the charged cost so support can compensate manually.
func (s *PhotoshootService) Generate(ctx context.Context, telegramID int64, style StyleInfo, sourceFileIDs []string) (*PhotoshootResult, error) {
	if len(sourceFileIDs) == 0 {
		return nil, ErrNoSourceImages
	}
	if len(sourceFileIDs) > maxSourceImages {
		sourceFileIDs = sourceFileIDs[:maxSourceImages]
	}

	outcome, err := s.ledger.TryDebit(ctx, telegramID, s.cfg.PhotoshootPriceUnits)
	if err != nil {
		return nil, fmt.Errorf("debit account: %w", err)
	}
	if !outcome.OK {
		return nil, ErrInsufficientFunds
	}

	images := make([][]byte, 0, len(sourceFileIDs))
	for _, fileID := range sourceFileIDs {
		data, err := s.download(ctx, fileID)
		if err != nil {
			ferr := &provider.Error{Kind: provider.KindUnavailable, Message: "source fetch failed", Err: err}
			s.logAttempt(ctx, telegramID, style.Title, models.PhotoshootFailed, outcome, ferr)
			return nil, ferr
		}
		images = append(images, data)
	}

	req := provider.GenerateRequest{
		Prompt: provider.BuildPrompt(style.Title, style.Prompt),
		Images: images,
	}

	img, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.logAttempt(ctx, telegramID, style.Title, models.PhotoshootFailed, outcome, err)
		return nil, err
	}

	art, err := s.artifacts.Save(strings.Join(sourceFileIDs, "-"), len(sourceFileIDs), img)
	if err != nil {
		ferr := &provider.Error{Kind: provider.KindUnavailable, Message: "persist artifact failed", Err: err}
		s.logAttempt(ctx, telegramID, style.Title, models.PhotoshootFailed, outcome, ferr)
		return nil, ferr
	}

	s.logAttempt(ctx, telegramID, style.Title, models.PhotoshootSuccess, outcome, nil)
	return &PhotoshootResult{Artifact: art, Outcome: outcome}, nil
}

// Report aggregates attempts over the trailing N days.
func (s *PhotoshootService) Report(ctx context.Context, days int) (*models.PhotoshootReport, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	report, err := s.audit.ReportSince(ctx, since)
	if err != nil {
		return nil, err
	}
	report.Days = days
	return report, nil
}

func (s *PhotoshootService) logAttempt(ctx context.Context, telegramID int64, styleTitle string, status models.PhotoshootStatus, outcome models.DebitOutcome, attemptErr error) {
	entry := &models.PhotoshootLog{
		TelegramID:  telegramID,
		StyleTitle:  styleTitle,
		Status:      status,
		CostUnits:   outcome.CostUnits,
		CostCredits: outcome.CostCredits,
		Provider:    s.cfg.ProviderModel,
	}
	if attemptErr != nil {
		entry.ErrorMessage = truncateMessage(attemptErr.Error(), maxErrorMessageLength)
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		s.log.Error("failed to log photoshoot attempt", "err", err)
	}
	metrics.GenerationsTotal.WithLabelValues(string(status)).Inc()
}

// truncateMessage shortens msg to at most limit bytes without splitting a
// multi-byte rune; provider messages embed Cyrillic text and the audit column
// rejects invalid UTF-8.
func truncateMessage(msg string, limit int) string {
	if len(msg) <= limit {
		return msg
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
