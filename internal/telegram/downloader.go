package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// FileDownloader pulls file contents out of Telegram's file storage by file id.
type FileDownloader struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
}

func NewFileDownloader(api *tgbotapi.BotAPI) *FileDownloader {
	return &FileDownloader{
		api:        api,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (d *FileDownloader) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	file, err := d.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("file path empty")
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", d.api.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram file status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file body: %w", err)
	}
	return body, nil
}
