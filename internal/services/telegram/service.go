// Package telegram provides Telegram notification services.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/rs/zerolog"
)

// maxErrorRunes keeps a failure notice well inside the 4096 character
// limit of a Telegram message. mysqldump can print a lot on stderr.
const maxErrorRunes = 3000

// Service defines the interface for Telegram notification operations.
type Service interface {
	SendNotification(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) (*models.TelegramResult, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the Telegram Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
	baseURL    string
}

// New creates a new Telegram service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		baseURL: "https://api.telegram.org",
	}
}

// NewWithClient creates a new Telegram service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient, baseURL string) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// apiResponse is the envelope of every Bot API reply.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// SendNotification reports a dump run to the configured chat. Delivery
// problems land in the result, never in the returned error, so a failed
// notification cannot fail the run.
func (s *Impl) SendNotification(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) (*models.TelegramResult, error) {
	result := &models.TelegramResult{}
	logger := s.logger.With().Str("chat_id", cfg.ChatID).Str("run_id", msg.RunID).Logger()

	logger.Info().Bool("success", msg.Success).Msg("sending Telegram notification")

	jsonBody, err := json.Marshal(sendMessageRequest{
		ChatID:                cfg.ChatID,
		Text:                  formatMessage(msg),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		result.Error = fmt.Errorf("failed to marshal request: %w", err)
		return result, nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		result.Error = fmt.Errorf("failed to create request: %w", err)
		return result, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("failed to send request: %w", err)
		return result, nil
	}
	defer func() { _ = resp.Body.Close() }()

	reply, err := decodeReply(resp)
	if err != nil {
		result.Error = err
		logger.Warn().Err(err).Msg("Telegram rejected notification")
		return result, nil
	}

	result.MessageSent = true
	result.MessageID = reply.Result.MessageID
	logger.Info().Int64("message_id", result.MessageID).Msg("Telegram notification sent")

	return result, nil
}

// decodeReply reads the Bot API envelope. A reply that is not ok carries a
// description, which is more useful than the HTTP status alone.
func decodeReply(resp *http.Response) (*apiResponse, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("reading telegram response: %w", err)
	}

	var reply apiResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("telegram API returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decoding telegram response: %w", err)
	}
	if !reply.OK || resp.StatusCode != http.StatusOK {
		if reply.Description != "" {
			return nil, fmt.Errorf("telegram API returned status %d: %s", resp.StatusCode, reply.Description)
		}
		return nil, fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return &reply, nil
}

func formatMessage(msg models.TelegramMessage) string {
	var b strings.Builder

	if msg.Success {
		b.WriteString("✅ <b>MySQL Dump Successful</b>\n\n")
	} else {
		b.WriteString("❌ <b>MySQL Dump Failed</b>\n\n")
	}

	fmt.Fprintf(&b, "🖥 <b>Host:</b> %s\n", html.EscapeString(msg.Host))
	if len(msg.Databases) > 0 {
		fmt.Fprintf(&b, "🗄 <b>Databases:</b> %s\n", html.EscapeString(strings.Join(msg.Databases, ", ")))
	}
	fmt.Fprintf(&b, "⏰ <b>Started:</b> %s\n", msg.StartTime.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "⏱ <b>Duration:</b> %s\n", msg.Duration.Round(time.Second))
	if msg.RunID != "" {
		fmt.Fprintf(&b, "🆔 <b>Run:</b> <code>%s</code>\n", html.EscapeString(msg.RunID))
	}

	if msg.Success {
		b.WriteString("\n<b>📦 Artifact:</b>\n")
		fmt.Fprintf(&b, "  • Key: <code>%s</code>\n", html.EscapeString(msg.ArtifactKey))
		fmt.Fprintf(&b, "  • Size: %s\n", humanize.IBytes(uint64(max(msg.SizeBytes, 0))))
		return b.String()
	}

	b.WriteString("\n<b>⚠️ Error Details:</b>\n")
	fmt.Fprintf(&b, "  • Failed stage: %s\n", html.EscapeString(msg.FailedStage))
	fmt.Fprintf(&b, "  • Error: <pre>%s</pre>\n", html.EscapeString(truncateRunes(msg.ErrorMessage, maxErrorRunes)))

	return b.String()
}

// truncateRunes cuts s to at most n runes, marking the cut.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "… (truncated)"
}
