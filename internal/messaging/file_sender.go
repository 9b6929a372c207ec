package messaging

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kliklens/studioops/internal/config"
)

// FileSender writes outbound messages to a log file instead of delivering
// them.
type FileSender struct {
	filePath string
	cfg      *config.Config
}

// NewFileSender creates a new FileSender, ensuring the directory for the log
// file exists.
func NewFileSender(filePath string, cfg *config.Config) (Sender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("message log file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for message log file '%s': %w", dir, err)
	}

	return &FileSender{
		filePath: filePath,
		cfg:      cfg,
	}, nil
}

// Send appends the raw message to the configured file.
func (s *FileSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	timestamp := time.Now().Format(time.RFC3339Nano)

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("FileSender: Failed to open log file '%s': %v", s.filePath, err)
		return fmt.Errorf("failed to open message log file: %w", err)
	}
	defer file.Close()

	logEntryPrefix := fmt.Sprintf("--- Message Logged at %s (To: %v, Subject: %s) ---\n", timestamp, to, subject)
	logSuffix := "--- End Logged Message ---\n\n"

	fullLogEntry := []byte(logEntryPrefix)
	fullLogEntry = append(fullLogEntry, rawMessage...)
	fullLogEntry = append(fullLogEntry, []byte(logSuffix)...)

	if _, err := file.Write(fullLogEntry); err != nil {
		log.Printf("FileSender: Failed to write to log file '%s': %v", s.filePath, err)
		return fmt.Errorf("failed to write message to log file: %w", err)
	}

	log.Printf("FileSender: Message to %v (Subject: %s) logged to %s", to, subject, s.filePath)
	return nil
}
