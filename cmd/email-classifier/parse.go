package main

import (
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/mikey/mail-classifier/internal/core"
)

// readEmail parses an RFC 5322 message from a file or stdin into the
// engine's email shape.
func readEmail(path string) (*core.Email, error) {
	var reader io.Reader = os.Stdin
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open email file: %w", err)
		}
		defer file.Close()
		reader = file
	}

	msg, err := mail.ReadMessage(reader)
	if err != nil {
		return nil, fmt.Errorf("parse email: %w", err)
	}
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("read email body: %w", err)
	}

	email := &core.Email{
		Subject: msg.Header.Get("Subject"),
		Body:    string(body),
		Sender:  msg.Header.Get("From"),
	}
	if date, err := msg.Header.Date(); err == nil {
		email.ReceivedAt = date
	} else {
		email.ReceivedAt = time.Now()
	}
	return email, nil
}

// readText returns the positional text argument, or stdin when absent.
func readText(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func printResult(w io.Writer, result *core.ClassificationResult) {
	fmt.Fprintf(w, "category: %s\n", result.Category)
	fmt.Fprintf(w, "confidence: %.4f\n", result.Confidence)
	fmt.Fprintf(w, "model version: %s\n", result.ModelVersion)
	fmt.Fprintf(w, "from cache: %t\n", result.FromCache)
	fmt.Fprintln(w, "distribution:")
	for _, category := range core.Categories {
		fmt.Fprintf(w, "  %-10s %.4f\n", category, result.Distribution[category])
	}
}
