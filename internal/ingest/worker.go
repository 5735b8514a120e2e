// Package ingest turns uploaded documents into memory notes. A background
// worker claims extraction jobs off the SQLite queue, pulls the text out
// of the stored document (plain, HTML, or PDF), and appends it to the
// owning user's conversation memory.
package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/ncacord/qraphael/internal/storage"
)

// JobType is the queue type the worker claims.
const JobType = "ingest_extract"

// JobStore abstracts the job queue and document operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetDocument(id string) (storage.Document, error)
	SetDocumentStatus(id, status string) error
}

// NoteWriter appends extracted notes to a user's memory.
type NoteWriter interface {
	Append(userID, text string) error
}

// Worker processes ingest_extract jobs from the SQLite job queue.
type Worker struct {
	store  JobStore
	notes  NoteWriter
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, notes NoteWriter, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		notes:  notes,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single ingest_extract job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// Payload is the JSON body of an ingest_extract job.
type Payload struct {
	DocumentID string `json:"document_id"`
}

func (w *Worker) processJob(_ context.Context, job *storage.Job) error {
	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	text, err := ExtractText(doc)
	if err != nil {
		if statusErr := w.store.SetDocumentStatus(doc.ID, "failed"); statusErr != nil {
			w.logger.Error("failed to mark document as failed", "doc_id", doc.ID, "error", statusErr)
		}
		return fmt.Errorf("extracting text from %s: %w", doc.ID, err)
	}

	note := formatNote(doc.Title, text)
	if err := w.notes.Append(doc.UserID, note); err != nil {
		return fmt.Errorf("appending note for %s: %w", doc.UserID, err)
	}

	if err := w.store.SetDocumentStatus(doc.ID, "extracted"); err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	return nil
}

// formatNote frames extracted text so it reads as a note, not a chat turn,
// when the transcript is re-injected into prompts.
func formatNote(title, text string) string {
	if title == "" {
		title = "untitled"
	}
	return fmt.Sprintf("[note: %s]\n%s", title, text)
}

// ExtractText pulls plain text out of a stored document according to its
// content type. PDF content is expected to be base64-encoded.
func ExtractText(doc storage.Document) (string, error) {
	switch doc.ContentType {
	case "text":
		return strings.TrimSpace(doc.Content), nil
	case "html":
		return htmlToText(doc.Content)
	case "pdf":
		return pdfToText(doc.Content)
	default:
		return "", fmt.Errorf("unsupported content type %q", doc.ContentType)
	}
}

// htmlToText strips tags, scripts, and styles, returning the visible text.
func htmlToText(content string) (string, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String(), nil
}

// pdfToText decodes the base64 payload and extracts the text layer.
func pdfToText(content string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", fmt.Errorf("decoding pdf content: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return strings.TrimSpace(string(text)), nil
}
