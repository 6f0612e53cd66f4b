package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/linskybing/club-intake/internal/domain/submission"
	"github.com/linskybing/club-intake/internal/events"
	apperrors "github.com/linskybing/club-intake/pkg/errors"
	"github.com/linskybing/club-intake/pkg/mailer"
	"github.com/linskybing/club-intake/pkg/metrics"
	"github.com/linskybing/club-intake/pkg/storage"
)

// Ingest consumes a multipart intake form in arrival order. File parts are
// buffered up to the per-file ceiling and stored as they arrive; text parts
// become fields. The record is persisted once the body is exhausted. Files
// already stored are removed again when ingestion fails.
func (s *SubmissionService) Ingest(ctx context.Context, actor Actor, mr *multipart.Reader) (*submission.Submission, error) {
	now := s.now()
	id := submission.NewID(now)
	fields := map[string]interface{}{}
	files := map[string]submission.FileRecord{}
	used := map[string]bool{}
	var stored []submission.FileRecord

	fail := func(err error) (*submission.Submission, error) {
		s.discard(id, stored)
		return nil, err
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(readError(err, "invalid multipart body"))
		}
		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}

		if isFilePart(part) {
			if len(stored) >= s.maxFiles {
				_ = part.Close()
				return fail(apperrors.New(apperrors.ErrCodePayloadTooLarge,
					fmt.Sprintf("a submission may carry at most %d files", s.maxFiles)))
			}
			rec, err := s.storeFile(ctx, part, used)
			_ = part.Close()
			if err != nil {
				return fail(err)
			}
			stored = append(stored, rec)
			if prev, ok := files[name]; ok {
				s.discard(id, []submission.FileRecord{prev})
			}
			files[name] = rec
			continue
		}

		val, err := s.readField(part)
		_ = part.Close()
		if err != nil {
			return fail(err)
		}
		fields[name] = coerceField(name, val)
	}

	sub := submission.New(id, fields, now)
	sub.SetFiles(files)
	sub.SubmittedBy, sub.SubmitterContact = submitter(actor, sub)

	if err := s.store.Save(ctx, sub); err != nil {
		return fail(apperrors.Internal("failed to save submission", err))
	}

	metrics.RecordSubmissionCreated()
	s.log.Infow("submission received", "submissionId", id, "files", len(files), "club", sub.Club)
	s.events.Publish(events.Event{Type: events.TypeCreated, SubmissionID: id, Status: string(sub.Status)})
	s.notify(mailer.KindConfirmation, sub, nil)
	return sub, nil
}

func (s *SubmissionService) storeFile(ctx context.Context, part *multipart.Part, used map[string]bool) (submission.FileRecord, error) {
	original := storage.SafeName(part.FileName())

	buf, err := io.ReadAll(io.LimitReader(part, s.maxFileBytes+1))
	if err != nil {
		return submission.FileRecord{}, readError(err, "failed to read file part")
	}
	if int64(len(buf)) > s.maxFileBytes {
		return submission.FileRecord{}, apperrors.New(apperrors.ErrCodePayloadTooLarge,
			fmt.Sprintf("file %q exceeds the %d byte limit", original, s.maxFileBytes))
	}

	mimeType := part.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(buf)
	}

	uploadedAt := s.now()
	ms := uploadedAt.UnixMilli()
	var (
		storedName string
		obj        storage.Object
	)
	for attempt := 0; ; attempt++ {
		storedName, ms = uniqueStoredName(ms, original, used)
		obj, err = s.files.Put(ctx, storedName, mimeType, bytes.NewReader(buf), int64(len(buf)))
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrExists) || attempt >= maxNameAttempts {
			return submission.FileRecord{}, apperrors.Internal("failed to store file", err)
		}
		// taken by another submission; move to the next free millisecond
		ms++
	}

	rec := submission.FileRecord{
		OriginalName: original,
		StoredName:   storedName,
		MimeType:     mimeType,
		SizeBytes:    int64(len(buf)),
		UploadedAt:   uploadedAt,
		WebViewLink:  obj.WebViewLink,
	}
	if obj.Key != "" && obj.Key != storedName {
		rec.ExternalRef = obj.Key
	}
	return rec, nil
}

func (s *SubmissionService) readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, s.maxFileBytes+1))
	if err != nil {
		return "", readError(err, "failed to read form field")
	}
	if int64(len(b)) > s.maxFileBytes {
		return "", apperrors.New(apperrors.ErrCodePayloadTooLarge,
			fmt.Sprintf("field %q exceeds the %d byte limit", part.FormName(), s.maxFileBytes))
	}
	return string(b), nil
}

// discard removes files stored by a request that did not complete.
func (s *SubmissionService) discard(id string, recs []submission.FileRecord) {
	if len(recs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, r := range recs {
		if err := s.files.Delete(ctx, r.Ref()); err != nil {
			s.log.Warnw("cleanup of stored file failed", "submissionId", id, "ref", r.Ref(), "error", err)
		}
	}
}

// readError maps a body read failure to 413 when the request size cap was
// hit and to a validation error otherwise.
func readError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.Wrap(apperrors.ErrCodePayloadTooLarge,
			fmt.Sprintf("request body exceeds the %d byte limit", tooLarge.Limit), err)
	}
	return apperrors.Wrap(apperrors.ErrCodeValidation, msg, err)
}

// isFilePart reports whether the part carries a filename parameter, even an
// empty one.
func isFilePart(part *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

// coerceField parses the items field as JSON, keeping the raw text when it
// is not valid JSON.
func coerceField(name, val string) interface{} {
	if name != submission.FieldItems || val == "" {
		return val
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(val), &parsed); err != nil {
		return val
	}
	return parsed
}

// maxNameAttempts bounds the retries when a stored name is already taken.
const maxNameAttempts = 100

// uniqueStoredName returns {ms}_{name} for the first millisecond at or after
// ms not yet used by this request, along with that millisecond.
func uniqueStoredName(ms int64, name string, used map[string]bool) (string, int64) {
	for {
		candidate := fmt.Sprintf("%d_%s", ms, name)
		if !used[candidate] {
			used[candidate] = true
			return candidate, ms
		}
		ms++
	}
}

// submitter derives submittedBy and the contact used for notifications.
func submitter(actor Actor, sub *submission.Submission) (string, string) {
	by := actor.UID
	if by == "" {
		by = submission.Anonymous
	}
	for _, c := range []string{
		actor.Email,
		sub.FieldString(submission.FieldEmail),
		sub.FieldString(submission.FieldLineID),
	} {
		if c != "" {
			return by, c
		}
	}
	return by, submission.UnknownContact
}
