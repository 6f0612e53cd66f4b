package application

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/linskybing/club-intake/internal/domain/submission"
)

// PrepareArchive resolves the submission and the archive file name before
// any byte of the response is written.
func (s *SubmissionService) PrepareArchive(ctx context.Context, actor Actor, id string) (*submission.Submission, string, error) {
	sub, err := s.loadFor(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}
	return sub, ArchiveName(sub), nil
}

// WriteArchive streams every attachment of sub into a zip written to w.
// Files missing from storage are skipped. It returns the number of entries.
func (s *SubmissionService) WriteArchive(ctx context.Context, sub *submission.Submission, w io.Writer) (int, error) {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	files := sub.FileMap()
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := map[string]int{}
	written := 0
	for _, field := range keys {
		rec := files[field]
		rc, _, err := s.files.Get(ctx, rec.Ref())
		if err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			s.log.Warnw("archive entry skipped", "submissionId", sub.ID, "field", field, "ref", rec.Ref(), "error", err)
			continue
		}

		name := rec.OriginalName
		if name == "" {
			name = rec.StoredName
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entryName(name, seen),
			Method:   zip.Deflate,
			Modified: rec.UploadedAt,
		})
		if err != nil {
			_ = rc.Close()
			return written, err
		}
		_, err = io.Copy(fw, rc)
		_ = rc.Close()
		if err != nil {
			return written, err
		}
		written++
	}
	return written, zw.Close()
}

// ArchiveName is {club}_{teacherName}_{id}.zip with path separators removed.
func ArchiveName(sub *submission.Submission) string {
	clean := strings.NewReplacer("/", "_", "\\", "_", "\"", "", "\n", "", "\r", "")
	return clean.Replace(fmt.Sprintf("%s_%s_%s.zip",
		sub.FieldString(submission.FieldClub),
		sub.FieldString(submission.FieldTeacherName),
		sub.ID))
}

func entryName(name string, seen map[string]int) string {
	seen[name]++
	if n := seen[name]; n > 1 {
		ext := filepath.Ext(name)
		return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
	}
	return name
}
