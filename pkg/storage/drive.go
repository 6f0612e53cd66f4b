package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	mimeShortcut     = "application/vnd.google-apps.shortcut"
	mimeFolder       = "application/vnd.google-apps.folder"
	mimeGoogleDoc    = "application/vnd.google-apps.document"
	mimeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	mimeGoogleSlides = "application/vnd.google-apps.presentation"

	driveFileFields = "id, name, mimeType, size, createdTime, webViewLink, shortcutDetails"
)

type exportFormat struct {
	mimeType string
	ext      string
}

// Google-native documents have no binary content and must be exported.
var exportFormats = map[string]exportFormat{
	mimeGoogleDoc:    {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", ".docx"},
	mimeGoogleSheet:  {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"},
	mimeGoogleSlides: {"application/vnd.openxmlformats-officedocument.presentationml.presentation", ".pptx"},
}

// Drive stores objects in one Google Drive folder. Refs are Drive file ids.
type Drive struct {
	srv      *drive.Service
	folderID string
	log      *zap.SugaredLogger
}

// NewDriveService builds an authenticated Drive client from a service
// account key file.
func NewDriveService(ctx context.Context, credentialsFile string) (*drive.Service, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read drive credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}
	return drive.NewService(ctx, option.WithCredentials(creds))
}

func NewDrive(srv *drive.Service, folderID string, log *zap.SugaredLogger) *Drive {
	return &Drive{srv: srv, folderID: folderID, log: log}
}

func (d *Drive) Backend() string { return "drive" }

// Put uploads into the folder and shares the file with anyone holding the link.
func (d *Drive) Put(ctx context.Context, name, mimeType string, r io.Reader, size int64) (Object, error) {
	name = SafeName(name)
	mimeType = mimeOr(mimeType, name)
	f, err := d.srv.Files.Create(&drive.File{
		Name:     name,
		Parents:  []string{d.folderID},
		MimeType: mimeType,
	}).
		Media(r, googleapi.ContentType(mimeType)).
		Fields(driveFileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return Object{}, fmt.Errorf("drive upload %s: %w", name, err)
	}

	if _, err := d.srv.Permissions.Create(f.Id, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		d.log.Warnw("drive permission grant failed", "fileId", f.Id, "error", err)
	}

	obj := toObject(f)
	if obj.Size == 0 {
		obj.Size = size
	}
	return obj, nil
}

// Get follows shortcuts and exports Google-native documents to OOXML.
func (d *Drive) Get(ctx context.Context, ref string) (io.ReadCloser, Object, error) {
	f, err := d.resolve(ctx, ref)
	if err != nil {
		return nil, Object{}, err
	}
	obj := toObject(f)

	var resp *http.Response
	if ef, ok := exportFormats[f.MimeType]; ok {
		obj.Name = strings.TrimSuffix(f.Name, filepath.Ext(f.Name)) + ef.ext
		obj.MimeType = ef.mimeType
		obj.Size = 0
		resp, err = d.srv.Files.Export(f.Id, ef.mimeType).Context(ctx).Download()
	} else {
		resp, err = d.srv.Files.Get(f.Id).SupportsAllDrives(true).Context(ctx).Download()
	}
	if err != nil {
		if isDriveNotFound(err) {
			return nil, Object{}, ErrNotFound
		}
		return nil, Object{}, fmt.Errorf("drive download %s: %w", ref, err)
	}
	return resp.Body, obj, nil
}

func (d *Drive) resolve(ctx context.Context, id string) (*drive.File, error) {
	for hops := 0; hops < 4; hops++ {
		f, err := d.srv.Files.Get(id).Fields(driveFileFields).SupportsAllDrives(true).Context(ctx).Do()
		if err != nil {
			if isDriveNotFound(err) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if f.MimeType != mimeShortcut {
			return f, nil
		}
		if f.ShortcutDetails == nil || f.ShortcutDetails.TargetId == "" {
			return nil, ErrNotFound
		}
		id = f.ShortcutDetails.TargetId
	}
	return nil, fmt.Errorf("drive shortcut chain too deep for %s", id)
}

func (d *Drive) Delete(ctx context.Context, ref string) error {
	err := d.srv.Files.Delete(ref).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil && isDriveNotFound(err) {
		d.log.Warnw("delete of missing object", "backend", "drive", "ref", ref)
		return nil
	}
	return err
}

// List returns the folder's files ordered by creation time, newest first.
// Shortcut entries report their target's mime type and exported name.
func (d *Drive) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	q := fmt.Sprintf("'%s' in parents and trashed = false and mimeType != '%s'", d.folderID, mimeFolder)
	err := d.srv.Files.List().
		Q(q).
		OrderBy("createdTime desc").
		Fields(googleapi.Field("nextPageToken, files("+driveFileFields+")")).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		PageSize(100).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				if prefix != "" && !strings.HasPrefix(f.Name, prefix) {
					continue
				}
				obj := toObject(f)
				mt := f.MimeType
				if mt == mimeShortcut && f.ShortcutDetails != nil {
					mt = f.ShortcutDetails.TargetMimeType
				}
				if ef, ok := exportFormats[mt]; ok {
					obj.Name = strings.TrimSuffix(f.Name, filepath.Ext(f.Name)) + ef.ext
					obj.MimeType = ef.mimeType
				} else if mt != "" {
					obj.MimeType = mt
				}
				out = append(out, obj)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("drive list: %w", err)
	}
	return out, nil
}

func (d *Drive) Ping(ctx context.Context) error {
	_, err := d.srv.Files.Get(d.folderID).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	return err
}

func toObject(f *drive.File) Object {
	created, _ := time.Parse(time.RFC3339, f.CreatedTime)
	return Object{
		Key:         f.Id,
		Name:        f.Name,
		MimeType:    f.MimeType,
		Size:        f.Size,
		CreatedAt:   created,
		WebViewLink: f.WebViewLink,
	}
}

func isDriveNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
