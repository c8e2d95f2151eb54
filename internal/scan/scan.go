// Package scan checks uploaded objects against ClamAV after the upload
// request has already returned. Infected objects are removed from the blob
// store and the file row is flagged.
package scan

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	clamd "github.com/dutchcoders/go-clamd"

	"github.com/Abdirazakf/file-uploader/internal/blob"
	"github.com/Abdirazakf/file-uploader/internal/files"
	"github.com/Abdirazakf/file-uploader/internal/storage"
)

type ClamScanner struct {
	clamURL string
	blobs   blob.ObjectStore
	store   storage.Store
	tempDir string
}

func NewClamScanner(clamURL string, blobs blob.ObjectStore, store storage.Store) *ClamScanner {
	return &ClamScanner{clamURL: clamURL, blobs: blobs, store: store, tempDir: os.TempDir()}
}

// Scan downloads the object to a temp file, runs ClamAV over it and records
// the verdict. Meant to run in its own goroutine; every failure is logged
// and abandoned, never retried.
func (s *ClamScanner) Scan(fileID, objectKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tempPath := fmt.Sprintf("%s/urfiles-scan-%s", s.tempDir, fileID)
	if err := s.blobs.DownloadTo(ctx, objectKey, tempPath); err != nil {
		log.Printf("[Scan] failed to download %s for scanning: %v", objectKey, err)
		return
	}
	defer os.Remove(tempPath)

	c := clamd.NewClamd(s.clamURL)
	response, err := c.ScanFile(tempPath)
	if err != nil {
		log.Printf("[Scan] scan failed for %s: %v", fileID, err)
		return
	}

	status := files.ScanClean
	for res := range response {
		if res.Status == clamd.RES_FOUND {
			log.Printf("[Scan] virus detected in file %s: %s", fileID, res.Description)
			status = files.ScanInfected

			if err := s.blobs.Delete(ctx, objectKey); err != nil {
				log.Printf("[Scan] failed to delete infected object %s: %v", objectKey, err)
			}
		}
	}

	if err := s.store.SetFileScanStatus(ctx, fileID, status, time.Now().UTC()); err != nil {
		log.Printf("[Scan] failed to update scan status for %s: %v", fileID, err)
		return
	}
	log.Printf("[Scan] finished for %s: %s", fileID, status)
}
