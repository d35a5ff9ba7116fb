// Package ingest reads SKU/service spec documents from a zip archive.
package ingest

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/utils"
)

const (
	maxTitleLength = 120
	// Entries larger than this are skipped.
	maxEntrySize = 20 << 20

	MetadataFiles  = "files"
	MetadataSource = "source"
)

var (
	textExtensions = map[string]bool{".txt": true, ".md": true, ".csv": true, ".json": true}
	imageTypes     = map[string]string{
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".gif":  "image/gif",
		".webp": "image/webp",
	}
)

// ParseArchive opens the zip at path and groups its entries into spec items.
func ParseArchive(archivePath string, logger *zap.Logger) ([]quote.SpecItem, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open spec archive %s: %w", archivePath, err)
	}
	defer r.Close() //nolint:errcheck

	items, err := Parse(&r.Reader, logger)
	if err != nil {
		return nil, err
	}

	for i := range items {
		items[i].Metadata[MetadataSource] = path.Base(archivePath)
	}
	return items, nil
}

type group struct {
	key    string
	texts  []string
	images []quote.Image
	files  []string
}

// Parse groups archive entries by their top-level directory, or by file stem
// for entries at the root. One spec item is produced per group, ordered by key.
// Text entries are concatenated in name order; image entries are attached as is.
func Parse(r *zip.Reader, logger *zap.Logger) ([]quote.SpecItem, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	files := make([]*zip.File, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() || skipEntry(f.Name) {
			continue
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	groups := make(map[string]*group)
	for _, f := range files {
		name := strings.TrimPrefix(path.Clean(strings.ReplaceAll(f.Name, "\\", "/")), "/")
		ext := strings.ToLower(path.Ext(name))
		mimeType, isImage := imageTypes[ext]

		if !textExtensions[ext] && !isImage {
			logger.Debug("skipping unsupported spec entry", zap.String("entry", f.Name))
			continue
		}

		data, err := readEntry(f)
		if err != nil {
			logger.Warn("skipping unreadable spec entry", zap.String("entry", f.Name), zap.Error(err))
			continue
		}

		key := groupKey(name)
		g, ok := groups[key]
		if !ok {
			g = &group{key: key}
			groups[key] = g
		}
		g.files = append(g.files, name)

		if isImage {
			g.images = append(g.images, quote.Image{Name: path.Base(name), MIMEType: mimeType, Data: data})
			continue
		}
		if !utf8.Valid(data) {
			logger.Warn("spec text is not valid utf-8; replacing invalid bytes", zap.String("entry", f.Name))
			data = []byte(strings.ToValidUTF8(string(data), "�"))
		}
		g.texts = append(g.texts, string(data))
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	items := make([]quote.SpecItem, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		text := strings.TrimSpace(strings.Join(g.texts, "\n\n"))
		items = append(items, quote.SpecItem{
			SKUID:    key,
			Title:    titleOf(text, key),
			RawText:  text,
			Images:   g.images,
			Metadata: map[string]string{MetadataFiles: strings.Join(g.files, ",")},
		})
	}

	logger.Info("spec archive parsed",
		zap.Int("entries", len(files)),
		zap.Int("items", len(items)),
	)

	return items, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxEntrySize {
		return nil, fmt.Errorf("entry is %d bytes, limit is %d", f.UncompressedSize64, maxEntrySize)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("entry exceeds %d bytes", maxEntrySize)
	}
	return data, nil
}

func skipEntry(name string) bool {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	return strings.HasPrefix(path.Base(name), ".")
}

func groupKey(name string) string {
	if i := strings.Index(name, "/"); i > 0 {
		return name[:i]
	}
	return strings.TrimSuffix(name, path.Ext(name))
}

// titleOf returns the first non-empty line of text, or fallback.
func titleOf(text, fallback string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return utils.Clip(line, maxTitleLength)
		}
	}
	return fallback
}
