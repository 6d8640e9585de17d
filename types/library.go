package types

import "context"

type LibraryManager interface {
	BrowseFolder(ctx context.Context, path string) ([]FileEntry, error)
	ReadImage(ctx context.Context, path string) (*ImageData, error)
	ReadFolderImages(ctx context.Context, path string) ([]ImageData, error)
	SupportedTypes() []string
}

type FileEntry struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	IsDirectory  bool   `json:"is_directory"`
	IsImage      bool   `json:"is_image"`
	Size         uint64 `json:"size,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

type ImageData struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Path         string          `json:"path"`
	Dimensions   ImageDimensions `json:"dimensions"`
	FileSize     uint64          `json:"file_size"`
	LastModified string          `json:"last_modified"`
}
