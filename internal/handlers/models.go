package handlers

type fetchRequest struct {
	URL       string `json:"url" validate:"required,http_url"`
	MaxSizeMB int64  `json:"max_size_mb" validate:"omitempty,gt=0"`
	SHA256    string `json:"sha256" validate:"omitempty,len=64,hexadecimal"`
}

type fetchResponse struct {
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

type archiveRequest struct {
	SourceDirectory        string `json:"source_directory" validate:"required"`
	DestinationArchivePath string `json:"destination_archive_path" validate:"required"`
}

type archiveResponse struct {
	ArchivePath string `json:"archive_path"`
	Entries     int    `json:"entries"`
}

type runFetchResponse struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
	Files int    `json:"files"`
}

type runFilesResponse struct {
	RunID string   `json:"run_id"`
	Files []string `json:"files"`
}
