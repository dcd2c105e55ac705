package models

// BundleFile is one downloadable file of a completed job's bundle.
type BundleFile struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type,omitempty"`
	Size     int64  `json:"file_size,omitempty"`
}

// DownloadedFile describes a bundle file written to disk.
type DownloadedFile struct {
	FileName  string `json:"file_name"`
	FilePath  string `json:"file_path"`
	FileID    string `json:"file_id"`
	Size      int64  `json:"file_size"`
	MirrorURI string `json:"mirror_uri,omitempty"`
}

// FailedFile records a bundle file that could not be downloaded.
type FailedFile struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

// DownloadResult summarizes a bundle download. Files only lists successes.
type DownloadResult struct {
	JobID        string           `json:"job_id"`
	Folder       string           `json:"download_folder"`
	Files        []DownloadedFile `json:"files"`
	FileCount    int              `json:"file_count"`
	TotalSize    int64            `json:"total_size"`
	Failed       []FailedFile     `json:"failed_files,omitempty"`
	MirrorErrors []string         `json:"mirror_errors,omitempty"`
}
