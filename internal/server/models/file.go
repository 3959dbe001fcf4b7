package models

import "time"

// File is the metadata row that authorises and describes one stored object.
type File struct {
	// Filename is the server-assigned name, unique across all users.
	Filename string
	// OwnerID is the sole authority for access control on the file.
	OwnerID int64
	// OriginalName is the client-provided name at upload time.
	OriginalName string
	// Size of the stored object in bytes.
	Size int64
	// UploadDate is stored in UTC.
	UploadDate time.Time
	// MimeType as declared by the client on upload.
	MimeType string
	// Path locates the stored object in the object store.
	Path string
}
