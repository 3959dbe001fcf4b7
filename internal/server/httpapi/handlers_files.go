package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/filekeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const uploadFieldName = "file"

func (s *HTTPServer) upload(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}

	part, err := nextFilePart(mr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, msgNoFile)
			return
		}
		s.fail(w, r, err)
		return
	}
	defer part.Close()

	f, err := s.files.Upload(r.Context(), principal(r.Context()), services.UploadInput{
		OriginalName: part.FileName(),
		MimeType:     part.Header.Get("Content-Type"),
		Body:         part,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{Message: "File uploaded successfully!", Filename: f.Filename})
}

// nextFilePart skips to the first part named "file" that carries a filename.
// io.EOF means there is none.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadFieldName && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

func (s *HTTPServer) list(w http.ResponseWriter, r *http.Request) {
	files, err := s.files.List(r.Context(), principal(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := listResponse{Files: make([]fileInfo, 0, len(files))}
	for _, f := range files {
		resp.Files = append(resp.Files, fileInfo{
			Filename:     f.Filename,
			OriginalName: f.OriginalName,
			Size:         f.Size,
			UploadDate:   f.UploadDate,
			MimeType:     f.MimeType,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) get(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, services.AsStored)
}

func (s *HTTPServer) download(w http.ResponseWriter, r *http.Request) {
	s.stream(w, r, services.AsOriginal)
}

func (s *HTTPServer) stream(w http.ResponseWriter, r *http.Request, d services.Disposition) {
	filename, err := filenameParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	dl, err := s.files.Open(r.Context(), principal(r.Context()), filename, d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer dl.Body.Close()

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(dl.AttachmentName))
	w.Header().Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Body); err != nil {
		s.logger.Warn(r.Context(), "streaming interrupted", "filename", filename, "error", err)
	}
}

// filenameParam returns the decoded {filename} segment. chi matches on
// RawPath when the request carries one and on the decoded Path otherwise, so
// the parameter is unescaped only in the first case.
func filenameParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "filename")
	if r.URL.RawPath == "" {
		return name, nil
	}
	return url.PathUnescape(name)
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// contentDisposition quotes name for an attachment header. Non-ASCII names
// also get an RFC 5987 filename* parameter.
func contentDisposition(name string) string {
	v := `attachment; filename="` + quoteEscaper.Replace(name) + `"`
	for _, c := range name {
		if c > unicode.MaxASCII {
			return v + "; filename*=UTF-8''" + url.PathEscape(name)
		}
	}
	return v
}

func (s *HTTPServer) deleteFile(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	if err := s.files.Delete(r.Context(), principal(r.Context()), req.Filename); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("File %q deleted successfully!", req.Filename)})
}

func (s *HTTPServer) renameFile(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	oldName := req.old()
	if oldName == "" {
		writeError(w, http.StatusBadRequest, "oldFilename is required")
		return
	}
	if req.NewFilename == "" {
		writeError(w, http.StatusBadRequest, "newFilename is required")
		return
	}

	if _, err := s.files.Rename(r.Context(), principal(r.Context()), oldName, req.NewFilename); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("File %q renamed to %q successfully!", oldName, req.NewFilename),
	})
}
