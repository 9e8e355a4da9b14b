package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of a file is read to detect its content type when
// the extension is unknown.
const sniffLen = 3072

// Static serves files from fsys under urlPath. Each file is sent as a sized
// body read straight from the open file, which stays open until the body has
// been sent. The content type comes from the extension, or from the first
// bytes of the file when the extension is unknown. Directories are not
// listed.
func Static(reg Registrar, urlPath string, fsys fs.FS, opts ...RouteOption) {
	Get(reg, urlPath+"/{path...}", func(_ context.Context, req *Request) (*Response, error) {
		name := req.PathValue("path")
		if name == "" || !fs.ValidPath(name) {
			return nil, Error(http.StatusNotFound, "not found")
		}
		f, err := fsys.Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				return nil, Error(http.StatusNotFound, "not found")
			}
			return nil, err
		}
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			f.Close() //nolint:errcheck,gosec // read-only file
			return nil, Error(http.StatusNotFound, "not found")
		}

		var body io.Reader = f
		ct := mime.TypeByExtension(path.Ext(name))
		if ct == "" {
			head := make([]byte, min(info.Size(), sniffLen))
			n, err := io.ReadFull(f, head)
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
				f.Close() //nolint:errcheck,gosec // read-only file
				return nil, err
			}
			ct = mimetype.Detect(head[:n]).String()
			body = &sniffedFile{Reader: io.MultiReader(bytes.NewReader(head[:n]), f), Closer: f}
		}

		res := req.Respond(http.StatusOK)
		res.Header.Set("Content-Type", ct)
		res.Header.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
		return res.SetSizedBody(body, info.Size()), nil
	}, opts...)
}

// sniffedFile replays the bytes read for detection before the rest of the
// file.
type sniffedFile struct {
	io.Reader
	io.Closer
}
