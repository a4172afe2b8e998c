package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fernid/internal/service"
)

const (
	maxPictureBytes = 5 << 20
	// maxImageLen bounds a scan image sent inline: a 5MB file once base64
	// encoded, plus room for the data URL header.
	maxImageLen = (maxPictureBytes+2)/3*4 + 256
	// maxNameLen matches the VARCHAR(64) username and slug columns.
	maxNameLen = 64
)

// inputError carries a message that is safe to show to the user.
type inputError struct{ msg string }

func (e inputError) Error() string { return e.msg }

var (
	errPictureTooLarge = inputError{"Profile picture must be less than 5MB"}
	errPictureType     = inputError{"Please select a valid image file"}
	errImageTooLarge   = inputError{"Image must be less than 5MB"}
	errUsernameLength  = inputError{fmt.Sprintf("Username must be at most %d characters", maxNameLen)}
	errSlugLength      = inputError{fmt.Sprintf("Slug must be at most %d characters", maxNameLen)}
)

// inputMessage returns the user-facing message of err, or fallback when
// err is not an inputError.
func inputMessage(err error, fallback string) string {
	var ie inputError
	if errors.As(err, &ie) {
		return ie.msg
	}
	return fallback
}

// reqCtx derives the backend deadline for one request from its context,
// so work for an abandoned request is cancelled with it.
func reqCtx(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// tooLong reports whether s exceeds a VARCHAR(64) column.
func tooLong(s string) bool {
	return utf8.RuneCountInString(s) > maxNameLen
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// formPicture returns the optional "picture" upload of a multipart form.
// The caller must close the returned file.
func formPicture(c echo.Context, field string) (*service.Upload, io.Closer, error) {
	if !isMultipart(c) {
		return nil, nil, nil
	}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if fh.Size > maxPictureBytes {
		return nil, nil, errPictureTooLarge
	}
	ct := fh.Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ct, "image/") {
		return nil, nil, errPictureType
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &service.Upload{Filename: fh.Filename, ContentType: ct, Body: f}, f, nil
}

// dataURL reads an uploaded scan image into a base64 data URL.
func dataURL(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, maxPictureBytes+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxPictureBytes {
		return "", errImageTooLarge
	}
	ct := fh.Header.Get(echo.HeaderContentType)
	if ct == "" {
		ct = http.DetectContentType(b)
	}
	return fmt.Sprintf("data:%s;base64,%s", ct, base64.StdEncoding.EncodeToString(b)), nil
}
