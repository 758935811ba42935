package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/result-system/apiserver/internal/apperr"
	"github.com/result-system/apiserver/internal/services"
	"github.com/result-system/apiserver/types"
)

const (
	maxMultipartMemory = 8 << 20
	maxAvatarBytes     = 5 << 20
	maxRegisterBytes   = maxAvatarBytes + 1<<20
	passwordSpecials   = "@$!%*?&"

	formFieldFirstName       = "firstName"
	formFieldLastName        = "lastName"
	formFieldRole            = "role"
	formFieldPassword        = "password"
	formFieldConfirmPassword = "confirmPassword"
	formFieldAvatar          = "avatar"

	msgPasswordRule = "Password must be 8-64 characters long and contain at least one lowercase letter, one uppercase letter, one digit, and one special character"
)

var imageMimes = []string{
	"image/gif",
	"image/svg+xml",
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/webp",
}

var errUploadTooLarge = errors.New("uploaded file too large")

// validation accumulates per-field messages.
type validation struct {
	paths []string
}

func (v *validation) add(format string, args ...any) {
	v.paths = append(v.paths, fmt.Sprintf(format, args...))
}

func (v *validation) required(value, label string) bool {
	if strings.TrimSpace(value) == "" {
		v.add("%s is required", label)
		return false
	}
	return true
}

// err returns nil when nothing was recorded. A single failure becomes the
// message; several are summarised.
func (v *validation) err() error {
	switch len(v.paths) {
	case 0:
		return nil
	case 1:
		return apperr.Validation(v.paths[0], v.paths...)
	default:
		return apperr.Validation(fmt.Sprintf("%d errors occurred", len(v.paths)), v.paths...)
	}
}

// validPassword requires 8 to 64 characters drawn from letters, digits and
// @$!%*?&, with at least one of each class.
func validPassword(password string) bool {
	if len(password) < 8 || len(password) > 64 {
		return false
	}
	var lower, upper, digit, special bool
	for _, c := range password {
		switch {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, c):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

// parseRegisterForm reads and validates the multipart registration form.
func parseRegisterForm(r *http.Request) (services.RegisterInput, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return services.RegisterInput{}, apperr.Validation("Avatar size should be less than 5 Mb.", "Avatar size should be less than 5 Mb.")
		}
		return services.RegisterInput{}, apperr.BadRequest("Invalid multipart form.")
	}

	in := services.RegisterInput{
		FirstName: strings.TrimSpace(r.FormValue(formFieldFirstName)),
		LastName:  strings.TrimSpace(r.FormValue(formFieldLastName)),
		Role:      types.Role(strings.TrimSpace(r.FormValue(formFieldRole))),
		Password:  r.FormValue(formFieldPassword),
	}
	confirm := r.FormValue(formFieldConfirmPassword)

	var v validation
	v.required(in.FirstName, "First name")
	v.required(in.LastName, "Last name")
	if v.required(string(in.Role), "Role") && in.Role != types.RoleStudent && in.Role != types.RoleTeacher {
		v.add(`Role should be either "STUDENT" or "TEACHER".`)
	}
	if v.required(in.Password, "Password") && !validPassword(in.Password) {
		v.add(msgPasswordRule)
	}
	if v.required(confirm, "Confirm password") && confirm != in.Password {
		v.add("Password must match.")
	}

	avatar, err := parseAvatar(r.MultipartForm)
	if err != nil {
		v.add("%s", err.Error())
	}
	if err := v.err(); err != nil {
		return services.RegisterInput{}, err
	}
	in.Avatar = avatar
	return in, nil
}

// parseAvatar returns nil when no avatar was uploaded.
func parseAvatar(form *multipart.Form) (*services.Avatar, error) {
	if form == nil {
		return nil, nil
	}
	files := form.File[formFieldAvatar]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, errors.New("Only one avatar is allowed.")
	}

	header := files[0]
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if !isImageMime(contentType) {
		return nil, fmt.Errorf("Avatar should be image (%s)", strings.Join(imageMimes, ", "))
	}
	if header.Size > maxAvatarBytes {
		return nil, errors.New("Avatar size should be less than 5 Mb.")
	}

	file, err := header.Open()
	if err != nil {
		return nil, errors.New("Failed to upload the avatar")
	}
	data, err := readFileLimited(file, maxAvatarBytes)
	_ = file.Close()
	if err != nil {
		if errors.Is(err, errUploadTooLarge) {
			return nil, errors.New("Avatar size should be less than 5 Mb.")
		}
		return nil, errors.New("Failed to upload the avatar")
	}

	width, height := imageSize(data)
	return &services.Avatar{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Width:       width,
		Height:      height,
		Body:        bytes.NewReader(data),
	}, nil
}

func isImageMime(contentType string) bool {
	for _, mime := range imageMimes {
		if contentType == mime {
			return true
		}
	}
	return false
}

// imageSize reports zero dimensions for formats without a registered decoder
// (svg, webp) and for undecodable data.
func imageSize(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	return data, nil
}
