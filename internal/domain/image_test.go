package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataURLRoundTrip(t *testing.T) {
	img := EncodedImage{MIMEType: "image/webp", Data: []byte("RIFF....WEBP")}
	url := img.DataURL()
	assert.Regexp(t, `^data:image/webp;base64,`, url)

	parsed, err := ParseDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, img, parsed)
}

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantMIME string
		wantData string
		wantErr  bool
	}{
		{name: "bare payload", input: "aGVsbG8=", wantMIME: "", wantData: "hello"},
		{name: "uppercase mime", input: "data:IMAGE/PNG;base64,aGVsbG8=", wantMIME: "image/png", wantData: "hello"},
		{name: "extra params", input: "data:image/jpeg;name=a.jpg;base64,aGVsbG8=", wantMIME: "image/jpeg", wantData: "hello"},
		{name: "not base64", input: "data:image/png,hello", wantErr: true},
		{name: "missing comma", input: "data:image/png;base64", wantErr: true},
		{name: "bad payload", input: "data:image/png;base64,!!!", wantErr: true},
		{name: "empty", input: "  ", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDataURL(tc.input)
			if tc.wantErr {
				assert.Error(t, err, "got %+v", got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantMIME, got.MIMEType)
			assert.Equal(t, tc.wantData, string(got.Data))
		})
	}
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "generated-1700000000123.png", DownloadName(time.UnixMilli(1700000000123)))
}

func TestErrorKindMatching(t *testing.T) {
	err := Refused("Refused: policy X")
	assert.ErrorIs(t, err, ErrPolicy)
	assert.NotErrorIs(t, err, ErrService)

	cause := errors.New("dial tcp: timeout")
	wrapped := AsError(cause)
	assert.Equal(t, KindTransport, wrapped.Kind)
	assert.Equal(t, "dial tcp: timeout", wrapped.Detail)
	assert.ErrorIs(t, wrapped, cause)
	assert.Same(t, err, AsError(err))
}

func TestMalformedIsServiceError(t *testing.T) {
	cause := errors.New("illegal base64 data at input byte 0")
	err := Malformed(cause)
	assert.Equal(t, CodeBadImageData, err.Code)
	assert.ErrorIs(t, err, ErrService)
	assert.ErrorIs(t, err, cause)
}
