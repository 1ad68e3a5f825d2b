package analyzer

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 12, 16))
	for y := range 16 {
		for x := range 12 {
			img.Set(x, y, color.RGBA{uint8(x * 20), uint8(y * 15), 128, 255})
		}
	}
	return img
}

func TestNewRequest(t *testing.T) {
	t.Run("empty image", func(t *testing.T) {
		_, err := NewRequest(nil)
		assert.ErrorIs(t, err, ErrEmptyImage)

		_, err = NewRequest([]byte{})
		assert.ErrorIs(t, err, ErrEmptyImage)
	})

	t.Run("jpeg passes through", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, testImage(), nil))

		req, err := NewRequest(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", req.MIMEType)
		assert.Equal(t, buf.Bytes(), req.Data)
		assert.Equal(t, Prompt, req.Prompt)
	})

	t.Run("png is re-encoded as jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, testImage()))

		req, err := NewRequest(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", req.MIMEType)

		_, format, err := image.DecodeConfig(bytes.NewReader(req.Data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
	})

	t.Run("undecodable data is forwarded", func(t *testing.T) {
		data := []byte("definitely not an image")
		req, err := NewRequest(data)
		require.NoError(t, err)
		assert.Equal(t, data, req.Data)
		assert.True(t, strings.HasPrefix(req.MIMEType, "text/plain"), req.MIMEType)
	})
}

func TestRequestEncoding(t *testing.T) {
	req := &Request{Prompt: Prompt, MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff, 0xe0}}

	decoded, err := base64.StdEncoding.DecodeString(req.Base64())
	require.NoError(t, err)
	assert.Equal(t, req.Data, decoded)

	assert.Equal(t, "data:image/jpeg;base64,"+req.Base64(), req.DataURL())
}

func TestPromptListsExpectedLabels(t *testing.T) {
	for _, label := range []string{
		"Gender", "Age Estimate", "Ethnicity", "Mood", "Facial Expression", "Glasses",
		"Beard", "Hair Color", "Eye Color", "Headwear", "Emotions Detected", "Confidence Level",
	} {
		assert.Contains(t, Prompt, "\n"+label+": ", label)
	}
}
