package analyzer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	_ "golang.org/x/image/webp"
)

// Prompt is sent with every portrait. The labels match report.ExpectedKeys.
const Prompt = `Analyze this human portrait and provide detailed attributes in the following format:
Gender: [Male/Female/Non-binary]
Age Estimate: [number] years
Ethnicity: [specific ethnicity]
Mood: [primary mood]
Facial Expression: [specific expression]
Glasses: [Yes/No]
Beard: [Yes/No]
Hair Color: [specific color]
Eye Color: [specific color]
Headwear: [Yes/No with type if applicable]
Emotions Detected: [comma-separated list]
Confidence Level: [percentage]%

Include only these attributes and values. Be precise and specific.`

const jpegQuality = 90

var ErrEmptyImage = errors.New("image data is empty")

// Request is the transport-ready form of one analysis: the fixed prompt and
// the image bytes tagged with their media type.
type Request struct {
	Prompt   string
	MIMEType string
	Data     []byte
}

// NewRequest builds a Request for image. Decodable PNG, GIF and WebP images
// are re-encoded as JPEG, JPEGs are passed through untouched. Data that can't
// be decoded is forwarded as is with a sniffed MIME type, it's up to the model
// to reject it.
func NewRequest(img []byte) (*Request, error) {
	if len(img) == 0 {
		return nil, ErrEmptyImage
	}

	req := &Request{Prompt: Prompt}

	_, format, err := image.DecodeConfig(bytes.NewReader(img))
	switch {
	case err != nil:
		req.Data = img
		req.MIMEType = http.DetectContentType(img)
	case format == "jpeg":
		req.Data = img
		req.MIMEType = "image/jpeg"
	default:
		data, err := toJPEG(img)
		if err != nil {
			return nil, fmt.Errorf("re-encoding %s as jpeg: %w", format, err)
		}
		req.Data = data
		req.MIMEType = "image/jpeg"
	}

	return req, nil
}

// Base64 returns the image data in standard base64 encoding.
func (r *Request) Base64() string {
	return base64.StdEncoding.EncodeToString(r.Data)
}

// DataURL returns the image as a data: URL.
func (r *Request) DataURL() string {
	return "data:" + r.MIMEType + ";base64," + r.Base64()
}

func toJPEG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
