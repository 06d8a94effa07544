package server

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// decodeImageData accepts a raw base64 string or a data URL and returns the
// PNG bytes.
func decodeImageData(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, errors.New("no image data")
	}
	parts := strings.SplitN(data, ",", 2)
	if len(parts) == 2 {
		data = parts[1]
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	if len(decoded) > maxImageBytes {
		return nil, fmt.Errorf("image must be %d bytes or fewer", maxImageBytes)
	}
	if !bytes.HasPrefix(decoded, pngSignature) {
		return nil, errors.New("image must be a PNG")
	}
	return decoded, nil
}

func encodeImageData(image []byte) string {
	if len(image) == 0 {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
}
