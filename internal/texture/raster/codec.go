package raster

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Encode serializes im for the data-product store. The on-disk PNG/TIFF
// encoding a real deployment would use is an out-of-scope file-I/O
// contract; gob is a sufficient stand-in encoding for an opaque blob
// stored under a store-assigned id.
func Encode(im *Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(im); err != nil {
		return nil, fmt.Errorf("raster: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes a product previously written by Encode.
func Decode(data []byte) (*Image, error) {
	var im Image
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&im); err != nil {
		return nil, fmt.Errorf("raster: decode: %w", err)
	}
	return &im, nil
}
