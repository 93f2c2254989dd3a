package pdfinfo

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// maxDecoded caps the size of a decoded stream (64 MB).
const maxDecoded = 64 << 20

// decode returns the decoded content of s. Only FlateDecode, with or
// without a PNG predictor, is supported; that covers xref and object
// streams written by browsers and wkhtmltopdf.
func decode(s *stream) ([]byte, error) {
	var filters []string
	switch f := s.dict["Filter"].(type) {
	case nil:
		return s.raw, nil
	case name:
		filters = []string{string(f)}
	case array:
		for _, v := range f {
			if n, ok := v.(name); ok {
				filters = append(filters, string(n))
			}
		}
	}

	parms, _ := s.dict["DecodeParms"].(dict)
	data := s.raw
	for _, f := range filters {
		if f != "FlateDecode" && f != "Fl" {
			return nil, fmt.Errorf("unsupported filter %s", f)
		}
		var err error
		if data, err = inflate(data); err != nil {
			return nil, err
		}
		if data, err = unpredict(parms, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxDecoded+1))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	if len(out) > maxDecoded {
		return nil, fmt.Errorf("decoded stream exceeds %d bytes", maxDecoded)
	}
	return out, nil
}

// unpredict reverses PNG row filters (Predictor 10-15).
func unpredict(parms dict, data []byte) ([]byte, error) {
	if parms == nil {
		return data, nil
	}
	predictor, _ := toInt(parms["Predictor"])
	if predictor < 10 {
		return data, nil
	}

	columns := int64(1)
	if c, ok := toInt(parms["Columns"]); ok && c > 0 {
		columns = c
	}
	colors := int64(1)
	if c, ok := toInt(parms["Colors"]); ok && c > 0 {
		colors = c
	}
	bpc := int64(8)
	if b, ok := toInt(parms["BitsPerComponent"]); ok && b > 0 {
		bpc = b
	}
	bpp := int((colors*bpc + 7) / 8)
	width := int((columns*colors*bpc + 7) / 8)
	stride := width + 1
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("predictor rows: %d bytes is not a multiple of %d", len(data), stride)
	}

	rows := len(data) / stride
	out := make([]byte, rows*width)
	prev := make([]byte, width)
	for r := 0; r < rows; r++ {
		src := data[r*stride+1 : (r+1)*stride]
		dst := out[r*width : (r+1)*width]
		for i := range dst {
			var left, upLeft byte
			if i >= bpp {
				left = dst[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch data[r*stride] {
			case 0:
				dst[i] = src[i]
			case 1:
				dst[i] = src[i] + left
			case 2:
				dst[i] = src[i] + up
			case 3:
				dst[i] = src[i] + byte((int(left)+int(up))/2)
			case 4:
				dst[i] = src[i] + paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("unknown png filter %d", data[r*stride])
			}
		}
		prev = dst
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
