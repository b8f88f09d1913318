package store

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rustyeddy/stockdata/market"
	"github.com/ulikunitz/xz"
)

// Encode writes tb as xz-compressed CSV.
func Encode(w io.Writer, tb *market.Table) error {
	zw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}
	if err := tb.WriteCSV(zw); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// Decode reads a table written by Encode.
func Decode(r io.Reader) (*market.Table, error) {
	zr, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("xz reader: %w", err)
	}
	return market.ReadCSV(zr)
}

func encodeBytes(tb *market.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, tb); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBytes(b []byte) (*market.Table, error) {
	return Decode(bytes.NewReader(b))
}
