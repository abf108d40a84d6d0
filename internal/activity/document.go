package activity

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// DocumentType is the activity type of every document.
const DocumentType = "shipment"

// DateLayout formats window bounds: fixed width, zero milliseconds, no offset.
const DateLayout = "2006-01-02T15:04:05.000"

// Document is one activity submitted for tokenization. Fields are declared in
// key order so the encoded payload has sorted keys.
type Document struct {
	Carrier   string   `json:"carrier,omitempty"`
	From      *Address `json:"from,omitempty"`
	FromDate  string   `json:"from_date,omitempty"`
	ID        string   `json:"id"`
	Mode      string   `json:"mode,omitempty"`
	ThruDate  string   `json:"thru_date,omitempty"`
	To        *Address `json:"to,omitempty"`
	Tracking  string   `json:"tracking,omitempty"`
	Type      string   `json:"type"`
	Weight    string   `json:"weight,omitempty"`
	WeightUOM string   `json:"weight_uom,omitempty"`
}

// Address is a route endpoint.
type Address struct {
	Address       string `json:"address,omitempty"`
	City          string `json:"city,omitempty"`
	Country       string `json:"country"`
	StateProvince string `json:"state_province,omitempty"`
}

// Batch is the request body written to the scratch file and uploaded.
type Batch struct {
	Activities []Document `json:"activities"`
}

// Encode writes the batch as 4-space indented JSON.
func (b Batch) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode activities: %w", err)
	}
	return nil
}

// WriteFile replaces path with the encoded batch.
func (b Batch) WriteFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open scratch file: %w", err)
	}
	if err := b.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close scratch file: %w", err)
	}
	return nil
}
