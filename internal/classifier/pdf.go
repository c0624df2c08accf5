package classifier

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func pdfConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// trimPDF keeps the first maxPages pages of data. Documents that already fit are
// returned unchanged.
func trimPDF(data []byte, maxPages int) ([]byte, int, error) {
	pages, err := api.PageCount(bytes.NewReader(data), pdfConfig())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count pdf pages: %w", err)
	}
	if maxPages <= 0 || pages <= maxPages {
		return data, pages, nil
	}

	var out bytes.Buffer
	selection := []string{fmt.Sprintf("1-%d", maxPages)}
	if err := api.Trim(bytes.NewReader(data), &out, selection, pdfConfig()); err != nil {
		return nil, pages, fmt.Errorf("failed to trim pdf to %d pages: %w", maxPages, err)
	}
	return out.Bytes(), pages, nil
}
